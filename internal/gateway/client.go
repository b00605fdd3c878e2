// Package gateway integrates the card/wallet payment gateway used for
// off-counter installment payments. Requests are form-encoded and signed with
// HMAC-SHA256 over the alphabetically sorted parameters.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"presta-backoffice/internal/domain"
	"presta-backoffice/internal/logger"
)

const (
	statusPaid     = 2
	statusRejected = 3
	statusCanceled = 4
)

// Config carries the merchant credentials and endpoints.
type Config struct {
	APIKey        string
	SecretKey     string
	BaseURL       string
	ReturnURLBase string
	NotifyURL     string
}

// Order is a payment order placed with the gateway.
type Order struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// PaymentStatus is the gateway's view of an order after notification.
type PaymentStatus struct {
	Token         string
	CommerceOrder string
	LoanID        string
	Seq           int
	Paid          bool
	Amount        decimal.Decimal
	Method        domain.PaymentMethod
}

// Client talks to the gateway's REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// CommerceOrder encodes the loan and installment into the merchant order ID so
// the notification handler can route the settlement without extra state.
func CommerceOrder(loanID string, seq int) string {
	return fmt.Sprintf("%s-C%d", loanID, seq)
}

// ParseCommerceOrder is the inverse of CommerceOrder.
func ParseCommerceOrder(order string) (loanID string, seq int, err error) {
	idx := strings.LastIndex(order, "-C")
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed commerce order %q", order)
	}
	loanID = order[:idx]
	if _, err := fmt.Sscanf(order[idx+2:], "%d", &seq); err != nil || seq < 1 {
		return "", 0, fmt.Errorf("malformed commerce order %q", order)
	}
	return loanID, seq, nil
}

// CreateOrder opens a payment order for one installment and returns the token
// plus the URL the borrower is redirected to.
func (c *Client) CreateOrder(ctx context.Context, loanID string, seq int, amount decimal.Decimal, payerEmail string) (*Order, error) {
	params := map[string]string{
		"apiKey":          c.cfg.APIKey,
		"commerceOrder":   CommerceOrder(loanID, seq),
		"subject":         fmt.Sprintf("Installment %d, loan %s", seq, loanID),
		"amount":          amount.StringFixed(2),
		"email":           payerEmail,
		"urlConfirmation": c.cfg.NotifyURL,
		"urlReturn":       c.cfg.ReturnURLBase,
	}
	c.sign(params)

	logger.ExternalServiceCall("gateway", "CreateOrder", "commerce_order", params["commerceOrder"])
	body, err := c.postForm(ctx, "/payment/create", params)
	logger.ExternalServiceResult("gateway", "CreateOrder", err)
	if err != nil {
		return nil, err
	}

	var resp struct {
		URL   string `json:"url"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding create response: %w", err)
	}
	if resp.Token == "" || resp.URL == "" {
		return nil, fmt.Errorf("gateway create response missing url or token")
	}
	return &Order{
		Token:       resp.Token,
		RedirectURL: resp.URL + "?token=" + resp.Token,
	}, nil
}

// GetStatus fetches the authoritative state of an order. Notifications only
// say "something happened"; this call decides whether it was paid.
func (c *Client) GetStatus(ctx context.Context, token string) (*PaymentStatus, error) {
	params := map[string]string{
		"apiKey": c.cfg.APIKey,
		"token":  token,
	}
	c.sign(params)

	logger.ExternalServiceCall("gateway", "GetStatus", "token", token)
	body, err := c.get(ctx, "/payment/getStatus", params)
	logger.ExternalServiceResult("gateway", "GetStatus", err)
	if err != nil {
		return nil, err
	}

	var resp struct {
		CommerceOrder string `json:"commerceOrder"`
		Status        int    `json:"status"`
		Amount        string `json:"amount"`
		PaymentData   *struct {
			Media      string `json:"media"`
			MediaLabel string `json:"mediaLabel"`
			Amount     string `json:"amount"`
		} `json:"paymentData"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}

	loanID, seq, err := ParseCommerceOrder(resp.CommerceOrder)
	if err != nil {
		return nil, err
	}

	status := &PaymentStatus{
		Token:         token,
		CommerceOrder: resp.CommerceOrder,
		LoanID:        loanID,
		Seq:           seq,
		Paid:          resp.Status == statusPaid,
		Method:        domain.PaymentMethodCard,
	}
	if resp.Amount != "" {
		if status.Amount, err = decimal.NewFromString(resp.Amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", resp.Amount, err)
		}
	}
	if pd := resp.PaymentData; pd != nil {
		status.Method = mediaMethod(pd.Media, pd.MediaLabel)
		if pd.Amount != "" {
			if status.Amount, err = decimal.NewFromString(pd.Amount); err != nil {
				return nil, fmt.Errorf("parsing paid amount %q: %w", pd.Amount, err)
			}
		}
	}
	return status, nil
}

// mediaMethod maps the gateway's payment-media codes onto our methods. The
// textual label, when present, wins over the numeric code.
func mediaMethod(media, label string) domain.PaymentMethod {
	switch strings.ToLower(label) {
	case "wallet", "prepago", "billetera":
		return domain.PaymentMethodWallet
	case "card", "tarjeta", "webpay":
		return domain.PaymentMethodCard
	}
	switch media {
	case "29":
		return domain.PaymentMethodWallet
	default:
		return domain.PaymentMethodCard
	}
}

// sign adds the s parameter: HMAC-SHA256 hex over "k1=v1&k2=v2&..." with keys
// sorted alphabetically, excluding s itself.
func (c *Client) sign(params map[string]string) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	params["s"] = hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) postForm(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
