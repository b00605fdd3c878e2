package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presta-backoffice/internal/domain"
)

const testSecret = "test-secret"

// expectedSignature recomputes the HMAC the way the gateway verifies it.
func expectedSignature(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "s" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		APIKey:        "api-key",
		SecretKey:     testSecret,
		BaseURL:       serverURL,
		ReturnURLBase: "https://office.example/return",
		NotifyURL:     "https://office.example/api/gateway/webhook",
	})
}

func TestCommerceOrderRoundTrip(t *testing.T) {
	order := CommerceOrder("loan-42", 7)
	assert.Equal(t, "loan-42-C7", order)

	loanID, seq, err := ParseCommerceOrder(order)
	require.NoError(t, err)
	assert.Equal(t, "loan-42", loanID)
	assert.Equal(t, 7, seq)

	t.Run("LoanIDWithDashes", func(t *testing.T) {
		id := "7f3b-11aa-C9-ish"
		loanID, seq, err := ParseCommerceOrder(CommerceOrder(id, 3))
		require.NoError(t, err)
		assert.Equal(t, id, loanID)
		assert.Equal(t, 3, seq)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, bad := range []string{"", "noseq", "-C1", "loan-Cx"} {
			_, _, err := ParseCommerceOrder(bad)
			assert.Error(t, err, "input %q", bad)
		}
	})
}

func TestClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payment/create", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "api-key", r.PostForm.Get("apiKey"))
		assert.Equal(t, "loan-1-C2", r.PostForm.Get("commerceOrder"))
		assert.Equal(t, "92.17", r.PostForm.Get("amount"))
		assert.Equal(t, expectedSignature(r.PostForm), r.PostForm.Get("s"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url":"https://pay.example/web","token":"tok-1"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	order, err := client.CreateOrder(context.Background(), "loan-1", 2, decimal.RequireFromString("92.17"), "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", order.Token)
	assert.Equal(t, "https://pay.example/web?token=tok-1", order.RedirectURL)
}

func TestClient_CreateOrder_Errors(t *testing.T) {
	t.Run("GatewayError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad api key", http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).CreateOrder(context.Background(), "l", 1, decimal.NewFromInt(10), "")
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("MissingToken", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"url":"https://pay.example/web"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).CreateOrder(context.Background(), "l", 1, decimal.NewFromInt(10), "")
		assert.ErrorContains(t, err, "missing url or token")
	})
}

func TestClient_GetStatus(t *testing.T) {
	newStatusServer := func(t *testing.T, body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/payment/getStatus", r.URL.Path)
			query := r.URL.Query()
			assert.Equal(t, expectedSignature(query), query.Get("s"))
			w.Write([]byte(body))
		}))
	}

	t.Run("PaidByCard", func(t *testing.T) {
		srv := newStatusServer(t, `{
			"commerceOrder": "loan-1-C2",
			"status": 2,
			"amount": "92.17",
			"paymentData": {"media": "11", "amount": "92.17"}
		}`)
		defer srv.Close()

		status, err := newTestClient(srv.URL).GetStatus(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.True(t, status.Paid)
		assert.Equal(t, "loan-1", status.LoanID)
		assert.Equal(t, 2, status.Seq)
		assert.Equal(t, domain.PaymentMethodCard, status.Method)
		assert.Equal(t, "92.17", status.Amount.StringFixed(2))
	})

	t.Run("WalletByMediaCode", func(t *testing.T) {
		srv := newStatusServer(t, `{
			"commerceOrder": "loan-1-C2",
			"status": 2,
			"paymentData": {"media": "29", "amount": "50.00"}
		}`)
		defer srv.Close()

		status, err := newTestClient(srv.URL).GetStatus(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentMethodWallet, status.Method)
	})

	t.Run("MediaLabelWinsOverCode", func(t *testing.T) {
		srv := newStatusServer(t, `{
			"commerceOrder": "loan-1-C2",
			"status": 2,
			"paymentData": {"media": "11", "mediaLabel": "wallet", "amount": "50.00"}
		}`)
		defer srv.Close()

		status, err := newTestClient(srv.URL).GetStatus(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentMethodWallet, status.Method)
	})

	t.Run("RejectedIsNotPaid", func(t *testing.T) {
		srv := newStatusServer(t, `{"commerceOrder": "loan-1-C2", "status": 3, "amount": "92.17"}`)
		defer srv.Close()

		status, err := newTestClient(srv.URL).GetStatus(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.False(t, status.Paid)
	})
}
