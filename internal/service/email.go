package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"

	"presta-backoffice/internal/logger"
)

type emailService struct {
	client  *sendgrid.Client
	from    *mail.Email
	enabled bool
}

// NewEmailService builds the SendGrid-backed mailer. When enabled is false
// every send is logged and skipped, which keeps local and test runs offline.
func NewEmailService(apiKey, from, fromName string, enabled bool) EmailService {
	return &emailService{
		client:  sendgrid.NewSendClient(apiKey),
		from:    mail.NewEmail(fromName, from),
		enabled: enabled,
	}
}

func (s *emailService) SendOverdueReminder(ctx context.Context, email, name, loanID string, seq, daysLate int, totalDue decimal.Decimal) error {
	subject := fmt.Sprintf("Payment reminder: installment %d is %d day(s) overdue", seq, daysLate)
	plain := fmt.Sprintf(
		"Hello %s,\n\nInstallment %d of your loan %s is %d day(s) overdue. "+
			"The amount due today, late charges included, is %s.\n\n"+
			"Please visit the office to settle it.\n",
		name, seq, loanID, daysLate, totalDue.StringFixed(2))
	return s.send(ctx, "SendOverdueReminder", email, name, subject, plain)
}

func (s *emailService) SendReceipt(ctx context.Context, email, name, receiptNumber string, amount decimal.Decimal) error {
	subject := fmt.Sprintf("Payment receipt %s", receiptNumber)
	plain := fmt.Sprintf(
		"Hello %s,\n\nWe received your payment of %s. Your receipt number is %s.\n\nThank you.\n",
		name, amount.StringFixed(2), receiptNumber)
	return s.send(ctx, "SendReceipt", email, name, subject, plain)
}

func (s *emailService) send(ctx context.Context, operation, email, name, subject, plain string) error {
	if !s.enabled {
		logger.WithService("email").InfoContext(ctx, "email delivery disabled, skipping",
			"operation", operation, "to", email, "subject", subject)
		return nil
	}

	logger.ExternalServiceCall("sendgrid", operation, "to", email)
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail(name, email), plain, "")
	resp, err := s.client.SendWithContext(ctx, message)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	logger.ExternalServiceResult("sendgrid", operation, err, "to", email)
	if err != nil {
		return fmt.Errorf("sending %s email: %w", operation, err)
	}
	return nil
}
