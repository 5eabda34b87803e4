// Package email delivers transactional mail for the conversation engine.
// Delivery is best-effort; a failed send never fails the request that
// triggered it.
package email

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/resendlabs/resend-go"

	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
)

// Sender delivers engine emails.
type Sender interface {
	SendDiscountCode(toEmail, code, shopName, fromAddress string) error
	SendWelcome(toEmail, shopName, fromAddress string) error
}

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
	logger *logging.ChanneledLogger
}

// NewSender builds a sender from the RESEND_API_KEY environment variable.
// Without a key it returns a no-op sender so local development works
// without outbound mail.
func NewSender(logger *logging.ChanneledLogger) Sender {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		logger.Email().Warn("RESEND_API_KEY not set, email delivery disabled")
		return &NoopSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		logger: logger,
	}
}

// SendDiscountCode mails an issued discount code to a captured address.
func (s *ResendSender) SendDiscountCode(toEmail, code, shopName, fromAddress string) error {
	params := &resend.SendEmailRequest{
		From:    fromAddress,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Your discount code for %s", shopName),
		Html:    DiscountCodeHTML(code, shopName),
	}

	sent, err := s.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send discount email: %w", err)
	}

	s.logger.Email().Info("Sent discount code email",
		slog.String("emailId", sent.Id),
		slog.String("shopName", shopName))
	return nil
}

// SendWelcome mails a welcome note after an email-only capture.
func (s *ResendSender) SendWelcome(toEmail, shopName, fromAddress string) error {
	params := &resend.SendEmailRequest{
		From:    fromAddress,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Welcome to %s", shopName),
		Html:    WelcomeHTML(shopName),
	}

	sent, err := s.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	s.logger.Email().Info("Sent welcome email",
		slog.String("emailId", sent.Id),
		slog.String("shopName", shopName))
	return nil
}

// NoopSender drops all mail and logs the attempt.
type NoopSender struct {
	logger *logging.ChanneledLogger
}

func (s *NoopSender) SendDiscountCode(toEmail, code, shopName, fromAddress string) error {
	if s.logger != nil {
		s.logger.Email().Debug("Email delivery disabled, dropping discount email",
			slog.String("shopName", shopName))
	}
	return nil
}

func (s *NoopSender) SendWelcome(toEmail, shopName, fromAddress string) error {
	if s.logger != nil {
		s.logger.Email().Debug("Email delivery disabled, dropping welcome email",
			slog.String("shopName", shopName))
	}
	return nil
}
