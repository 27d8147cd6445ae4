package email

import (
	"context"
	"fmt"
	"net/smtp"

	"returns-backend/pkg/logger"
)

// EmailRequest is a generic outbound message
type EmailRequest struct {
	To      []string
	Subject string
	Body    string
}

// EmailService sends operational notifications. Only plain-text mail is
// needed; rendering richer templates is up to the caller.
type EmailService interface {
	SendEmail(ctx context.Context, req EmailRequest) error
}

type smtpEmailService struct {
	smtpAddr string
	smtpFrom string
}

// NewSMTPEmailService returns an EmailService backed by a plain SMTP relay.
// Intended for the dev mailhog setup; production swaps the relay address.
func NewSMTPEmailService(smtpHost, smtpPort, from string) EmailService {
	if from == "" {
		from = "noreply@returns.dev"
	}
	return &smtpEmailService{
		smtpAddr: smtpHost + ":" + smtpPort,
		smtpFrom: from,
	}
}

func (s *smtpEmailService) SendEmail(ctx context.Context, req EmailRequest) error {
	if len(req.To) == 0 {
		return fmt.Errorf("email request has no recipients")
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.smtpFrom, req.To[0], req.Subject, req.Body))

	if err := smtp.SendMail(s.smtpAddr, nil, s.smtpFrom, req.To, msg); err != nil {
		logger.Info("Failed to send email", map[string]interface{}{
			"error":     err.Error(),
			"to":        req.To[0],
			"smtp_addr": s.smtpAddr,
		})
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
