package service

import (
	"context"
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"
)

// InviteService отправляет приглашения в гонку по email
type InviteService interface {
	SendRaceInvite(ctx context.Context, toEmail, hostName, joinCode string) error
}

// NoopInviteService используется, когда отправка почты не настроена
type NoopInviteService struct{}

func (s *NoopInviteService) SendRaceInvite(ctx context.Context, toEmail, hostName, joinCode string) error {
	log.Printf("[InviteService] noop send race invite to=%s code=%s", toEmail, joinCode)
	return nil
}

// ResendInviteService отправляет приглашения через Resend REST API
type ResendInviteService struct {
	from   string
	client *resend.Client
}

// NewResendInviteService создает сервис приглашений
func NewResendInviteService(apiKey, from string) (*ResendInviteService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendInviteService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

// SendRaceInvite отправляет письмо с кодом приглашения в гонку
func (s *ResendInviteService) SendRaceInvite(ctx context.Context, toEmail, hostName, joinCode string) error {
	if toEmail == "" || joinCode == "" {
		return fmt.Errorf("toEmail and joinCode are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("%s invites you to a typing race", hostName),
		Text:    fmt.Sprintf("%s invites you to a typing race. Join with code %s.", hostName, joinCode),
		Html: fmt.Sprintf("<p>%s invites you to a typing race.</p><p>Join with code <strong>%s</strong>.</p>",
			hostName, joinCode),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	return nil
}
