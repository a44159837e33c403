package services

import (
	"context"
	"fmt"
	"log/slog"

	"birdcount/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendLeaderDigest sends an area change digest using the "leader_digest" template.
func (s *emailService) SendLeaderDigest(ctx context.Context, data *domain.LeaderDigestEmailData) error {
	if data == nil {
		return fmt.Errorf("leader digest data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("leader_digest", data)
	if err != nil {
		return fmt.Errorf("failed to render leader_digest template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send leader digest email: %w", err)
	}
	s.logger.InfoContext(ctx, "leader digest sent", "to", data.Email, "area", data.Area, "changes", len(data.Changes))
	return nil
}
