package domain

import (
	"context"
	"time"
)

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// DigestLine is one human-readable change in a leader digest.
type DigestLine struct {
	Kind       ChangeKind
	Name       string
	Email      string
	Summary    string
	OccurredAt time.Time
}

// LeaderDigestEmailData holds data for the area leader digest email.
type LeaderDigestEmailData struct {
	Email     string
	FirstName string
	Year      int
	Area      string
	Since     time.Time
	Changes   []DigestLine
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendLeaderDigest(ctx context.Context, data *LeaderDigestEmailData) error
}

// DigestResult reports one digest run. Checkpoint is the timestamp the caller
// stores as its new "last checked" value once the run succeeded.
type DigestResult struct {
	Checkpoint time.Time `json:"checkpoint"`
	Events     int       `json:"events"`
	Sent       int       `json:"sent"`
}

// DigestService builds and sends per-area change digests to area leaders.
type DigestService interface {
	SendAreaDigest(ctx context.Context, year int, area string, since time.Time) (*DigestResult, error)
}
