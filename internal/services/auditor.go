package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"birdcount/internal/domain"
	"birdcount/internal/metrics"
)

// changeAuditor is append-only and keeps persistence behind the repository
// so tests can swap the log for the in-memory one.
type changeAuditor struct {
	repo    domain.ChangeEventRepository
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewChangeAuditor returns a ChangeAuditor that persists events through repo.
func NewChangeAuditor(repo domain.ChangeEventRepository, logger *slog.Logger, m *metrics.Metrics) domain.ChangeAuditor {
	return &changeAuditor{
		repo:    repo,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

func (a *changeAuditor) Append(ctx context.Context, year int, ev *domain.ChangeEvent) error {
	if ev == nil {
		return fmt.Errorf("change event is nil")
	}
	if ev.Kind == "" {
		return fmt.Errorf("%w: change event kind is required", domain.ErrInvalidInput)
	}
	ev.Year = year
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = a.now()
	}
	ev.AreaCode = domain.NormalizeArea(ev.AreaCode)
	ev.PreviousArea = domain.NormalizeArea(ev.PreviousArea)
	if err := a.repo.Append(ctx, ev); err != nil {
		return fmt.Errorf("append change event: %w", err)
	}
	a.metrics.ObserveChangeEvent(string(ev.Kind))
	a.logger.DebugContext(ctx, "change recorded",
		"year", year,
		"kind", ev.Kind,
		"participant_id", ev.ParticipantID,
		"area", ev.AreaCode,
		"actor", ev.Actor,
	)
	return nil
}

func (a *changeAuditor) Since(ctx context.Context, year int, area string, since time.Time) ([]*domain.ChangeEvent, error) {
	events, err := a.repo.ListSince(ctx, year, domain.NormalizeArea(area), since)
	if err != nil {
		return nil, fmt.Errorf("list change events: %w", err)
	}
	if events == nil {
		events = []*domain.ChangeEvent{}
	}
	return events, nil
}
