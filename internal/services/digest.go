package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"birdcount/internal/domain"
	"birdcount/internal/metrics"
)

// checkpointLag is how far behind the clock a digest checkpoint is set. Events
// are stamped before their insert commits; one stamped just before a checkpoint
// but committed after the read is picked up by the next run instead of lost.
const checkpointLag = 5 * time.Second

type digestService struct {
	repo         domain.ParticipantRepository
	auditor      domain.ChangeAuditor
	emailService domain.EmailService
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	lag          time.Duration
}

// NewDigestService returns a DigestService that mails area changes to the area's leaders.
func NewDigestService(
	repo domain.ParticipantRepository,
	auditor domain.ChangeAuditor,
	emailService domain.EmailService,
	logger *slog.Logger,
	m *metrics.Metrics,
) domain.DigestService {
	return &digestService{
		repo:         repo,
		auditor:      auditor,
		emailService: emailService,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
		lag:          checkpointLag,
	}
}

// SendAreaDigest mails every change to area since the given time. The
// checkpoint is taken before the change log is read and set back by the
// commit lag, so an event landing mid-run is reported again next time rather
// than lost. On error no checkpoint is returned and the caller keeps its old one.
func (d *digestService) SendAreaDigest(ctx context.Context, year int, area string, since time.Time) (*domain.DigestResult, error) {
	area = domain.NormalizeArea(area)
	if area == "" {
		return nil, fmt.Errorf("%w: area code is required", domain.ErrInvalidInput)
	}

	checkpoint := d.now().Add(-d.lag)
	events, err := d.auditor.Since(ctx, year, area, since)
	if err != nil {
		return nil, fmt.Errorf("read change log: %w", err)
	}
	result := &domain.DigestResult{Checkpoint: checkpoint, Events: len(events)}
	if len(events) == 0 {
		return result, nil
	}

	members, err := d.repo.FindByArea(ctx, year, area)
	if err != nil {
		return nil, fmt.Errorf("find area leaders: %w", err)
	}
	lines := make([]domain.DigestLine, 0, len(events))
	for _, ev := range events {
		lines = append(lines, digestLine(ev))
	}

	for _, p := range members {
		if !p.Active() || !p.Leadership.IsLeader || p.Leadership.AssignedArea != area {
			continue
		}
		if strings.TrimSpace(p.Email) == "" {
			d.logger.WarnContext(ctx, "leader has no email, skipping digest", "year", year, "area", area, "participant_id", p.ID)
			continue
		}
		err := d.emailService.SendLeaderDigest(ctx, &domain.LeaderDigestEmailData{
			Email:     p.Email,
			FirstName: p.FirstName,
			Year:      year,
			Area:      area,
			Since:     since,
			Changes:   lines,
		})
		if err != nil {
			return nil, fmt.Errorf("send digest to %s: %w", p.Email, err)
		}
		result.Sent++
		d.metrics.IncrementDigestsSent()
	}
	return result, nil
}

func digestLine(ev *domain.ChangeEvent) domain.DigestLine {
	line := domain.DigestLine{
		Kind:       ev.Kind,
		Name:       strings.TrimSpace(ev.Identity.FirstName + " " + ev.Identity.LastName),
		Email:      ev.Identity.Email,
		OccurredAt: ev.OccurredAt,
	}
	switch ev.Kind {
	case domain.ChangeParticipantRegistered:
		line.Summary = fmt.Sprintf("registered for area %s", ev.AreaCode)
	case domain.ChangeLeaderPromoted:
		line.Summary = fmt.Sprintf("now leads area %s", ev.AreaCode)
	case domain.ChangeLeaderDemoted:
		line.Summary = fmt.Sprintf("no longer leads area %s", ev.AreaCode)
	case domain.ChangeAreaReassigned:
		line.Summary = fmt.Sprintf("moved from area %s to area %s", ev.PreviousArea, ev.AreaCode)
		if ev.IsLeader {
			line.Summary += " as leader"
		} else if ev.WasLeader {
			line.Summary += " and no longer leads"
		}
	case domain.ChangeIdentityRemoved:
		line.Summary = "was removed"
		if ev.WasLeader {
			line.Summary = fmt.Sprintf("was removed and no longer leads area %s", ev.AreaCode)
		}
	case domain.ChangeRecordEdited:
		line.Summary = "updated " + strings.Join(ev.ChangedFields, ", ")
	default:
		line.Summary = string(ev.Kind)
	}
	return line
}
