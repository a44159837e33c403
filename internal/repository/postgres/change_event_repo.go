package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"birdcount/internal/domain"
)

type changeEventRepository struct {
	DB *sql.DB
}

// NewChangeEventRepository returns a domain.ChangeEventRepository implemented with Postgres.
// Rows are never updated or deleted.
func NewChangeEventRepository(db *sql.DB) domain.ChangeEventRepository {
	return &changeEventRepository{DB: db}
}

func (r *changeEventRepository) Append(ctx context.Context, ev *domain.ChangeEvent) error {
	query := `
		INSERT INTO change_events (year, kind, participant_id, first_name, last_name, email,
			area_code, previous_area, was_leader, is_leader, actor, reason, changed_fields, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, seq
	`
	return r.DB.QueryRowContext(ctx, query,
		ev.Year, string(ev.Kind), ev.ParticipantID,
		ev.Identity.FirstName, ev.Identity.LastName, ev.Identity.Email,
		ev.AreaCode, ev.PreviousArea, ev.WasLeader, ev.IsLeader,
		ev.Actor, ev.Reason, pq.Array(ev.ChangedFields), ev.OccurredAt,
	).Scan(&ev.ID, &ev.Seq)
}

func (r *changeEventRepository) ListSince(ctx context.Context, year int, area string, since time.Time) ([]*domain.ChangeEvent, error) {
	query := `
		SELECT id, seq, year, kind, participant_id, first_name, last_name, email,
			area_code, previous_area, was_leader, is_leader, actor, reason, changed_fields, occurred_at
		FROM change_events
		WHERE year = $1 AND occurred_at >= $2
		  AND ($3 = '' OR area_code = $3 OR previous_area = $3)
		ORDER BY occurred_at, seq
	`
	rows, err := r.DB.QueryContext(ctx, query, year, since, area)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]*domain.ChangeEvent, 0)
	for rows.Next() {
		ev := &domain.ChangeEvent{}
		var kind string
		var fields []string
		if err := rows.Scan(
			&ev.ID, &ev.Seq, &ev.Year, &kind, &ev.ParticipantID,
			&ev.Identity.FirstName, &ev.Identity.LastName, &ev.Identity.Email,
			&ev.AreaCode, &ev.PreviousArea, &ev.WasLeader, &ev.IsLeader,
			&ev.Actor, &ev.Reason, pq.Array(&fields), &ev.OccurredAt,
		); err != nil {
			return nil, err
		}
		ev.Kind = domain.ChangeKind(kind)
		if len(fields) > 0 {
			ev.ChangedFields = fields
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
