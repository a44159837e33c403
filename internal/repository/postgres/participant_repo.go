package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"birdcount/internal/domain"
)

// Postgres error codes mapped onto domain errors.
const (
	// uniqueViolation is raised by the participants_active_identity_idx partial unique index.
	uniqueViolation = "23505"
	// invalidTextRepresentation is raised when an id is not a valid UUID.
	invalidTextRepresentation = "22P02"
)

const participantColumns = `id, year, first_name, last_name, email, preferred_area, attributes,
		is_leader, assigned_area, leadership_assigned_by, leadership_assigned_at,
		leadership_removed_by, leadership_removed_at,
		status, removed_reason, removed_by, removed_at, version, created_at, updated_at`

type participantRepository struct {
	DB *sql.DB
}

// NewParticipantRepository returns a domain.ParticipantRepository implemented with Postgres.
func NewParticipantRepository(db *sql.DB) domain.ParticipantRepository {
	return &participantRepository{DB: db}
}

func (r *participantRepository) FindByIdentity(ctx context.Context, year int, identity domain.Identity) ([]*domain.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE year = $1
		  AND lower(btrim(first_name)) = $2
		  AND lower(btrim(last_name)) = $3
		  AND lower(btrim(email)) = $4
		ORDER BY created_at, id
	`
	return r.query(ctx, query, year,
		domain.Normalize(identity.FirstName),
		domain.Normalize(identity.LastName),
		domain.Normalize(identity.Email),
	)
}

func (r *participantRepository) FindByArea(ctx context.Context, year int, area string) ([]*domain.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE year = $1 AND (preferred_area = $2 OR assigned_area = $2)
		ORDER BY created_at, id
	`
	return r.query(ctx, query, year, domain.NormalizeArea(area))
}

func (r *participantRepository) List(ctx context.Context, year int) ([]*domain.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE year = $1
		ORDER BY created_at, id
	`
	return r.query(ctx, query, year)
}

func (r *participantRepository) ListByIdentityAcrossYears(ctx context.Context, identity domain.Identity) ([]*domain.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE lower(btrim(first_name)) = $1
		  AND lower(btrim(last_name)) = $2
		  AND lower(btrim(email)) = $3
		ORDER BY year DESC, updated_at DESC
	`
	return r.query(ctx, query,
		domain.Normalize(identity.FirstName),
		domain.Normalize(identity.LastName),
		domain.Normalize(identity.Email),
	)
}

func (r *participantRepository) Get(ctx context.Context, year int, id string) (*domain.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE year = $1 AND id = $2
	`
	p, err := scanParticipant(r.DB.QueryRowContext(ctx, query, year, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *participantRepository) Create(ctx context.Context, year int, p *domain.Participant) (string, error) {
	attrs, err := marshalAttributes(p.Attributes)
	if err != nil {
		return "", err
	}
	query := `
		INSERT INTO participants (year, first_name, last_name, email, preferred_area, attributes,
			is_leader, assigned_area, leadership_assigned_by, leadership_assigned_at,
			leadership_removed_by, leadership_removed_at,
			status, removed_reason, removed_by, removed_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $18)
		RETURNING id, version
	`
	err = r.DB.QueryRowContext(ctx, query,
		year, p.FirstName, p.LastName, p.Email, p.PreferredArea, attrs,
		p.Leadership.IsLeader, nullString(p.Leadership.AssignedArea),
		nullString(p.Leadership.AssignedBy), nullTime(p.Leadership.AssignedAt),
		nullString(p.Leadership.RemovedBy), nullTime(p.Leadership.RemovedAt),
		string(p.Status), nullString(p.RemovedReason), nullString(p.RemovedBy), nullTime(p.RemovedAt),
		p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID, &p.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrDuplicateIdentity
		}
		return "", err
	}
	p.Year = year
	return p.ID, nil
}

// Put is a compare-and-swap on version: the UPDATE only matches the row the
// caller read.
func (r *participantRepository) Put(ctx context.Context, year int, p *domain.Participant) error {
	attrs, err := marshalAttributes(p.Attributes)
	if err != nil {
		return err
	}
	query := `
		UPDATE participants SET
			first_name = $4, last_name = $5, email = $6, preferred_area = $7, attributes = $8,
			is_leader = $9, assigned_area = $10,
			leadership_assigned_by = $11, leadership_assigned_at = $12,
			leadership_removed_by = $13, leadership_removed_at = $14,
			status = $15, removed_reason = $16, removed_by = $17, removed_at = $18,
			updated_at = $19, version = version + 1
		WHERE year = $1 AND id = $2 AND version = $3
		RETURNING version
	`
	var version int64
	err = r.DB.QueryRowContext(ctx, query,
		year, p.ID, p.Version,
		p.FirstName, p.LastName, p.Email, p.PreferredArea, attrs,
		p.Leadership.IsLeader, nullString(p.Leadership.AssignedArea),
		nullString(p.Leadership.AssignedBy), nullTime(p.Leadership.AssignedAt),
		nullString(p.Leadership.RemovedBy), nullTime(p.Leadership.RemovedAt),
		string(p.Status), nullString(p.RemovedReason), nullString(p.RemovedBy), nullTime(p.RemovedAt),
		p.UpdatedAt,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missOrStale(ctx, year, p.ID)
		}
		if isUniqueViolation(err) {
			return domain.ErrDuplicateIdentity
		}
		if isMalformedID(err) {
			return domain.ErrNotFound
		}
		return err
	}
	p.Version = version
	return nil
}

// SoftDelete removes the record and clears its leadership in one UPDATE. The
// CASE expressions read the pre-update is_leader. Only an active row matches,
// so a second removal of the same record reports ErrNotFound.
func (r *participantRepository) SoftDelete(ctx context.Context, year int, id string, del domain.SoftDelete) (*domain.Participant, error) {
	query := `
		UPDATE participants SET
			status = 'removed',
			removed_reason = $3,
			removed_by = $4,
			removed_at = $5,
			leadership_removed_by = CASE WHEN is_leader THEN $4 ELSE leadership_removed_by END,
			leadership_removed_at = CASE WHEN is_leader THEN $5 ELSE leadership_removed_at END,
			is_leader = FALSE,
			assigned_area = NULL,
			updated_at = $5,
			version = version + 1
		WHERE year = $1 AND id = $2 AND status = 'active'
		RETURNING ` + participantColumns
	p, err := scanParticipant(r.DB.QueryRowContext(ctx, query, year, id, del.Reason, del.Actor, del.At))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *participantRepository) missOrStale(ctx context.Context, year int, id string) error {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM participants WHERE year = $1 AND id = $2)`
	if err := r.DB.QueryRowContext(ctx, query, year, id).Scan(&exists); err != nil {
		if isMalformedID(err) {
			return domain.ErrNotFound
		}
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStaleRecord
}

func (r *participantRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*domain.Participant, error) {
	p := &domain.Participant{}
	var (
		attrs                                 []byte
		status                                string
		assignedArea, assignedBy, removedLead sql.NullString
		removedReason, removedBy              sql.NullString
		assignedAt, leadRemovedAt, removedAt  sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Year, &p.FirstName, &p.LastName, &p.Email, &p.PreferredArea, &attrs,
		&p.Leadership.IsLeader, &assignedArea, &assignedBy, &assignedAt,
		&removedLead, &leadRemovedAt,
		&status, &removedReason, &removedBy, &removedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.Status(status)
	p.Leadership.AssignedArea = assignedArea.String
	p.Leadership.AssignedBy = assignedBy.String
	p.Leadership.AssignedAt = timePtr(assignedAt)
	p.Leadership.RemovedBy = removedLead.String
	p.Leadership.RemovedAt = timePtr(leadRemovedAt)
	p.RemovedReason = removedReason.String
	p.RemovedBy = removedBy.String
	p.RemovedAt = timePtr(removedAt)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		if len(p.Attributes) == 0 {
			p.Attributes = nil
		}
	}
	return p, nil
}

func marshalAttributes(attrs map[string]any) ([]byte, error) {
	if len(attrs) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

// isMalformedID reports a non-UUID id. No row can carry it.
func isMalformedID(err error) bool {
	return hasCode(err, invalidTextRepresentation)
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
