package domain

import (
	"context"
	"maps"
	"time"
)

// Status is the lifecycle marker of a participant record.
type Status string

const (
	StatusActive  Status = "active"
	StatusRemoved Status = "removed"
)

// Leadership is the optional leader role embedded in a participant record.
// swagger:model Leadership
type Leadership struct {
	IsLeader     bool       `json:"is_leader"`
	AssignedArea string     `json:"assigned_area,omitempty"`
	AssignedBy   string     `json:"leadership_assigned_by,omitempty"`
	AssignedAt   *time.Time `json:"leadership_assigned_at,omitempty"`
	RemovedBy    string     `json:"leadership_removed_by,omitempty"`
	RemovedAt    *time.Time `json:"leadership_removed_at,omitempty"`
}

// Participant is one person's registration for one count year.
// Attributes carries registration fields (phone, equipment, interests...) the
// reconciliation engine never inspects.
// swagger:model Participant
type Participant struct {
	ID            string         `json:"id"`
	Year          int            `json:"year"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Email         string         `json:"email"`
	PreferredArea string         `json:"preferred_area"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Leadership    Leadership     `json:"leadership"`
	Status        Status         `json:"status"`
	RemovedReason string         `json:"removed_reason,omitempty"`
	RemovedBy     string         `json:"removed_by,omitempty"`
	RemovedAt     *time.Time     `json:"removed_at,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewParticipant returns an active, non-leader participant. ID is set by the repository on create.
func NewParticipant(year int, firstName, lastName, email, area string, attributes map[string]any, createdAt, updatedAt time.Time) *Participant {
	return &Participant{
		Year:          year,
		FirstName:     firstName,
		LastName:      lastName,
		Email:         email,
		PreferredArea: NormalizeArea(area),
		Attributes:    attributes,
		Status:        StatusActive,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// Identity returns the participant's identity tuple.
func (p *Participant) Identity() Identity {
	return Identity{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
}

// Active reports whether the record has not been removed.
func (p *Participant) Active() bool {
	return p.Status == StatusActive
}

// Clone returns a deep copy so callers can mutate a record without touching the stored one.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	c := *p
	c.Attributes = maps.Clone(p.Attributes)
	c.Leadership.AssignedAt = cloneTime(p.Leadership.AssignedAt)
	c.Leadership.RemovedAt = cloneTime(p.Leadership.RemovedAt)
	c.RemovedAt = cloneTime(p.RemovedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Changes is a selective update for a participant record. Nil fields are left
// untouched. In Attributes a key mapped to nil deletes that attribute.
type Changes struct {
	FirstName  *string        `json:"first_name,omitempty"`
	LastName   *string        `json:"last_name,omitempty"`
	Email      *string        `json:"email,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// TouchesIdentity reports whether the changes include an identity field.
func (c Changes) TouchesIdentity() bool {
	return c.FirstName != nil || c.LastName != nil || c.Email != nil
}

// SoftDelete describes a removal. Stores apply it and clear any leadership in one write.
type SoftDelete struct {
	Reason string
	Actor  string
	At     time.Time
}

// ParticipantRepository is the document store the reconciliation engine writes through.
// Every method is scoped to one year partition.
type ParticipantRepository interface {
	// FindByIdentity returns every record of the year whose normalized identity matches, any status.
	FindByIdentity(ctx context.Context, year int, identity Identity) ([]*Participant, error)
	// FindByArea returns records whose preferred or assigned area is area.
	FindByArea(ctx context.Context, year int, area string) ([]*Participant, error)
	List(ctx context.Context, year int) ([]*Participant, error)
	// ListByIdentityAcrossYears is a read-only lookup over every year partition.
	ListByIdentityAcrossYears(ctx context.Context, identity Identity) ([]*Participant, error)
	Get(ctx context.Context, year int, id string) (*Participant, error)
	// Create stores p, sets its ID and Version, and returns the ID. An active
	// record whose identity is already active in the year yields ErrDuplicateIdentity.
	Create(ctx context.Context, year int, p *Participant) (string, error)
	// Put writes the whole record if its Version still matches the stored one,
	// then increments Version. Returns ErrStaleRecord on mismatch.
	Put(ctx context.Context, year int, p *Participant) error
	// SoftDelete flips the record to removed, stamps the removal and clears
	// leadership fields in a single write. It returns the stored result.
	SoftDelete(ctx context.Context, year int, id string, del SoftDelete) (*Participant, error)
}

// Violation is one broken record-set invariant found by an audit of a year.
// swagger:model Violation
type Violation struct {
	Invariant      int      `json:"invariant"`
	ParticipantIDs []string `json:"participant_ids"`
	Detail         string   `json:"detail"`
}

// ReconciliationService keeps identity and leadership state consistent within a year.
// Mutating operations return (record, changed, err); changed is false for idempotent no-ops.
type ReconciliationService interface {
	Register(ctx context.Context, year int, p *Participant, actor string) (*Participant, bool, error)
	PromoteToLeader(ctx context.Context, year int, identity Identity, area, actor string) (*Participant, bool, error)
	DemoteFromLeader(ctx context.Context, year int, identity Identity, actor string) (*Participant, bool, error)
	ReassignArea(ctx context.Context, year int, identity Identity, newArea string, retainLeadership bool, actor string) (*Participant, bool, error)
	// DeleteIdentity returns a nil record and changed=false when nothing active matched.
	DeleteIdentity(ctx context.Context, year int, identity Identity, reason, actor string) (*Participant, bool, error)
	EditRecord(ctx context.Context, year int, id string, changes Changes, actor string) (*Participant, bool, error)
	ListParticipants(ctx context.Context, year int, area string) ([]*Participant, error)
	CheckInvariants(ctx context.Context, year int) ([]Violation, error)
}

// ParticipantDirectory answers read-only questions across year partitions.
type ParticipantDirectory interface {
	// Latest returns the most recent year's record for identity, or ErrIdentityNotFound.
	Latest(ctx context.Context, identity Identity) (*Participant, error)
	// History returns one record per year for identity, newest first.
	History(ctx context.Context, identity Identity) ([]*Participant, error)
}
