package domain

import (
	"context"
	"time"
)

// ChangeKind names the mutation a ChangeEvent records.
type ChangeKind string

const (
	ChangeParticipantRegistered ChangeKind = "participant_registered"
	ChangeLeaderPromoted        ChangeKind = "leader_promoted"
	ChangeLeaderDemoted         ChangeKind = "leader_demoted"
	ChangeAreaReassigned        ChangeKind = "area_reassigned"
	ChangeIdentityRemoved       ChangeKind = "identity_removed"
	ChangeRecordEdited          ChangeKind = "record_edited"
)

// ChangeEvent is one append-only entry of the change log. It carries enough
// detail for a digest to say what changed without diffing full records.
// swagger:model ChangeEvent
type ChangeEvent struct {
	ID            string     `json:"id"`
	Seq           int64      `json:"seq"`
	Year          int        `json:"year"`
	Kind          ChangeKind `json:"kind"`
	ParticipantID string     `json:"participant_id"`
	Identity      Identity   `json:"identity"`
	AreaCode      string     `json:"area_code,omitempty"`
	PreviousArea  string     `json:"previous_area,omitempty"`
	WasLeader     bool       `json:"was_leader"`
	IsLeader      bool       `json:"is_leader"`
	Actor         string     `json:"actor"`
	Reason        string     `json:"reason,omitempty"`
	ChangedFields []string   `json:"changed_fields,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// TouchesArea reports whether the event concerns area, as current or previous area.
// An empty area matches every event.
func (e *ChangeEvent) TouchesArea(area string) bool {
	if area == "" {
		return true
	}
	area = NormalizeArea(area)
	return e.AreaCode == area || e.PreviousArea == area
}

// ChangeEventRepository persists the change log.
type ChangeEventRepository interface {
	// Append stores ev and sets its ID and Seq.
	Append(ctx context.Context, ev *ChangeEvent) error
	// ListSince returns the year's events with OccurredAt >= since touching area
	// (all areas when empty), ordered by OccurredAt then Seq.
	ListSince(ctx context.Context, year int, area string, since time.Time) ([]*ChangeEvent, error)
}

// ChangeAuditor records every mutation emitted by the reconciliation engine.
//
// Consumers must capture their checkpoint before calling Since and persist it
// only after the result has been consumed. Delivery is then at-least-once.
type ChangeAuditor interface {
	Append(ctx context.Context, year int, ev *ChangeEvent) error
	Since(ctx context.Context, year int, area string, since time.Time) ([]*ChangeEvent, error)
}
