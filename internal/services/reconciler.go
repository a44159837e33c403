package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"birdcount/internal/domain"
	"birdcount/internal/metrics"
)

// Operation names used for metrics and logs.
const (
	opRegister = "register"
	opPromote  = "promote_to_leader"
	opDemote   = "demote_from_leader"
	opReassign = "reassign_area"
	opDelete   = "delete_identity"
	opEdit     = "edit_record"
)

// reconciler applies identity-scoped state transitions. The backing store has
// no multi-document transactions, so every transition is exactly one document
// write: a crash between steps can only lose the change event, never leave a
// half-applied record.
type reconciler struct {
	repo    domain.ParticipantRepository
	auditor domain.ChangeAuditor
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReconciler creates a ReconciliationService over the given store and change auditor.
func NewReconciler(
	repo domain.ParticipantRepository,
	auditor domain.ChangeAuditor,
	logger *slog.Logger,
	m *metrics.Metrics,
) domain.ReconciliationService {
	return &reconciler{
		repo:    repo,
		auditor: auditor,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

func (r *reconciler) Register(ctx context.Context, year int, p *domain.Participant, actor string) (rec *domain.Participant, changed bool, err error) {
	defer func() { r.observe(opRegister, changed, err) }()

	if p == nil {
		return nil, false, fmt.Errorf("%w: participant is required", domain.ErrInvalidInput)
	}
	identity := p.Identity()
	active, err := r.findActive(ctx, year, identity)
	if err != nil {
		return nil, false, err
	}
	if len(active) > 0 {
		return nil, false, fmt.Errorf("%w: %s is already registered for %d", domain.ErrDuplicateIdentity, identity, year)
	}

	now := r.now()
	rec = domain.NewParticipant(year,
		strings.TrimSpace(p.FirstName),
		strings.TrimSpace(p.LastName),
		strings.TrimSpace(p.Email),
		p.PreferredArea,
		maps.Clone(p.Attributes),
		now, now,
	)
	id, err := r.repo.Create(ctx, year, rec)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			return nil, false, fmt.Errorf("%w: %s is already registered for %d", domain.ErrDuplicateIdentity, identity, year)
		}
		return nil, false, fmt.Errorf("create participant: %w", err)
	}
	rec.ID = id

	err = r.record(ctx, year, &domain.ChangeEvent{
		Kind:          domain.ChangeParticipantRegistered,
		ParticipantID: rec.ID,
		Identity:      rec.Identity(),
		AreaCode:      rec.PreferredArea,
		Actor:         actor,
	})
	return rec, true, err
}

func (r *reconciler) PromoteToLeader(ctx context.Context, year int, identity domain.Identity, area, actor string) (rec *domain.Participant, changed bool, err error) {
	defer func() { r.observe(opPromote, changed, err) }()

	area = domain.NormalizeArea(area)
	if area == "" {
		return nil, false, fmt.Errorf("%w: area code is required", domain.ErrInvalidInput)
	}
	p, err := r.resolve(ctx, year, identity)
	if err != nil {
		return nil, false, err
	}
	if p.Leadership.IsLeader {
		if p.Leadership.AssignedArea == area {
			return p, false, nil
		}
		return nil, false, &domain.AreaAlreadyLedError{Identity: p.Identity(), Area: p.Leadership.AssignedArea}
	}

	previousArea := p.PreferredArea
	now := r.now()
	p.Leadership.IsLeader = true
	p.Leadership.AssignedArea = area
	p.Leadership.AssignedBy = actor
	p.Leadership.AssignedAt = &now
	// A leader is always registered in the area they lead.
	p.PreferredArea = area
	p.UpdatedAt = now
	if err := r.repo.Put(ctx, year, p); err != nil {
		return nil, false, fmt.Errorf("promote to leader: %w", err)
	}

	err = r.record(ctx, year, &domain.ChangeEvent{
		Kind:          domain.ChangeLeaderPromoted,
		ParticipantID: p.ID,
		Identity:      p.Identity(),
		AreaCode:      area,
		PreviousArea:  otherArea(previousArea, area),
		WasLeader:     false,
		IsLeader:      true,
		Actor:         actor,
	})
	return p, true, err
}

func (r *reconciler) DemoteFromLeader(ctx context.Context, year int, identity domain.Identity, actor string) (rec *domain.Participant, changed bool, err error) {
	defer func() { r.observe(opDemote, changed, err) }()

	p, err := r.resolve(ctx, year, identity)
	if err != nil {
		return nil, false, err
	}
	if !p.Leadership.IsLeader {
		return p, false, nil
	}

	ledArea := p.Leadership.AssignedArea
	now := r.now()
	clearLeadership(p, actor, now)
	p.UpdatedAt = now
	if err := r.repo.Put(ctx, year, p); err != nil {
		return nil, false, fmt.Errorf("demote from leader: %w", err)
	}

	err = r.record(ctx, year, &domain.ChangeEvent{
		Kind:          domain.ChangeLeaderDemoted,
		ParticipantID: p.ID,
		Identity:      p.Identity(),
		AreaCode:      ledArea,
		WasLeader:     true,
		IsLeader:      false,
		Actor:         actor,
	})
	return p, true, err
}

func (r *reconciler) ReassignArea(ctx context.Context, year int, identity domain.Identity, newArea string, retainLeadership bool, actor string) (rec *domain.Participant, changed bool, err error) {
	defer func() { r.observe(opReassign, changed, err) }()

	newArea = domain.NormalizeArea(newArea)
	if newArea == "" {
		return nil, false, fmt.Errorf("%w: area code is required", domain.ErrInvalidInput)
	}
	p, err := r.resolve(ctx, year, identity)
	if err != nil {
		return nil, false, err
	}
	if p.PreferredArea == newArea {
		return nil, false, fmt.Errorf("%w: %s is already in area %s", domain.ErrSameArea, p.Identity(), newArea)
	}

	previousArea := p.PreferredArea
	wasLeader := p.Leadership.IsLeader
	now := r.now()
	p.PreferredArea = newArea
	if wasLeader {
		if retainLeadership {
			p.Leadership.AssignedArea = newArea
			p.Leadership.AssignedBy = actor
			p.Leadership.AssignedAt = &now
		} else {
			clearLeadership(p, actor, now)
		}
	}
	p.UpdatedAt = now
	if err := r.repo.Put(ctx, year, p); err != nil {
		return nil, false, fmt.Errorf("reassign area: %w", err)
	}

	err = r.record(ctx, year, &domain.ChangeEvent{
		Kind:          domain.ChangeAreaReassigned,
		ParticipantID: p.ID,
		Identity:      p.Identity(),
		AreaCode:      newArea,
		PreviousArea:  previousArea,
		WasLeader:     wasLeader,
		IsLeader:      p.Leadership.IsLeader,
		Actor:         actor,
	})
	return p, true, err
}

func (r *reconciler) DeleteIdentity(ctx context.Context, year int, identity domain.Identity, reason, actor string) (rec *domain.Participant, changed bool, err error) {
	defer func() { r.observe(opDelete, changed, err) }()

	active, err := r.findActive(ctx, year, identity)
	if err != nil {
		return nil, false, err
	}
	switch len(active) {
	case 0:
		return nil, false, nil
	case 1:
	default:
		return nil, false, ambiguous(identity, active)
	}

	p := active[0]
	wasLeader := p.Leadership.IsLeader
	area := p.PreferredArea
	if wasLeader {
		area = p.Leadership.AssignedArea
	}
	removed, err := r.repo.SoftDelete(ctx, year, p.ID, domain.SoftDelete{
		Reason: reason,
		Actor:  actor,
		At:     r.now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("soft delete participant: %w", err)
	}

	err = r.record(ctx, year, &domain.ChangeEvent{
		Kind:          domain.ChangeIdentityRemoved,
		ParticipantID: removed.ID,
		Identity:      removed.Identity(),
		AreaCode:      area,
		WasLeader:     wasLeader,
		IsLeader:      false,
		Actor:         actor,
		Reason:        reason,
	})
	return removed, true, err
}

func (r *reconciler) EditRecord(ctx context.Context, year int, id string, changes domain.Changes, actor string) (rec *domain.Participant, changed bool, err error) {
	defer func() { r.observe(opEdit, changed, err) }()

	p, err := r.repo.Get(ctx, year, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, fmt.Errorf("get participant: %w", err)
	}
	if !p.Active() {
		return nil, false, domain.ErrRecordRemoved
	}

	next := p.Clone()
	fields := applyChanges(next, changes)
	if len(fields) == 0 {
		return p, false, nil
	}
	if changes.TouchesIdentity() && !domain.SameIdentity(p.Identity(), next.Identity()) {
		active, err := r.findActive(ctx, year, next.Identity())
		if err != nil {
			return nil, false, err
		}
		for _, other := range active {
			if other.ID != p.ID {
				return nil, false, fmt.Errorf("%w: %s is already registered for %d", domain.ErrDuplicateIdentity, next.Identity(), year)
			}
		}
	}

	next.UpdatedAt = r.now()
	if err := r.repo.Put(ctx, year, next); err != nil {
		return nil, false, fmt.Errorf("update participant: %w", err)
	}

	err = r.record(ctx, year, &domain.ChangeEvent{
		Kind:          domain.ChangeRecordEdited,
		ParticipantID: next.ID,
		Identity:      next.Identity(),
		AreaCode:      next.PreferredArea,
		WasLeader:     next.Leadership.IsLeader,
		IsLeader:      next.Leadership.IsLeader,
		Actor:         actor,
		ChangedFields: fields,
	})
	return next, true, err
}

func (r *reconciler) ListParticipants(ctx context.Context, year int, area string) ([]*domain.Participant, error) {
	var (
		all []*domain.Participant
		err error
	)
	if area = domain.NormalizeArea(area); area == "" {
		all, err = r.repo.List(ctx, year)
	} else {
		all, err = r.repo.FindByArea(ctx, year, area)
	}
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]*domain.Participant, 0, len(all))
	for _, p := range all {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

// CheckInvariants audits a whole year. It never writes.
func (r *reconciler) CheckInvariants(ctx context.Context, year int) ([]domain.Violation, error) {
	all, err := r.repo.List(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	violations := make([]domain.Violation, 0)
	byKey := make(map[domain.IdentityKey][]*domain.Participant)
	for _, p := range all {
		switch {
		case !p.Active() && (p.Leadership.IsLeader || p.Leadership.AssignedArea != ""):
			violations = append(violations, domain.Violation{
				Invariant:      3,
				ParticipantIDs: []string{p.ID},
				Detail:         fmt.Sprintf("removed record %s still carries leadership of %q", p.Identity(), p.Leadership.AssignedArea),
			})
		case p.Active() && p.Leadership.IsLeader && p.Leadership.AssignedArea == "":
			violations = append(violations, domain.Violation{
				Invariant:      2,
				ParticipantIDs: []string{p.ID},
				Detail:         fmt.Sprintf("leader %s has no assigned area", p.Identity()),
			})
		}
		if !p.Active() {
			continue
		}
		if key, err := p.Identity().Key(); err == nil {
			byKey[key] = append(byKey[key], p)
		}
	}

	keys := make([]domain.IdentityKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		group := byKey[k]
		if len(group) < 2 {
			continue
		}
		violations = append(violations, domain.Violation{
			Invariant:      5,
			ParticipantIDs: participantIDs(group),
			Detail:         fmt.Sprintf("%d active records for %s", len(group), group[0].Identity()),
		})
		var leaders []*domain.Participant
		for _, p := range group {
			if p.Leadership.IsLeader {
				leaders = append(leaders, p)
			}
		}
		if len(leaders) > 1 {
			violations = append(violations, domain.Violation{
				Invariant:      1,
				ParticipantIDs: participantIDs(leaders),
				Detail:         fmt.Sprintf("%s holds %d active leaderships", group[0].Identity(), len(leaders)),
			})
		}
	}

	for _, v := range violations {
		r.metrics.ObserveViolation(strconv.Itoa(v.Invariant))
		r.logger.WarnContext(ctx, "invariant violation", "year", year, "invariant", v.Invariant, "participant_ids", v.ParticipantIDs)
	}
	return violations, nil
}

// findActive returns the active records of the year matching identity.
func (r *reconciler) findActive(ctx context.Context, year int, identity domain.Identity) ([]*domain.Participant, error) {
	if _, err := identity.Key(); err != nil {
		return nil, err
	}
	matches, err := r.repo.FindByIdentity(ctx, year, identity)
	if err != nil {
		return nil, fmt.Errorf("find by identity: %w", err)
	}
	active := make([]*domain.Participant, 0, len(matches))
	for _, p := range matches {
		// Stores may match loosely; re-check with the canonical rule.
		if p.Active() && domain.SameIdentity(p.Identity(), identity) {
			active = append(active, p)
		}
	}
	return active, nil
}

// resolve returns the single active record for identity.
func (r *reconciler) resolve(ctx context.Context, year int, identity domain.Identity) (*domain.Participant, error) {
	active, err := r.findActive(ctx, year, identity)
	if err != nil {
		return nil, err
	}
	switch len(active) {
	case 0:
		return nil, fmt.Errorf("%w: %s in %d", domain.ErrIdentityNotFound, identity, year)
	case 1:
		return active[0], nil
	default:
		return nil, ambiguous(identity, active)
	}
}

// record appends ev to the change log. The store write has already happened,
// so a failure here is returned alongside the updated record.
func (r *reconciler) record(ctx context.Context, year int, ev *domain.ChangeEvent) error {
	if err := r.auditor.Append(ctx, year, ev); err != nil {
		r.logger.ErrorContext(ctx, "change event not recorded",
			"year", year,
			"kind", ev.Kind,
			"participant_id", ev.ParticipantID,
			"err", err,
		)
		return fmt.Errorf("record %s: %w", ev.Kind, err)
	}
	r.logger.InfoContext(ctx, "participant changed",
		"year", year,
		"kind", ev.Kind,
		"participant_id", ev.ParticipantID,
		"area", ev.AreaCode,
		"actor", ev.Actor,
	)
	return nil
}

func (r *reconciler) observe(op string, changed bool, err error) {
	switch {
	case err != nil && !changed:
		r.metrics.ObserveOperation(op, metrics.OutcomeError)
	case changed:
		r.metrics.ObserveOperation(op, metrics.OutcomeChanged)
	default:
		r.metrics.ObserveOperation(op, metrics.OutcomeNoop)
	}
}

func clearLeadership(p *domain.Participant, actor string, at time.Time) {
	p.Leadership.IsLeader = false
	p.Leadership.AssignedArea = ""
	p.Leadership.RemovedBy = actor
	p.Leadership.RemovedAt = &at
}

// applyChanges writes the non-nil fields of c into p and returns the names of
// fields whose value actually changed.
func applyChanges(p *domain.Participant, c domain.Changes) []string {
	var fields []string
	set := func(name string, dst *string, v *string) {
		if v == nil {
			return
		}
		nv := strings.TrimSpace(*v)
		if nv == *dst {
			return
		}
		*dst = nv
		fields = append(fields, name)
	}
	set("first_name", &p.FirstName, c.FirstName)
	set("last_name", &p.LastName, c.LastName)
	set("email", &p.Email, c.Email)

	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.Attributes[k]
		old, exists := p.Attributes[k]
		if v == nil {
			if exists {
				delete(p.Attributes, k)
				fields = append(fields, "attributes."+k)
			}
			continue
		}
		if exists && reflect.DeepEqual(old, v) {
			continue
		}
		if p.Attributes == nil {
			p.Attributes = make(map[string]any)
		}
		p.Attributes[k] = v
		fields = append(fields, "attributes."+k)
	}
	return fields
}

func ambiguous(identity domain.Identity, active []*domain.Participant) error {
	return &domain.AmbiguousIdentityError{Identity: identity, IDs: participantIDs(active)}
}

func participantIDs(ps []*domain.Participant) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func otherArea(previous, current string) string {
	if previous == current {
		return ""
	}
	return previous
}
