// Package memory holds in-memory repositories. They back the "memory" store
// driver and double as fakes in service tests. Records are copied on the way
// in and out so callers never alias stored state.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"birdcount/internal/domain"
)

type participantRepository struct {
	mu     sync.RWMutex
	byYear map[int]map[string]*domain.Participant
}

// NewParticipantRepository returns an empty in-memory domain.ParticipantRepository.
func NewParticipantRepository() domain.ParticipantRepository {
	return &participantRepository{byYear: make(map[int]map[string]*domain.Participant)}
}

func (r *participantRepository) partition(year int) map[string]*domain.Participant {
	part, ok := r.byYear[year]
	if !ok {
		part = make(map[string]*domain.Participant)
		r.byYear[year] = part
	}
	return part
}

func (r *participantRepository) FindByIdentity(_ context.Context, year int, identity domain.Identity) ([]*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Participant, 0)
	for _, p := range r.byYear[year] {
		if domain.SameIdentity(p.Identity(), identity) {
			out = append(out, p.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *participantRepository) FindByArea(_ context.Context, year int, area string) ([]*domain.Participant, error) {
	area = domain.NormalizeArea(area)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Participant, 0)
	for _, p := range r.byYear[year] {
		if p.PreferredArea == area || p.Leadership.AssignedArea == area {
			out = append(out, p.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *participantRepository) List(_ context.Context, year int) ([]*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Participant, 0, len(r.byYear[year]))
	for _, p := range r.byYear[year] {
		out = append(out, p.Clone())
	}
	sortByCreated(out)
	return out, nil
}

func (r *participantRepository) ListByIdentityAcrossYears(_ context.Context, identity domain.Identity) ([]*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Participant, 0)
	for _, part := range r.byYear {
		for _, p := range part {
			if domain.SameIdentity(p.Identity(), identity) {
				out = append(out, p.Clone())
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *participantRepository) Get(_ context.Context, year int, id string) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byYear[year][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *participantRepository) Create(_ context.Context, year int, p *domain.Participant) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	part := r.partition(year)
	if p.Active() {
		// Same guard as the partial unique index in Postgres.
		for _, existing := range part {
			if existing.Active() && domain.SameIdentity(existing.Identity(), p.Identity()) {
				return "", domain.ErrDuplicateIdentity
			}
		}
	}
	stored := p.Clone()
	stored.ID = uuid.NewString()
	stored.Year = year
	stored.Version = 1
	part[stored.ID] = stored
	p.ID = stored.ID
	p.Year = year
	p.Version = stored.Version
	return stored.ID, nil
}

func (r *participantRepository) Put(_ context.Context, year int, p *domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	part := r.partition(year)
	existing, ok := part[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.Version != p.Version {
		return domain.ErrStaleRecord
	}
	stored := p.Clone()
	stored.Year = year
	stored.Version = existing.Version + 1
	part[p.ID] = stored
	p.Version = stored.Version
	return nil
}

func (r *participantRepository) SoftDelete(_ context.Context, year int, id string, del domain.SoftDelete) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byYear[year][id]
	if !ok || !existing.Active() {
		return nil, domain.ErrNotFound
	}
	next := existing.Clone()
	at := del.At
	if next.Leadership.IsLeader {
		next.Leadership.RemovedBy = del.Actor
		next.Leadership.RemovedAt = &at
	}
	next.Leadership.IsLeader = false
	next.Leadership.AssignedArea = ""
	next.Status = domain.StatusRemoved
	next.RemovedReason = del.Reason
	next.RemovedBy = del.Actor
	next.RemovedAt = &at
	next.UpdatedAt = at
	next.Version = existing.Version + 1
	r.byYear[year][id] = next
	return next.Clone(), nil
}

func sortByCreated(ps []*domain.Participant) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
