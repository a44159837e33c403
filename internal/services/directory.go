package services

import (
	"context"
	"fmt"
	"sort"

	"birdcount/internal/domain"
)

type participantDirectory struct {
	repo domain.ParticipantRepository
}

// NewParticipantDirectory returns a read-only ParticipantDirectory. Returning
// volunteers appear once per year; reads collapse them instead of writes
// enforcing anything across years.
func NewParticipantDirectory(repo domain.ParticipantRepository) domain.ParticipantDirectory {
	return &participantDirectory{repo: repo}
}

func (d *participantDirectory) Latest(ctx context.Context, identity domain.Identity) (*domain.Participant, error) {
	history, err := d.History(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrIdentityNotFound, identity)
	}
	return history[0], nil
}

func (d *participantDirectory) History(ctx context.Context, identity domain.Identity) ([]*domain.Participant, error) {
	if _, err := identity.Key(); err != nil {
		return nil, err
	}
	all, err := d.repo.ListByIdentityAcrossYears(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("list across years: %w", err)
	}

	byYear := make(map[int]*domain.Participant)
	for _, p := range all {
		if !domain.SameIdentity(p.Identity(), identity) {
			continue
		}
		if best, ok := byYear[p.Year]; !ok || preferRecord(p, best) {
			byYear[p.Year] = p
		}
	}
	out := make([]*domain.Participant, 0, len(byYear))
	for _, p := range byYear {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

// preferRecord picks between two records of the same year: active beats
// removed, then the most recently updated wins.
func preferRecord(candidate, current *domain.Participant) bool {
	if candidate.Active() != current.Active() {
		return candidate.Active()
	}
	return candidate.UpdatedAt.After(current.UpdatedAt)
}
