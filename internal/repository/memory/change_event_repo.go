package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"birdcount/internal/domain"
)

type changeEventRepository struct {
	mu     sync.RWMutex
	seq    int64
	events []*domain.ChangeEvent
}

// NewChangeEventRepository returns an empty in-memory domain.ChangeEventRepository.
func NewChangeEventRepository() domain.ChangeEventRepository {
	return &changeEventRepository{}
}

func (r *changeEventRepository) Append(_ context.Context, ev *domain.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ev.ID = uuid.NewString()
	ev.Seq = r.seq
	stored := *ev
	stored.ChangedFields = append([]string(nil), ev.ChangedFields...)
	r.events = append(r.events, &stored)
	return nil
}

func (r *changeEventRepository) ListSince(_ context.Context, year int, area string, since time.Time) ([]*domain.ChangeEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ChangeEvent, 0)
	for _, ev := range r.events {
		if ev.Year != year || ev.OccurredAt.Before(since) || !ev.TouchesArea(area) {
			continue
		}
		c := *ev
		c.ChangedFields = append([]string(nil), ev.ChangedFields...)
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}
