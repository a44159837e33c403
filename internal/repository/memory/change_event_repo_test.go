package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdcount/internal/domain"
)

func TestChangeEventRepository_ListSince(t *testing.T) {
	ctx := context.Background()
	repo := NewChangeEventRepository()
	events := []*domain.ChangeEvent{
		{Year: 2025, Kind: domain.ChangeParticipantRegistered, AreaCode: "A", OccurredAt: t0.Add(2 * time.Minute)},
		{Year: 2025, Kind: domain.ChangeAreaReassigned, AreaCode: "B", PreviousArea: "A", OccurredAt: t0.Add(time.Minute)},
		{Year: 2025, Kind: domain.ChangeLeaderPromoted, AreaCode: "C", OccurredAt: t0.Add(time.Minute)},
		{Year: 2024, Kind: domain.ChangeParticipantRegistered, AreaCode: "A", OccurredAt: t0},
	}
	for _, ev := range events {
		require.NoError(t, repo.Append(ctx, ev))
		assert.NotEmpty(t, ev.ID)
	}
	assert.Equal(t, int64(4), events[3].Seq)

	tests := []struct {
		name    string
		area    string
		since   time.Time
		wantSeq []int64
	}{
		{name: "whole year ordered by time then seq", wantSeq: []int64{2, 3, 1}},
		{name: "area matches previous area", area: "a", wantSeq: []int64{2, 1}},
		{name: "since is inclusive", since: t0.Add(2 * time.Minute), wantSeq: []int64{1}},
		{name: "nothing after", since: t0.Add(time.Hour), wantSeq: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListSince(ctx, 2025, tt.area, tt.since)
			require.NoError(t, err)
			seqs := make([]int64, 0, len(got))
			for _, ev := range got {
				seqs = append(seqs, ev.Seq)
			}
			assert.Equal(t, tt.wantSeq, seqs)
		})
	}
}

func TestChangeEventRepository_StoresCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewChangeEventRepository()
	ev := &domain.ChangeEvent{Year: 2025, Kind: domain.ChangeRecordEdited, ChangedFields: []string{"email"}, OccurredAt: t0}
	require.NoError(t, repo.Append(ctx, ev))
	ev.ChangedFields[0] = "mutated"

	got, err := repo.ListSince(ctx, 2025, "", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"email"}, got[0].ChangedFields)
}
