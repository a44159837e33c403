package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"birdcount/internal/domain"
)

// Family members share an inbox; Sam appears twice with different emails.
var sequencePeople = []domain.Identity{
	{FirstName: "Mom", LastName: "Jones", Email: "family@x.com"},
	{FirstName: "Dad", LastName: "Jones", Email: "family@x.com"},
	{FirstName: "Kid", LastName: "Jones", Email: "family@x.com"},
	{FirstName: "Sam", LastName: "Lee", Email: "sam@x.com"},
	{FirstName: "Sam", LastName: "Lee", Email: ""},
	{FirstName: "Ana", LastName: "Ruiz", Email: "ana@x.com"},
}

var sequenceAreas = []string{"A", "B", "C", "d"}

// sequenceOutcomes are the rejections a single admin can legitimately hit.
var sequenceOutcomes = []error{
	domain.ErrIdentityNotFound,
	domain.ErrAreaAlreadyLed,
	domain.ErrSameArea,
	domain.ErrDuplicateIdentity,
	domain.ErrRecordRemoved,
	domain.ErrNotFound,
}

func expectedRejection(err error) bool {
	for _, target := range sequenceOutcomes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// randomStep applies one engine operation chosen by rng and returns its name.
func randomStep(ctx context.Context, f *fixture, rng *rand.Rand) (string, error) {
	who := sequencePeople[rng.IntN(len(sequencePeople))]
	area := sequenceAreas[rng.IntN(len(sequenceAreas))]
	switch rng.IntN(6) {
	case 0:
		_, _, err := f.svc.Register(ctx, testYear, &domain.Participant{
			FirstName: who.FirstName, LastName: who.LastName, Email: who.Email, PreferredArea: area,
		}, admin)
		return "register " + who.String(), err
	case 1:
		_, _, err := f.svc.PromoteToLeader(ctx, testYear, who, area, admin)
		return "promote " + who.String() + " to " + area, err
	case 2:
		_, _, err := f.svc.DemoteFromLeader(ctx, testYear, who, admin)
		return "demote " + who.String(), err
	case 3:
		retain := rng.IntN(2) == 0
		_, _, err := f.svc.ReassignArea(ctx, testYear, who, area, retain, admin)
		return fmt.Sprintf("reassign %s to %s retain=%t", who, area, retain), err
	case 4:
		_, _, err := f.svc.DeleteIdentity(ctx, testYear, who, "random", admin)
		return "delete " + who.String(), err
	default:
		all, err := f.store.List(ctx, testYear)
		if err != nil || len(all) == 0 {
			return "edit (empty roster)", err
		}
		target := all[rng.IntN(len(all))]
		changes := domain.Changes{Attributes: map[string]any{"step": rng.IntN(100)}}
		if rng.IntN(2) == 0 {
			changes.FirstName, changes.LastName, changes.Email = &who.FirstName, &who.LastName, &who.Email
		}
		_, _, err = f.svc.EditRecord(ctx, testYear, target.ID, changes, admin)
		return fmt.Sprintf("edit %s as %s", target.ID, who), err
	}
}

func TestReconciler_RandomSequencesKeepInvariants(t *testing.T) {
	const (
		seeds = 50
		steps = 60
	)
	for seed := uint64(1); seed <= seeds; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			for step := range steps {
				op, err := randomStep(ctx, f, rng)
				if err != nil {
					require.Truef(t, expectedRejection(err), "step %d %s: unexpected error %v", step, op, err)
				}
				violations, err := f.svc.CheckInvariants(ctx, testYear)
				require.NoError(t, err)
				require.Emptyf(t, violations, "step %d %s broke invariants", step, op)

				all, err := f.store.List(ctx, testYear)
				require.NoError(t, err)
				for _, p := range all {
					if p.Leadership.IsLeader {
						require.Equalf(t, p.Leadership.AssignedArea, p.PreferredArea,
							"step %d %s: leader %s registered outside the area they lead", step, op, p.ID)
					}
				}
			}
		})
	}
}
