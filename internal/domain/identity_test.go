package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameIdentity(t *testing.T) {
	tests := []struct {
		name string
		a, b Identity
		want bool
	}{
		{
			name: "case and whitespace are ignored",
			a:    Identity{FirstName: "Mom", LastName: "Jones", Email: "family@x.com"},
			b:    Identity{FirstName: " mom ", LastName: "JONES", Email: "Family@X.com "},
			want: true,
		},
		{
			name: "shared email, different first name",
			a:    Identity{FirstName: "Mom", LastName: "Jones", Email: "family@x.com"},
			b:    Identity{FirstName: "Dad", LastName: "Jones", Email: "family@x.com"},
			want: false,
		},
		{
			name: "different email",
			a:    Identity{FirstName: "Alice", LastName: "Smith", Email: "alice@x.com"},
			b:    Identity{FirstName: "Alice", LastName: "Smith", Email: "alice@y.com"},
			want: false,
		},
		{
			name: "both emails empty",
			a:    Identity{FirstName: "Alice", LastName: "Smith"},
			b:    Identity{FirstName: "alice", LastName: "smith", Email: "  "},
			want: true,
		},
		{
			name: "blank first name never matches",
			a:    Identity{LastName: "Smith", Email: "s@x.com"},
			b:    Identity{LastName: "Smith", Email: "s@x.com"},
			want: false,
		},
		{
			name: "blank last name never matches",
			a:    Identity{FirstName: "Alice", LastName: " ", Email: "s@x.com"},
			b:    Identity{FirstName: "Alice", LastName: " ", Email: "s@x.com"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameIdentity(tt.a, tt.b))
			assert.Equal(t, tt.want, SameIdentity(tt.b, tt.a))
		})
	}
}

func TestIdentity_Key(t *testing.T) {
	k1, err := Identity{FirstName: "Ann B", LastName: "X", Email: ""}.Key()
	require.NoError(t, err)
	k2, err := Identity{FirstName: "Ann", LastName: "B X", Email: ""}.Key()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	_, err = Identity{FirstName: "", LastName: "X"}.Key()
	assert.True(t, errors.Is(err, ErrIdentityIncomplete))
}

func TestIdentity_String(t *testing.T) {
	assert.Equal(t, "Mom Jones <family@x.com>", Identity{FirstName: " Mom", LastName: "Jones ", Email: "family@x.com"}.String())
	assert.Equal(t, "Mom Jones", Identity{FirstName: "Mom", LastName: "Jones"}.String())
}

func TestNormalizeArea(t *testing.T) {
	assert.Equal(t, "C", NormalizeArea(" c "))
	assert.Equal(t, "NORTH-2", NormalizeArea("north-2"))
	assert.Equal(t, "", NormalizeArea("   "))
}

func TestParticipant_CloneIsDeep(t *testing.T) {
	p := NewParticipant(2025, "Alice", "Smith", "alice@x.com", "a", map[string]any{"phone": "555"}, time.Time{}, time.Time{})
	assert.Equal(t, "A", p.PreferredArea)

	c := p.Clone()
	c.Attributes["phone"] = "999"
	c.Leadership.IsLeader = true
	assert.Equal(t, "555", p.Attributes["phone"])
	assert.False(t, p.Leadership.IsLeader)
}

func TestErrorTypesMatchSentinels(t *testing.T) {
	var err error = &AreaAlreadyLedError{Identity: Identity{FirstName: "Bob", LastName: "Lee"}, Area: "D"}
	assert.ErrorIs(t, err, ErrAreaAlreadyLed)
	assert.Contains(t, err.Error(), "already leads area D")

	err = &AmbiguousIdentityError{Identity: Identity{FirstName: "Bob", LastName: "Lee"}, IDs: []string{"p-1", "p-2"}}
	assert.ErrorIs(t, err, ErrAmbiguousIdentity)
	assert.NotErrorIs(t, err, ErrAreaAlreadyLed)
	var amb *AmbiguousIdentityError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"p-1", "p-2"}, amb.IDs)
}
