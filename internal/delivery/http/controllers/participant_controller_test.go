package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdcount/internal/delivery/http/helpers"
	"birdcount/internal/delivery/http/middleware"
	"birdcount/internal/domain"
	"birdcount/internal/repository/memory"
	"birdcount/internal/services"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeReconciler returns canned results; nil funcs panic so tests only stub what they call.
type fakeReconciler struct {
	domain.ReconciliationService
	promote func(year int, identity domain.Identity, area, actor string) (*domain.Participant, bool, error)
	remove  func(year int, identity domain.Identity, reason, actor string) (*domain.Participant, bool, error)
}

func (f *fakeReconciler) PromoteToLeader(_ context.Context, year int, identity domain.Identity, area, actor string) (*domain.Participant, bool, error) {
	return f.promote(year, identity, area, actor)
}

func (f *fakeReconciler) DeleteIdentity(_ context.Context, year int, identity domain.Identity, reason, actor string) (*domain.Participant, bool, error) {
	return f.remove(year, identity, reason, actor)
}

// serve routes a single request through a mux so path values are populated.
func serve(pattern string, h http.HandlerFunc, req *http.Request, adminID string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	if adminID != "" {
		req = req.WithContext(middleware.SetAdminID(req.Context(), adminID))
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	var env struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	if data != nil && env.Error == nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Error
}

func TestParticipantController_PromoteErrors(t *testing.T) {
	identity := domain.Identity{FirstName: "Bob", LastName: "Lee", Email: "bob@example.com"}

	tests := []struct {
		name       string
		path       string
		body       string
		adminID    string
		promoteErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "already leads another area",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee","email":"bob@example.com","area":"E"}`,
			adminID:    "admin-1",
			promoteErr: &domain.AreaAlreadyLedError{Identity: identity, Area: "D"},
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeConflict,
		},
		{
			name:       "ambiguous identity",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee","email":"bob@example.com","area":"E"}`,
			adminID:    "admin-1",
			promoteErr: &domain.AmbiguousIdentityError{Identity: identity, IDs: []string{"a", "b"}},
			wantStatus: http.StatusConflict,
			wantCode:   helpers.ErrCodeConflict,
		},
		{
			name:       "not found",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee","area":"E"}`,
			adminID:    "admin-1",
			promoteErr: domain.ErrIdentityNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   helpers.ErrCodeNotFound,
		},
		{
			name:       "store failure",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee","area":"E"}`,
			adminID:    "admin-1",
			promoteErr: errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   helpers.ErrCodeInternalError,
		},
		{
			name:       "missing area",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee"}`,
			adminID:    "admin-1",
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "blank last name",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"  ","area":"E"}`,
			adminID:    "admin-1",
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "unknown field",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee","area":"E","role":"captain"}`,
			adminID:    "admin-1",
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "bad year",
			path:       "/years/twenty/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee","area":"E"}`,
			adminID:    "admin-1",
			wantStatus: http.StatusBadRequest,
			wantCode:   helpers.ErrCodeBadRequest,
		},
		{
			name:       "no admin in context",
			path:       "/years/2025/leaders",
			body:       `{"first_name":"Bob","last_name":"Lee","area":"E"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   helpers.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeReconciler{promote: func(int, domain.Identity, string, string) (*domain.Participant, bool, error) {
				return nil, false, tt.promoteErr
			}}
			c := NewParticipantController(testLogger, svc, nil)
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rr := serve("POST /years/{year}/leaders", c.Promote, req, tt.adminID)

			require.Equal(t, tt.wantStatus, rr.Code)
			apiErr := decodeEnvelope(t, rr, nil)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestParticipantController_RemovePassesActorAndReason(t *testing.T) {
	var gotActor, gotReason string
	var gotIdentity domain.Identity
	svc := &fakeReconciler{remove: func(year int, identity domain.Identity, reason, actor string) (*domain.Participant, bool, error) {
		gotIdentity, gotReason, gotActor = identity, reason, actor
		return nil, false, nil
	}}
	c := NewParticipantController(testLogger, svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/years/2025/removals",
		strings.NewReader(`{"first_name":"Clive","last_name":"Roberts","email":"","reason":" withdrew "}`))
	rr := serve("POST /years/{year}/removals", c.Remove, req, "admin-7")

	require.Equal(t, http.StatusOK, rr.Code)
	var got MutationResponse
	require.Nil(t, decodeEnvelope(t, rr, &got))
	assert.Nil(t, got.Participant)
	assert.False(t, got.Changed)
	assert.Equal(t, "admin-7", gotActor)
	assert.Equal(t, "withdrew", gotReason)
	assert.Equal(t, "Clive", gotIdentity.FirstName)
}

func TestParticipantController_WriteStandsWhenEventFails(t *testing.T) {
	rec := &domain.Participant{ID: "p-1", FirstName: "Bob", LastName: "Lee", Status: domain.StatusActive}
	svc := &fakeReconciler{promote: func(int, domain.Identity, string, string) (*domain.Participant, bool, error) {
		return rec, true, errors.New("record leader_promoted: log unavailable")
	}}
	c := NewParticipantController(testLogger, svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/years/2025/leaders",
		strings.NewReader(`{"first_name":"Bob","last_name":"Lee","area":"D"}`))
	rr := serve("POST /years/{year}/leaders", c.Promote, req, "admin-1")

	require.Equal(t, http.StatusOK, rr.Code)
	var got MutationResponse
	require.Nil(t, decodeEnvelope(t, rr, &got))
	assert.True(t, got.Changed)
	assert.Equal(t, "p-1", got.Participant.ID)
}

// newRoster wires the real services over the memory store.
func newRoster() (*ParticipantController, domain.ReconciliationService) {
	repo := memory.NewParticipantRepository()
	auditor := services.NewChangeAuditor(memory.NewChangeEventRepository(), testLogger, nil)
	svc := services.NewReconciler(repo, auditor, testLogger, nil)
	return NewParticipantController(testLogger, svc, services.NewParticipantDirectory(repo)), svc
}

func TestParticipantController_RosterFlow(t *testing.T) {
	c, _ := newRoster()
	register := func(first, last, email, area string) (*httptest.ResponseRecorder, MutationResponse) {
		req := httptest.NewRequest(http.MethodPost, "/years/2025/participants", jsonBody(t, map[string]any{
			"first_name": first, "last_name": last, "email": email, "preferred_area": area,
			"attributes": map[string]any{"phone": "555-0100"},
		}))
		rr := serve("POST /years/{year}/participants", c.Register, req, "admin-1")
		var got MutationResponse
		if rr.Code == http.StatusCreated {
			require.Nil(t, decodeEnvelope(t, rr, &got))
		}
		return rr, got
	}

	rr, mom := register("Mom", "Jones", "family@x.com", "c")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "C", mom.Participant.PreferredArea)
	rr, _ = register("Dad", "Jones", "family@x.com", "C")
	require.Equal(t, http.StatusCreated, rr.Code)
	rr, _ = register("dad", "JONES", "Family@x.com", "B")
	require.Equal(t, http.StatusConflict, rr.Code)

	// Promote Mom; Dad shares the inbox but is untouched.
	req := httptest.NewRequest(http.MethodPost, "/years/2025/leaders",
		strings.NewReader(`{"first_name":"Mom","last_name":"Jones","email":"family@x.com","area":"C"}`))
	rr = serve("POST /years/{year}/leaders", c.Promote, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/years/2025/participants?area=C&page=1&page_size=1", nil)
	rr = serve("GET /years/{year}/participants", c.List, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var page ListParticipantsResponse
	require.Nil(t, decodeEnvelope(t, rr, &page))
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	require.Len(t, page.Participants, 1)

	req = httptest.NewRequest(http.MethodGet, "/years/2025/participants?page=184467440737095518", nil)
	rr = serve("GET /years/{year}/participants", c.List, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var farPage ListParticipantsResponse
	require.Nil(t, decodeEnvelope(t, rr, &farPage))
	assert.Empty(t, farPage.Participants)
	assert.Equal(t, 2, farPage.Pagination.Total)

	// Same-area reassignment is rejected.
	req = httptest.NewRequest(http.MethodPost, "/years/2025/reassignments",
		strings.NewReader(`{"first_name":"Mom","last_name":"Jones","email":"family@x.com","new_area":"c","retain_leadership":true}`))
	rr = serve("POST /years/{year}/reassignments", c.Reassign, req, "admin-1")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// A null attribute deletes the key.
	req = httptest.NewRequest(http.MethodPatch, "/years/2025/participants/"+mom.Participant.ID,
		strings.NewReader(`{"attributes":{"phone":null,"binoculars":true}}`))
	rr = serve("PATCH /years/{year}/participants/{id}", c.Edit, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var edited MutationResponse
	require.Nil(t, decodeEnvelope(t, rr, &edited))
	assert.True(t, edited.Changed)
	assert.Equal(t, map[string]any{"binoculars": true}, edited.Participant.Attributes)

	req = httptest.NewRequest(http.MethodPatch, "/years/2025/participants/"+mom.Participant.ID, strings.NewReader(`{}`))
	rr = serve("PATCH /years/{year}/participants/{id}", c.Edit, req, "admin-1")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Removing the leader clears leadership in the same response.
	req = httptest.NewRequest(http.MethodPost, "/years/2025/removals",
		strings.NewReader(`{"first_name":"Mom","last_name":"Jones","email":"family@x.com","reason":"moved"}`))
	rr = serve("POST /years/{year}/removals", c.Remove, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var removed MutationResponse
	require.Nil(t, decodeEnvelope(t, rr, &removed))
	assert.Equal(t, domain.StatusRemoved, removed.Participant.Status)
	assert.False(t, removed.Participant.Leadership.IsLeader)
	assert.Empty(t, removed.Participant.Leadership.AssignedArea)

	req = httptest.NewRequest(http.MethodGet, "/years/2025/invariants", nil)
	rr = serve("GET /years/{year}/invariants", c.Invariants, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var report InvariantReport
	require.Nil(t, decodeEnvelope(t, rr, &report))
	assert.Equal(t, 2025, report.Year)
	assert.Empty(t, report.Violations)
}

func TestParticipantController_Latest(t *testing.T) {
	c, svc := newRoster()
	ctx := context.Background()
	for _, year := range []int{2023, 2025} {
		_, _, err := svc.Register(ctx, year, &domain.Participant{
			FirstName: "Alice", LastName: "Smith", Email: "alice@x.com", PreferredArea: "A",
		}, "admin-1")
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/participants/latest?first_name=alice&last_name=SMITH&email=alice@x.com", nil)
	rr := serve("GET /participants/latest", c.Latest, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var got LatestParticipantResponse
	require.Nil(t, decodeEnvelope(t, rr, &got))
	assert.Equal(t, 2025, got.Participant.Year)
	assert.Equal(t, []int{2025, 2023}, got.Years)

	req = httptest.NewRequest(http.MethodGet, "/participants/latest?first_name=Bob&last_name=Lee", nil)
	rr = serve("GET /participants/latest", c.Latest, req, "admin-1")
	require.Equal(t, http.StatusNotFound, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/participants/latest?last_name=Lee", nil)
	rr = serve("GET /participants/latest", c.Latest, req, "admin-1")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

type fakeDirectory struct {
	latest  *domain.Participant
	history []*domain.Participant
	err     error
}

func (f *fakeDirectory) Latest(context.Context, domain.Identity) (*domain.Participant, error) {
	return f.latest, f.err
}

func (f *fakeDirectory) History(context.Context, domain.Identity) ([]*domain.Participant, error) {
	return f.history, nil
}

func TestParticipantController_LatestUsesDirectoryLatest(t *testing.T) {
	latest := &domain.Participant{ID: "p-24", Year: 2024, FirstName: "Alice", LastName: "Smith", Status: domain.StatusActive}
	dir := &fakeDirectory{latest: latest, history: []*domain.Participant{latest, {ID: "p-23", Year: 2023}}}
	c := NewParticipantController(testLogger, nil, dir)

	req := httptest.NewRequest(http.MethodGet, "/participants/latest?first_name=Alice&last_name=Smith", nil)
	rr := serve("GET /participants/latest", c.Latest, req, "admin-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var got LatestParticipantResponse
	require.Nil(t, decodeEnvelope(t, rr, &got))
	assert.Equal(t, "p-24", got.Participant.ID)
	assert.Equal(t, []int{2024, 2023}, got.Years)

	dir.err = domain.ErrIdentityNotFound
	rr = serve("GET /participants/latest", c.Latest,
		httptest.NewRequest(http.MethodGet, "/participants/latest?first_name=Alice&last_name=Smith", nil), "admin-1")
	require.Equal(t, http.StatusNotFound, rr.Code)
	apiErr := decodeEnvelope(t, rr, nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, helpers.ErrCodeNotFound, apiErr.Code)
}
