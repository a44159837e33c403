package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"birdcount/internal/delivery/http/helpers"
	"birdcount/internal/domain"
)

// ParticipantController serves the roster and leadership endpoints of one count year.
type ParticipantController struct {
	Logger    *slog.Logger
	Service   domain.ReconciliationService
	Directory domain.ParticipantDirectory
}

func NewParticipantController(logger *slog.Logger, svc domain.ReconciliationService, dir domain.ParticipantDirectory) *ParticipantController {
	return &ParticipantController{
		Logger:    logger,
		Service:   svc,
		Directory: dir,
	}
}

// MutationResponse is returned by every roster mutation. Changed is false when
// the call was an idempotent no-op.
type MutationResponse struct {
	Participant *domain.Participant `json:"participant"`
	Changed     bool                `json:"changed"`
}

// MutationSuccessResponse is the success envelope for roster mutations.
type MutationSuccessResponse struct {
	Data  MutationResponse  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// writeMutation writes the result of a reconciliation call. When the record
// was written but its change event was not, the write stands: the error is
// logged and the caller still gets the new state.
func (c *ParticipantController) writeMutation(w http.ResponseWriter, r *http.Request, status int, rec *domain.Participant, changed bool, err error) {
	if err != nil {
		if !changed {
			writeServiceError(w, r, c.Logger, err)
			return
		}
		c.Logger.ErrorContext(r.Context(), "mutation applied without change event", "path", r.URL.Path, "err", err)
	}
	if !changed && status == http.StatusCreated {
		status = http.StatusOK
	}
	helpers.WriteJSONSuccess(w, status, MutationResponse{Participant: rec, Changed: changed})
}

// RegisterParticipantRequest is the request body for POST /years/{year}/participants.
type RegisterParticipantRequest struct {
	IdentityRequest
	PreferredArea string         `json:"preferred_area"`
	Attributes    map[string]any `json:"attributes"`
}

// Validate implements Validator.
func (req RegisterParticipantRequest) Validate() []string {
	errs := req.validate()
	if strings.TrimSpace(req.PreferredArea) == "" {
		errs = append(errs, "preferred_area is required")
	}
	return errs
}

// Register godoc
// @Summary Register a participant
// @Description Registers a person for the count year. Fails with 409 when the same identity (first name, last name, email) is already active that year.
// @Tags participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param body body RegisterParticipantRequest true "Participant"
// @Success 201 {object} controllers.MutationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/participants [post]
func (c *ParticipantController) Register(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	var req RegisterParticipantRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rec, changed, err := c.Service.Register(r.Context(), year, &domain.Participant{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PreferredArea: req.PreferredArea,
		Attributes:    req.Attributes,
	}, actor)
	c.writeMutation(w, r, http.StatusCreated, rec, changed, err)
}

// ListParticipantsResponse is one page of the active roster.
type ListParticipantsResponse struct {
	Participants []*domain.Participant `json:"participants"`
	Pagination   helpers.PaginationMeta `json:"pagination"`
}

// ListParticipantsSuccessResponse is the success envelope for GET /years/{year}/participants.
type ListParticipantsSuccessResponse struct {
	Data  ListParticipantsResponse `json:"data"`
	Error *helpers.APIError        `json:"error"`
}

// List godoc
// @Summary List active participants
// @Description Lists active participants of the year, optionally limited to one area (preferred or led).
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param area query string false "Area code"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 50, max 200)"
// @Success 200 {object} controllers.ListParticipantsSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/participants [get]
func (c *ParticipantController) List(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	all, err := c.Service.ListParticipants(r.Context(), year, r.URL.Query().Get("area"))
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	start, end := params.Bounds(len(all))
	helpers.WriteJSONSuccess(w, http.StatusOK, ListParticipantsResponse{
		Participants: all[start:end],
		Pagination:   helpers.NewPaginationMeta(params, len(all)),
	})
}

// EditParticipantRequest is the request body for PATCH /years/{year}/participants/{id}.
// Omitted fields are unchanged; an attribute set to null is deleted.
type EditParticipantRequest struct {
	FirstName  *string        `json:"first_name"`
	LastName   *string        `json:"last_name"`
	Email      *string        `json:"email"`
	Attributes map[string]any `json:"attributes"`
}

// Validate implements Validator.
func (req EditParticipantRequest) Validate() []string {
	var errs []string
	if req.FirstName == nil && req.LastName == nil && req.Email == nil && len(req.Attributes) == 0 {
		errs = append(errs, "at least one field is required")
	}
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) == "" {
		errs = append(errs, "first_name cannot be blank")
	}
	if req.LastName != nil && strings.TrimSpace(*req.LastName) == "" {
		errs = append(errs, "last_name cannot be blank")
	}
	if req.Email != nil {
		if e := strings.TrimSpace(*req.Email); e != "" && !emailRegex.MatchString(e) {
			errs = append(errs, "email must be a valid address")
		}
	}
	return errs
}

// Edit godoc
// @Summary Edit a participant record
// @Description Updates identity fields and free-form attributes. Area changes go through reassignments. Fails with 409 when the new identity collides with another active record.
// @Tags participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param id path string true "Participant ID"
// @Param body body EditParticipantRequest true "Fields to change"
// @Success 200 {object} controllers.MutationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 422 {object} helpers.APIResponse "error.code: unprocessable (record removed)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/participants/{id} [patch]
func (c *ParticipantController) Edit(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing id")
		return
	}
	var req EditParticipantRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rec, changed, err := c.Service.EditRecord(r.Context(), year, id, domain.Changes{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Attributes: req.Attributes,
	}, actor)
	c.writeMutation(w, r, http.StatusOK, rec, changed, err)
}

// PromoteRequest is the request body for POST /years/{year}/leaders.
type PromoteRequest struct {
	IdentityRequest
	Area string `json:"area"`
}

// Validate implements Validator.
func (req PromoteRequest) Validate() []string {
	errs := req.validate()
	if strings.TrimSpace(req.Area) == "" {
		errs = append(errs, "area is required")
	}
	return errs
}

// Promote godoc
// @Summary Make a participant an area leader
// @Description Promotes the identity to lead the area and moves their own registration into it. Promoting again to the same area is a no-op (changed=false).
// @Tags leaders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param body body PromoteRequest true "Identity and area"
// @Success 200 {object} controllers.MutationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (leads another area, ambiguous identity)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/leaders [post]
func (c *ParticipantController) Promote(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	var req PromoteRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rec, changed, err := c.Service.PromoteToLeader(r.Context(), year, req.identity(), req.Area, actor)
	c.writeMutation(w, r, http.StatusOK, rec, changed, err)
}

// Demote godoc
// @Summary Remove a participant's leadership
// @Description Clears leadership. Demoting someone who does not lead is a no-op (changed=false).
// @Tags leaders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param body body IdentityRequest true "Identity"
// @Success 200 {object} controllers.MutationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/leaders/demote [post]
func (c *ParticipantController) Demote(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	var req IdentityRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rec, changed, err := c.Service.DemoteFromLeader(r.Context(), year, req.identity(), actor)
	c.writeMutation(w, r, http.StatusOK, rec, changed, err)
}

// ReassignRequest is the request body for POST /years/{year}/reassignments.
type ReassignRequest struct {
	IdentityRequest
	NewArea          string `json:"new_area"`
	RetainLeadership bool   `json:"retain_leadership"`
}

// Validate implements Validator.
func (req ReassignRequest) Validate() []string {
	errs := req.validate()
	if strings.TrimSpace(req.NewArea) == "" {
		errs = append(errs, "new_area is required")
	}
	return errs
}

// Reassign godoc
// @Summary Move a participant to another area
// @Description Moves the participant. A leader keeps leading (now the new area) only with retain_leadership; otherwise leadership is cleared.
// @Tags participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param body body ReassignRequest true "Identity and target area"
// @Success 200 {object} controllers.MutationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 422 {object} helpers.APIResponse "error.code: unprocessable (already in that area)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/reassignments [post]
func (c *ParticipantController) Reassign(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	var req ReassignRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rec, changed, err := c.Service.ReassignArea(r.Context(), year, req.identity(), req.NewArea, req.RetainLeadership, actor)
	c.writeMutation(w, r, http.StatusOK, rec, changed, err)
}

// RemoveRequest is the request body for POST /years/{year}/removals.
type RemoveRequest struct {
	IdentityRequest
	Reason string `json:"reason"`
}

// Remove godoc
// @Summary Remove a participant
// @Description Soft-deletes the identity's active record and clears any leadership in the same write. Removing an identity with no active record is a no-op (participant=null, changed=false).
// @Tags participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param body body RemoveRequest true "Identity and reason"
// @Success 200 {object} controllers.MutationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (ambiguous identity)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/removals [post]
func (c *ParticipantController) Remove(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	var req RemoveRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rec, changed, err := c.Service.DeleteIdentity(r.Context(), year, req.identity(), strings.TrimSpace(req.Reason), actor)
	c.writeMutation(w, r, http.StatusOK, rec, changed, err)
}

// InvariantReport lists the broken invariants of a year. An empty list means the roster is consistent.
type InvariantReport struct {
	Year       int                `json:"year"`
	Violations []domain.Violation `json:"violations"`
}

// InvariantReportSuccessResponse is the success envelope for GET /years/{year}/invariants.
type InvariantReportSuccessResponse struct {
	Data  InvariantReport   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// Invariants godoc
// @Summary Audit a year's roster
// @Description Reports active identities with several records or leaderships, leaders without an area, and removed records still marked as leaders. Read-only.
// @Tags leaders
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Success 200 {object} controllers.InvariantReportSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/invariants [get]
func (c *ParticipantController) Invariants(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	violations, err := c.Service.CheckInvariants(r.Context(), year)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, InvariantReport{Year: year, Violations: violations})
}

// LatestParticipantResponse is the most recent record of an identity plus the years it appears in.
type LatestParticipantResponse struct {
	Participant *domain.Participant `json:"participant"`
	Years       []int               `json:"years"`
}

// LatestParticipantSuccessResponse is the success envelope for GET /participants/latest.
type LatestParticipantSuccessResponse struct {
	Data  LatestParticipantResponse `json:"data"`
	Error *helpers.APIError         `json:"error"`
}

// Latest godoc
// @Summary Look up a returning volunteer
// @Description Returns the identity's record from the most recent year it appears in, used to prefill a new registration.
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param first_name query string true "First name"
// @Param last_name query string true "Last name"
// @Param email query string false "Email"
// @Success 200 {object} controllers.LatestParticipantSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /participants/latest [get]
func (c *ParticipantController) Latest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := IdentityRequest{FirstName: q.Get("first_name"), LastName: q.Get("last_name"), Email: q.Get("email")}
	if errs := req.validate(); len(errs) > 0 {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, strings.Join(errs, "; "))
		return
	}
	latest, err := c.Directory.Latest(r.Context(), req.identity())
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	history, err := c.Directory.History(r.Context(), req.identity())
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	years := make([]int, 0, len(history))
	for _, p := range history {
		years = append(years, p.Year)
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, LatestParticipantResponse{Participant: latest, Years: years})
}
