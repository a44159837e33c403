package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"birdcount/internal/delivery/http/helpers"
	"birdcount/internal/domain"
)

// ChangeController serves the change feed and leader digests.
type ChangeController struct {
	Logger  *slog.Logger
	Auditor domain.ChangeAuditor
	Digest  domain.DigestService
	now     func() time.Time
}

func NewChangeController(logger *slog.Logger, auditor domain.ChangeAuditor, digest domain.DigestService) *ChangeController {
	return &ChangeController{
		Logger:  logger,
		Auditor: auditor,
		Digest:  digest,
		now:     time.Now,
	}
}

// ChangeFeedResponse is a slice of the change log. Pass AsOf as the next
// request's since to continue without gaps.
type ChangeFeedResponse struct {
	AsOf   time.Time             `json:"as_of"`
	Events []*domain.ChangeEvent `json:"events"`
}

// ChangeFeedSuccessResponse is the success envelope for GET /years/{year}/changes.
type ChangeFeedSuccessResponse struct {
	Data  ChangeFeedResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// ListChanges godoc
// @Summary Read the change log
// @Description Returns change events of the year at or after since, oldest first. With area, only events into or out of that area are returned.
// @Tags changes
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param area query string false "Area code"
// @Param since query string false "RFC 3339 timestamp (default: beginning of the log)"
// @Success 200 {object} controllers.ChangeFeedSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/changes [get]
func (c *ChangeController) ListChanges(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var since time.Time
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}
	asOf := c.now()
	events, err := c.Auditor.Since(r.Context(), year, q.Get("area"), since)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ChangeFeedResponse{AsOf: asOf, Events: events})
}

// SendDigestRequest is the request body for POST /years/{year}/areas/{area}/digest.
type SendDigestRequest struct {
	Since time.Time `json:"since"`
}

// SendDigestSuccessResponse is the success envelope for a digest run.
type SendDigestSuccessResponse struct {
	Data  domain.DigestResult `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// SendDigest godoc
// @Summary Email an area's changes to its leaders
// @Description Sends every change to the area since the given time to the area's active leaders. Store the returned checkpoint and send it as since next time.
// @Tags changes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param year path int true "Count year"
// @Param area path string true "Area code"
// @Param body body SendDigestRequest true "Last checkpoint"
// @Success 200 {object} controllers.SendDigestSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /years/{year}/areas/{area}/digest [post]
func (c *ChangeController) SendDigest(w http.ResponseWriter, r *http.Request) {
	year, ok := pathYear(w, r)
	if !ok {
		return
	}
	area := domain.NormalizeArea(r.PathValue("area"))
	if area == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing area")
		return
	}
	var req SendDigestRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if _, ok := requireActor(w, r); !ok {
		return
	}
	res, err := c.Digest.SendAreaDigest(r.Context(), year, area, req.Since)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}
