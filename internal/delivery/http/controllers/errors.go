package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"birdcount/internal/delivery/http/helpers"
	"birdcount/internal/delivery/http/middleware"
	"birdcount/internal/domain"
)

// emailRegex matches a simple email format (local@domain with at least one dot in domain).
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	minYear = 1900
	maxYear = 9999
)

// pathYear parses the {year} path value. On failure it writes a 400 and returns false.
func pathYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < minYear || year > maxYear {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "year must be a four-digit count year")
		return 0, false
	}
	return year, true
}

// requireActor returns the authenticated admin ID or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return "", false
	}
	return actor, true
}

// writeServiceError maps domain errors onto HTTP statuses. Anything unmapped is
// logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrIdentityIncomplete):
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrIdentityNotFound):
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrAreaAlreadyLed),
		errors.Is(err, domain.ErrDuplicateIdentity),
		errors.Is(err, domain.ErrAmbiguousIdentity),
		errors.Is(err, domain.ErrStaleRecord):
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrSameArea), errors.Is(err, domain.ErrRecordRemoved):
		helpers.WriteJSONError(w, http.StatusUnprocessableEntity, helpers.ErrCodeUnprocessable, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "forbidden")
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "internal error")
	}
}

// IdentityRequest names a person by the identity tuple.
type IdentityRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (i IdentityRequest) identity() domain.Identity {
	return domain.Identity{FirstName: i.FirstName, LastName: i.LastName, Email: i.Email}
}

func (i IdentityRequest) validate() []string {
	var errs []string
	if strings.TrimSpace(i.FirstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(i.LastName) == "" {
		errs = append(errs, "last_name is required")
	}
	if e := strings.TrimSpace(i.Email); e != "" && !emailRegex.MatchString(e) {
		errs = append(errs, "email must be a valid address")
	}
	return errs
}

// Validate implements helpers.Validator.
func (i IdentityRequest) Validate() []string {
	return i.validate()
}
