package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"birdcount/internal/delivery/http/controllers"
	"birdcount/internal/delivery/http/helpers"
	_ "birdcount/internal/docs"
)

// NewRouter registers every route. requireAuth guards all admin endpoints;
// metrics, health and the API docs are public.
func NewRouter(
	participants *controllers.ParticipantController,
	changes *controllers.ChangeController,
	requireAuth func(http.HandlerFunc) http.HandlerFunc,
	metrics http.Handler,
) *http.ServeMux {
	mux := http.NewServeMux()

	// Roster
	mux.HandleFunc("POST /years/{year}/participants", requireAuth(participants.Register))
	mux.HandleFunc("GET /years/{year}/participants", requireAuth(participants.List))
	mux.HandleFunc("PATCH /years/{year}/participants/{id}", requireAuth(participants.Edit))
	mux.HandleFunc("POST /years/{year}/reassignments", requireAuth(participants.Reassign))
	mux.HandleFunc("POST /years/{year}/removals", requireAuth(participants.Remove))
	mux.HandleFunc("GET /participants/latest", requireAuth(participants.Latest))

	// Leadership
	mux.HandleFunc("POST /years/{year}/leaders", requireAuth(participants.Promote))
	mux.HandleFunc("POST /years/{year}/leaders/demote", requireAuth(participants.Demote))
	mux.HandleFunc("GET /years/{year}/invariants", requireAuth(participants.Invariants))

	// Change log
	mux.HandleFunc("GET /years/{year}/changes", requireAuth(changes.ListChanges))
	mux.HandleFunc("POST /years/{year}/areas/{area}/digest", requireAuth(changes.SendDigest))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
