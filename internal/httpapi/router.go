package httpapi

import (
	"net/http"

	"github.com/mingyuchen/activity-tracker-go/internal/obs"
)

// NewRouter builds the API mux. Activity routes sit behind the auth gate;
// the session-lifecycle routes are open.
func NewRouter(users *UserHandler, activities *ActivityHandler, gate func(http.Handler) http.Handler, metrics *obs.AuthMetrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/users/register", users.Register)
	mux.HandleFunc("POST /api/users/login", users.Login)
	mux.HandleFunc("POST /api/users/refresh-token", users.Refresh)
	mux.HandleFunc("POST /api/users/logout", users.Logout)

	// Paths are part of the published client contract and cannot be
	// restyled.
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/activities/all", activities.ListAll)
	protected.HandleFunc("GET /api/activities/byDate", activities.ListByDate)
	protected.HandleFunc("POST /api/activities/create", activities.Create)
	protected.HandleFunc("PUT /api/activities/update/{id}", activities.Update)
	protected.HandleFunc("DELETE /api/activities/delete/{id}", activities.Delete)
	protected.HandleFunc("POST /api/activities/generateReport", activities.GenerateReport)
	protected.HandleFunc("GET /api/activities/download/{fileName}", activities.DownloadReport)

	mux.Handle("/api/activities/", countRejected(metrics, gate(protected)))

	return mux
}

// countRejected bumps the rejection counter whenever the wrapped handler
// answers 401.
func countRejected(metrics *obs.AuthMetrics, next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == http.StatusUnauthorized {
			metrics.Rejected.Inc()
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
