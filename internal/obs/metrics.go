package obs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AuthMetrics counts session-lifecycle outcomes. Labels carry the outcome,
// never the subject.
type AuthMetrics struct {
	Logins    *prometheus.CounterVec
	Refreshes *prometheus.CounterVec
	Rejected  prometheus.Counter
}

// NewAuthMetrics registers the auth counters on reg (the default registerer
// when nil).
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &AuthMetrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_token_refreshes_total",
			Help: "Refresh-token rotations by outcome.",
		}, []string{"outcome"}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_requests_rejected_total",
			Help: "Protected requests rejected by the auth gate.",
		}),
	}
}

// BootstrapMetricsServer starts the /metrics + /healthz listener in the
// background and returns it for shutdown.
func BootstrapMetricsServer(addr string, health func(context.Context) error, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := health(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	return srv
}
