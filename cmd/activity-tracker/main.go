// Command activity-tracker runs the activity-logging HTTP API: session
// lifecycle (register, login, refresh, logout) plus the protected activity
// CRUD and CSV report routes.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mingyuchen/activity-tracker-go/internal/config"
	"github.com/mingyuchen/activity-tracker-go/internal/httpapi"
	"github.com/mingyuchen/activity-tracker-go/internal/obs"
	"github.com/mingyuchen/activity-tracker-go/internal/store/postgres"
	"github.com/mingyuchen/activity-tracker-go/middleware"
	"github.com/mingyuchen/activity-tracker-go/password"
	"github.com/mingyuchen/activity-tracker-go/registry"
	"github.com/mingyuchen/activity-tracker-go/report"
	"github.com/mingyuchen/activity-tracker-go/session"
	"github.com/mingyuchen/activity-tracker-go/token"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "activity-tracker:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    cfg.App.Name,
		Env:    cfg.App.Env,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	secret := cfg.Auth.Secret
	if secret == "" {
		// Only possible in dev (Validate enforces this); each restart
		// invalidates all outstanding tokens.
		secret = randomSecret()
		log.Warn("auth.secret not set, using a random per-process secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(cfg.DB.DSN); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	db, err := postgres.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close() //nolint:errcheck
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     []byte(secret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("build token manager: %w", err)
	}

	users := postgres.NewUserStore(db)
	activities := postgres.NewActivityStore(db)
	hasher := password.NewHasher(password.DefaultConfig())
	tokenRegistry := registry.NewRedis(rdb, cfg.Redis.KeyPrefix)
	issuer := session.NewIssuer(users, hasher, tokens, tokenRegistry, log.Named("session"))
	reports := report.NewService(cfg.Report.Dir, log.Named("report"))

	health := func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}

	metrics := obs.NewAuthMetrics(nil)
	metricsSrv := obs.BootstrapMetricsServer(cfg.Metrics.Addr, health, log.Named("metrics"))

	userHandler := httpapi.NewUserHandler(users, hasher, issuer, httpapi.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Path:   cfg.Auth.CookiePath,
		Secure: cfg.Auth.CookieSecure,
		MaxAge: cfg.Auth.RefreshTTL,
	}, metrics, log.Named("users"))
	activityHandler := httpapi.NewActivityHandler(activities, reports, log.Named("activities"))

	router := httpapi.NewRouter(
		userHandler,
		activityHandler,
		middleware.RequireAuth(tokens, users, log.Named("auth")),
		metrics,
	)

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", zap.Error(err))
	}
	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
