package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"leadflow/internal/common/config"
	"leadflow/internal/common/logger"
	"leadflow/internal/eventlog"
	slackingress "leadflow/internal/ingress/slack"
	"leadflow/internal/workers"
)

const readinessTimeout = 5 * time.Second

// pinger adapts a datastore ping to the readiness check.
type pinger func(ctx context.Context) error

func (p pinger) HealthCheck(ctx context.Context) error {
	return p(ctx)
}

func datastoreChecks(db *sql.DB, rdb *redis.Client, checks map[string]workers.HealthChecker) map[string]workers.HealthChecker {
	out := make(map[string]workers.HealthChecker, len(checks)+2)
	if db != nil {
		out["database"] = pinger(db.PingContext)
	}
	if rdb != nil {
		out["redis"] = pinger(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	for name, c := range checks {
		out[name] = c
	}
	return out
}

func newRouter(cfg *config.Config, log logger.Logger, checks map[string]workers.HealthChecker, events *eventlog.Service, slackHandler *slackingress.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("GET /ready", readiness(checks, log))
	mux.Handle("GET /metrics", promhttp.Handler())

	eventlog.NewHandler(events, cfg.EventLog.TestEndpoints, log).Register(mux)
	slackHandler.Register(mux)

	return withCORS(cfg.Server.AllowedOrigins, mux)
}

// readiness checks every backend and answers 503 when any of them is down.
func readiness(checks map[string]workers.HealthChecker, log logger.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name].HealthCheck(ctx); err != nil {
				log.Warn("readiness check failed", map[string]interface{}{
					"component": name,
					"error":     err.Error(),
				})
				components[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "connected"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "degraded"
		}
		writeJSON(w, status, map[string]interface{}{
			"status":     state,
			"components": components,
			"time":       time.Now().Format(time.RFC3339),
		})
	}
}

// withCORS lets the dashboard read the log API from another origin. An
// empty list allows none; "*" allows any.
func withCORS(allowed []string, next http.Handler) http.Handler {
	if len(allowed) == 0 {
		return next
	}
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[strings.TrimRight(o, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (origins["*"] || origins[origin]) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
