package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/livebag-backend/api/responses"
	"github.com/angelmondragon/livebag-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
)

const (
	envHeader    = "X-Livebag-Env"
	readyTimeout = 2 * time.Second
)

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthStatus is the body of both health checks. Env lets the dashboard tell a
// staging API apart from production behind the same hostname.
type healthStatus struct {
	Status string `json:"status"`
	Env    string `json:"env"`
}

// HealthLive answers as long as the process can serve HTTP. It checks no
// dependency, so a database outage never gets the pod restarted.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	body := healthStatus{Status: "live", Env: cfg.App.Env}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, body.Env)
		responses.WriteSuccess(w, body)
	}
}

// HealthReady pings every backing store and reports the first failure as a
// dependency error.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	checks := []struct {
		name   string
		pinger Pinger
	}{
		{name: "database", pinger: dbP},
		{name: "redis", pinger: redisP},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, check := range checks {
			if check.pinger == nil {
				continue
			}
			if err := check.pinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unavailable").
					WithDetails(map[string]any{"dependency": check.name}))
				return
			}
		}
		responses.WriteSuccess(w, healthStatus{Status: "ready", Env: cfg.App.Env})
	}
}
