package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foodbowl/foodbowl-backend/api/responses"
	"github.com/foodbowl/foodbowl-backend/pkg/config"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is any dependency readiness can probe.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FoodBowl-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency concurrently. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FoodBowl-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var mu sync.Mutex
		results := make(map[string]string, len(deps))
		failed := false

		for name, dep := range deps {
			if dep == nil {
				results[name] = "skipped"
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			name, dep := name, dep
			g.Go(func() error {
				status := "ok"
				if err := dep.Ping(gctx); err != nil {
					status = "unavailable"
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "dependency", name), "readiness probe failed: "+err.Error())
					}
				}
				mu.Lock()
				defer mu.Unlock()
				results[name] = status
				if status != "ok" {
					failed = true
				}
				return nil
			})
		}
		_ = g.Wait()

		if failed {
			details := make(map[string]any, len(results))
			for name, status := range results {
				details[name] = status
			}
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(details))
			return
		}

		payload := map[string]any{"status": "ready", "checks": results}
		responses.WriteSuccess(w, payload)
	}
}
