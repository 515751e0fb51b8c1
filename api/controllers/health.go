package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/angelmondragon/smartshop-backend/api/responses"
	"github.com/angelmondragon/smartshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

const (
	readinessTimeout = 2 * time.Second
	envHeader        = "X-SmartShop-Env"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings all dependencies in parallel. Any failure yields a 503
// listing every dependency that did not answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		failures := pingAll(ctx, deps)
		if len(failures) == 0 {
			responses.WriteSuccess(w, map[string]string{"status": "ready"})
			return
		}

		down := lo.Keys(failures)
		slices.Sort(down)
		causes := lo.Map(down, func(name string, _ int) error {
			return fmt.Errorf("%s: %w", name, failures[name])
		})
		responses.WriteError(r.Context(), logg, w,
			pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(causes...), "readiness check failed").
				WithDetails(map[string]any{"unavailable": down}))
	}
}

func pingAll(ctx context.Context, deps map[string]Pinger) map[string]error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = map[string]error{}
	)
	for name, dep := range lo.PickBy(deps, func(_ string, p Pinger) bool { return p != nil }) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dep.Ping(ctx); err != nil {
				mu.Lock()
				failures[name] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failures
}
