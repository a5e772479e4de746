package backend

import (
	"context"
	"strings"

	"github.com/sauruslabs/osseus/pkg/log"
)

// Router selects a concrete backend for a requested model name. Backends
// are consulted in priority order; unavailable backends are skipped
// silently.
type Router struct {
	backends []Backend
}

func NewRouter(backends ...Backend) *Router {
	return &Router{backends: backends}
}

// Backends returns the router's backends in priority order.
func (r *Router) Backends() []Backend {
	return r.backends
}

// Resolve maps a requested model name to a backend and the effective model
// name. An empty or "default" request resolves to the first available
// default-capable backend; anything else resolves to the first available
// backend that recognizes the name. Returns ErrNoRoute when nothing
// matches.
func (r *Router) Resolve(ctx context.Context, requested string) (Backend, string, error) {
	requested = strings.TrimSpace(requested)

	if requested == "" || strings.EqualFold(requested, "default") {
		for _, b := range r.backends {
			if b.Available(ctx) && b.Handles("") {
				log.FromCtx(ctx).Debug().
					Str("backend", b.Name()).
					Msg("routed default model")
				return b, "default", nil
			}
		}
		return nil, "", ErrNoRoute
	}

	for _, b := range r.backends {
		if b.Available(ctx) && b.Handles(requested) {
			log.FromCtx(ctx).Debug().
				Str("backend", b.Name()).
				Str("model", requested).
				Msg("routed model")
			return b, requested, nil
		}
	}
	return nil, "", ErrNoRoute
}
