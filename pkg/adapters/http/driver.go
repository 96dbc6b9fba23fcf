// Package http drives one kiln per inbound request.
//
// Each route binds an HTTP endpoint to an entry node. On every request the
// driver creates a fresh kiln, supplies the request as a raw node, fires the
// route's node and finalizes the kiln with the firing outcome, so node
// cleanups run whether the request succeeded or failed.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/glaze"
	"github.com/go-chi/chi/v5"
)

// DefaultRequestNode is the raw node supplied with the inbound *http.Request.
const DefaultRequestNode = "http.request"

// Route binds an HTTP endpoint to the node fired for it.
type Route struct {
	Method  string
	Pattern string
	Node    string
}

// Driver creates one kiln per request.
type Driver struct {
	engine      *kiln.Engine
	requestNode string
	logger      *slog.Logger
}

// Option configures the Driver.
type Option func(*Driver)

// WithRequestNode overrides the raw node name the request is supplied under.
func WithRequestNode(name string) Option {
	return func(d *Driver) {
		d.requestNode = name
	}
}

// WithLogger configures request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewHandler mounts the routes on a chi router.
func NewHandler(engine *kiln.Engine, routes []Route, opts ...Option) http.Handler {
	d := &Driver{
		engine:      engine,
		requestNode: DefaultRequestNode,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	r := chi.NewRouter()
	for _, route := range routes {
		r.Method(route.Method, route.Pattern, d.handler(route))
	}
	return r
}

func (d *Driver) handler(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		k := d.engine.NewKiln()
		value, err := d.fire(ctx, k, r, route.Node)

		outcome := kiln.OutcomeSuccess
		if err != nil {
			outcome = kiln.OutcomeFailure
		}
		if finErr := k.Finalize(ctx, outcome); finErr != nil {
			d.logger.ErrorContext(ctx, "finalize failed", "node", route.Node, "err", finErr)
			if err == nil {
				err = finErr
			}
		}

		if err != nil {
			status := statusFor(err)
			d.logger.WarnContext(ctx, "firing failed", "node", route.Node, "status", status, "err", err)
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if encErr := json.NewEncoder(w).Encode(value); encErr != nil {
			d.logger.ErrorContext(ctx, "response encoding failed", "node", route.Node, "err", encErr)
		}
	}
}

func (d *Driver) fire(ctx context.Context, k *kiln.Kiln, r *http.Request, node string) (any, error) {
	if err := k.Supply(d.requestNode, r); err != nil {
		return nil, err
	}
	return d.engine.Fire(ctx, k, node)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, glaze.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsuppliedInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
