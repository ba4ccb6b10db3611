package vizpipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/compose"
	"github.com/vizpipe/vizpipe/pkg/observability"
	"github.com/vizpipe/vizpipe/pkg/ports"
	"github.com/vizpipe/vizpipe/pkg/registry"
)

// Version is the release version reported by the CLI and the MCP server.
var Version = "0.3.0"

// Engine is the high-level entry point for the vizpipe library. It wraps the
// pure composition functions with the ambient concerns a host wants around
// them: validation, caching, logging and metrics.
type Engine struct {
	registry *registry.Registry
	cache    ports.ExpressionCache
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRegistry replaces the default function registry.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithCache enables composed-expression caching.
func WithCache(c ports.ExpressionCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine. Without options it composes with the builtin
// registry, no cache, no metrics and a discarded logger.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.registry == nil {
		eng.registry = registry.New()
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return eng
}

// Registry returns the engine's function registry, so hosts can register
// their own function definitions.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Compose builds the full expression for the request and validates it against
// the registry. The result is nil when the request cannot produce a complete
// pipeline (absent visualization expression or no contributing layers); that
// is not an error. Context parameters are attached empty; use
// ComposeWithContext to supply real ones.
func (e *Engine) Compose(ctx context.Context, req compose.BuildRequest) (*ast.Expression, error) {
	return e.composeWith(ctx, req, nil)
}

// ComposeWithContext is Compose with explicit context parameters attached in
// place of the empty defaults.
func (e *Engine) ComposeWithContext(ctx context.Context, req compose.BuildRequest, params compose.ContextParams) (*ast.Expression, error) {
	return e.composeWith(ctx, req, &params)
}

func (e *Engine) composeWith(ctx context.Context, req compose.BuildRequest, params *compose.ContextParams) (*ast.Expression, error) {
	start := time.Now()

	expr, err := e.buildCached(ctx, req, params)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		e.metrics.ObserveComposition(observability.OutcomeError, elapsed)
		e.logger.Error("composition failed", "error", err)
		return nil, err
	case expr == nil:
		e.metrics.ObserveComposition(observability.OutcomeEmpty, elapsed)
		e.logger.Debug("composition produced no expression")
		return nil, nil
	}

	if err := e.registry.Validate(expr); err != nil {
		e.metrics.ObserveComposition(observability.OutcomeError, elapsed)
		return nil, fmt.Errorf("composed expression invalid: %w", err)
	}

	e.metrics.ObserveComposition(observability.OutcomeComposed, elapsed)
	e.logger.Debug("composed expression", "functions", len(expr.Chain))
	return expr, nil
}

func (e *Engine) buildCached(ctx context.Context, req compose.BuildRequest, params *compose.ContextParams) (*ast.Expression, error) {
	if e.cache == nil {
		return e.build(req, params)
	}

	key, ok := e.fingerprint(req, params)
	if !ok {
		// Inputs that cannot be fingerprinted are composed uncached.
		return e.build(req, params)
	}

	if cached, err := e.cache.Get(ctx, key); err != nil {
		// A broken cache never breaks composition.
		e.logger.Warn("expression cache get failed", "error", err)
	} else if cached != nil {
		e.metrics.ObserveCache(true)
		return cached, nil
	} else {
		e.metrics.ObserveCache(false)
	}

	expr, err := e.build(req, params)
	if err != nil || expr == nil {
		return expr, err
	}
	if err := e.cache.Put(ctx, key, expr); err != nil {
		e.logger.Warn("expression cache put failed", "error", err)
	}
	return expr, nil
}

func (e *Engine) build(req compose.BuildRequest, params *compose.ContextParams) (*ast.Expression, error) {
	if params == nil {
		return compose.Build(req)
	}
	if req.Visualization == nil {
		return nil, nil
	}
	visExpr, err := req.Visualization.ToExpression(req.VisualizationState, req.Frame)
	if err != nil {
		return nil, fmt.Errorf("visualization expression: %w", err)
	}
	merged, err := compose.MergeDatasourceExpressions(visExpr, req.Datasources, req.DatasourceStates)
	if err != nil || merged == nil {
		return nil, err
	}
	return compose.PrependContext(merged, *params)
}

// fingerprint derives a cache key from the textual form of every input
// expression. Requests whose inputs error or are absent report !ok and skip
// the cache.
func (e *Engine) fingerprint(req compose.BuildRequest, params *compose.ContextParams) (string, bool) {
	if req.Visualization == nil {
		return "", false
	}
	visExpr, err := req.Visualization.ToExpression(req.VisualizationState, req.Frame)
	if err != nil {
		return "", false
	}
	visText, ok := expressionText(visExpr)
	if !ok {
		return "", false
	}

	h := sha256.New()
	fmt.Fprintf(h, "vis:%s\n", visText)

	if req.Datasources != nil {
		for _, id := range req.Datasources.IDs() {
			ds, _ := req.Datasources.Get(id)
			state := req.DatasourceStates[id].State
			for _, layer := range ds.GetLayers(state) {
				raw, err := ds.ToExpression(state, layer)
				if err != nil {
					return "", false
				}
				text, ok := expressionText(raw)
				if !ok {
					continue
				}
				fmt.Fprintf(h, "layer:%s:%s:%s\n", id, layer, text)
			}
		}
	}

	if params != nil {
		// Hash the serialized contents, never the struct value itself: the
		// pointer fields would otherwise format as addresses.
		data, err := json.Marshal(params)
		if err != nil {
			return "", false
		}
		fmt.Fprintf(h, "params:%s\n", data)
	}

	return hex.EncodeToString(h.Sum(nil)), true
}

func expressionText(expr any) (string, bool) {
	switch v := expr.(type) {
	case *ast.Expression:
		return v.String(), true
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	default:
		return "", false
	}
}
