package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vizpipe/vizpipe/pkg/adapters/memory"
	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/compose"
	"github.com/vizpipe/vizpipe/pkg/registry"
)

// Engine defines the composer surface the HTTP adapter exposes.
type Engine interface {
	Compose(ctx context.Context, req compose.BuildRequest) (*ast.Expression, error)
	ComposeWithContext(ctx context.Context, req compose.BuildRequest, params compose.ContextParams) (*ast.Expression, error)
	Registry() *registry.Registry
}

// Server handles the JSON API.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler builds the HTTP handler for the engine. When gatherer is
// non-nil, Prometheus metrics are served on /metrics.
func NewHandler(engine Engine, logger *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	server := &Server{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Post("/v1/compose", server.handleCompose)
	r.Post("/v1/validate", server.handleValidate)
	r.Get("/v1/functions", server.handleFunctions)
	r.Get("/healthz", server.handleHealth)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Swagger UI
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ComposeRequest is the POST /v1/compose body.
type ComposeRequest struct {
	Visualization string                 `json:"visualization"`
	Layers        []Layer                `json:"layers"`
	Context       *compose.ContextParams `json:"context,omitempty"`
}

// Layer is one per-layer data-fetch expression in a compose request.
type Layer struct {
	LayerID      string `json:"layerId"`
	DatasourceID string `json:"datasourceId,omitempty"`
	Expression   string `json:"expression"`
}

// ComposeResponse is the POST /v1/compose reply. Expression is null when
// composition collapsed to no expression.
type ComposeResponse struct {
	Expression *ast.Expression `json:"expression"`
	Text       string          `json:"text,omitempty"`
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	var body ComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req := buildRequest(body)

	var (
		expr *ast.Expression
		err  error
	)
	if body.Context != nil {
		expr, err = s.engine.ComposeWithContext(r.Context(), req, *body.Context)
	} else {
		expr, err = s.engine.Compose(r.Context(), req)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := ComposeResponse{Expression: expr}
	if expr != nil {
		resp.Text = expr.String()
	}
	s.writeJSON(w, resp)
}

// buildRequest groups the request layers by datasource, preserving the order
// layers appear in the request.
func buildRequest(body ComposeRequest) compose.BuildRequest {
	datasources := compose.NewDatasourceMap()
	grouped := make(map[string][]memory.LayerDef)
	var order []string

	for _, layer := range body.Layers {
		dsID := layer.DatasourceID
		if dsID == "" {
			dsID = "default"
		}
		if _, seen := grouped[dsID]; !seen {
			order = append(order, dsID)
		}
		grouped[dsID] = append(grouped[dsID], memory.LayerDef{
			ID:         layer.LayerID,
			Expression: layer.Expression,
		})
	}
	for _, dsID := range order {
		datasources.Set(dsID, memory.NewStaticDatasource(grouped[dsID]))
	}

	return compose.BuildRequest{
		Visualization: memory.NewStaticVisualization(body.Visualization),
		Datasources:   datasources,
	}
}

// ValidateRequest is the POST /v1/validate body.
type ValidateRequest struct {
	Expression string `json:"expression"`
	Strict     bool   `json:"strict,omitempty"`
}

// ValidateResponse is the POST /v1/validate reply.
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	expr, err := ast.Parse(body.Expression)
	if err != nil {
		s.writeJSON(w, ValidateResponse{Valid: false, Errors: []string{err.Error()}})
		return
	}

	reg := s.engine.Registry()
	if body.Strict {
		err = reg.ValidateStrict(expr)
	} else {
		err = reg.Validate(expr)
	}
	if err == nil {
		s.writeJSON(w, ValidateResponse{Valid: true})
		return
	}

	resp := ValidateResponse{Valid: false}
	if errs := registry.ValidationErrors(err); errs != nil {
		for _, e := range errs {
			resp.Errors = append(resp.Errors, e.Error())
		}
	} else {
		resp.Errors = []string{err.Error()}
	}
	s.writeJSON(w, resp)
}

// FunctionInfo is one entry in the GET /v1/functions reply.
type FunctionInfo struct {
	Name string `json:"name"`
	Help string `json:"help,omitempty"`
}

// FunctionsResponse is the GET /v1/functions reply.
type FunctionsResponse struct {
	Functions []FunctionInfo `json:"functions"`
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Registry()
	resp := FunctionsResponse{Functions: []FunctionInfo{}}
	for _, name := range reg.Names() {
		def, _ := reg.Lookup(name)
		resp.Functions = append(resp.Functions, FunctionInfo{Name: def.Name, Help: def.Help})
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>vizpipe API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
