package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizpipe/vizpipe"
	httpadapter "github.com/vizpipe/vizpipe/pkg/adapters/http"
	"github.com/vizpipe/vizpipe/internal/logging"
	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/compose"
	"github.com/vizpipe/vizpipe/pkg/observability"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	eng := vizpipe.New(
		vizpipe.WithLogger(logging.NewNop()),
		vizpipe.WithMetrics(observability.NewMetrics(reg)),
	)
	return httpadapter.NewHandler(eng, logging.NewNop(), reg)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCompose_FullPipeline(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/compose", httpadapter.ComposeRequest{
		Visualization: "chart type=bar",
		Layers: []httpadapter.Layer{
			{LayerID: "l1", DatasourceID: "logs", Expression: "load index=logs"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpadapter.ComposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Expression)

	require.Len(t, resp.Expression.Chain, 4)
	assert.Equal(t, compose.FnGlobals, resp.Expression.Chain[0].Name)
	assert.Equal(t, compose.FnMergeTables, resp.Expression.Chain[2].Name)
	assert.NotEmpty(t, resp.Text)
}

func TestCompose_WithContextParams(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/compose", httpadapter.ComposeRequest{
		Visualization: "chart",
		Layers: []httpadapter.Layer{
			{LayerID: "l1", Expression: "load"},
		},
		Context: &compose.ContextParams{
			TimeRange: &compose.TimeRange{From: "now-15m", To: "now"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpadapter.ComposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Expression)

	ctxFn := resp.Expression.Chain[1]
	assert.Equal(t, compose.FnGlobalContext, ctxFn.Name)
	require.Len(t, ctxFn.Arguments[compose.ArgTimeRange], 1)

	var tr compose.TimeRange
	require.NoError(t, json.Unmarshal([]byte(ctxFn.Arguments[compose.ArgTimeRange][0].(string)), &tr))
	assert.Equal(t, "now-15m", tr.From)
}

func TestCompose_EmptyResultIsNull(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/compose", httpadapter.ComposeRequest{
		Visualization: "chart",
		// no layers
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wire))
	assert.Nil(t, wire["expression"])
}

func TestCompose_BadExpressionText(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/compose", httpadapter.ComposeRequest{
		Visualization: "chart arg={broken",
		Layers: []httpadapter.Layer{
			{LayerID: "l1", Expression: "load"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompose_InvalidBody(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/compose", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidate_ReportsErrors(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/validate", httpadapter.ValidateRequest{
		Expression: "merge_tables layerIds=l1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpadapter.ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], "tables")
}

func TestValidate_StrictMode(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/validate", httpadapter.ValidateRequest{
		Expression: "mystery_fn",
		Strict:     true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpadapter.ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
}

func TestValidate_ValidExpression(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/validate", httpadapter.ValidateRequest{
		Expression: "globals | chart",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpadapter.ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Errors)
}

func TestFunctions_ListsBuiltins(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/functions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpadapter.FunctionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	names := make([]string, 0, len(resp.Functions))
	for _, fn := range resp.Functions {
		names = append(names, fn.Name)
	}
	assert.Contains(t, names, compose.FnMergeTables)
	assert.Contains(t, names, compose.FnGlobals)
	assert.Contains(t, names, compose.FnGlobalContext)
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	eng := vizpipe.New(
		vizpipe.WithLogger(logging.NewNop()),
		vizpipe.WithMetrics(observability.NewMetrics(reg)),
	)
	handler := httpadapter.NewHandler(eng, logging.NewNop(), reg)

	// Drive one composition so the counters exist with samples.
	postJSON(t, handler, "/v1/compose", httpadapter.ComposeRequest{
		Visualization: "chart",
		Layers:        []httpadapter.Layer{{LayerID: "l1", Expression: "load"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vizpipe_compositions_total")
}

func TestOpenAPISpec_ServedAndValid(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	doc, err := httpadapter.LoadSpec(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc.Paths.Find("/v1/compose"))
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/compose", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// Round-trip: composed wire JSON re-parses into the identical tree.
func TestCompose_WireRoundTrip(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/compose", httpadapter.ComposeRequest{
		Visualization: "chart type=bar",
		Layers:        []httpadapter.Layer{{LayerID: "l1", Expression: "load index=logs"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpadapter.ComposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Expression)

	reparsed, err := ast.Parse(resp.Text)
	require.NoError(t, err)

	// The textual form drops nothing the composer emitted.
	assert.Equal(t, resp.Expression.String(), reparsed.String())
}
