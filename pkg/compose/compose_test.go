package compose

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/ports"
)

// fakeDatasource returns canned expressions per layer.
type fakeDatasource struct {
	layers      []string
	expressions map[string]any
	err         error
}

func (f *fakeDatasource) GetLayers(state any) []string {
	return f.layers
}

func (f *fakeDatasource) ToExpression(state any, layer string) (any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.expressions[layer], nil
}

// fakeVisualization returns a fixed expression.
type fakeVisualization struct {
	expression any
	err        error
	gotState   any
	gotFrame   ports.FrameAPI
}

func (f *fakeVisualization) ToExpression(state any, frame ports.FrameAPI) (any, error) {
	f.gotState = state
	f.gotFrame = frame
	return f.expression, f.err
}

func TestMerge_AbsentVisualizationExpression(t *testing.T) {
	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{
		layers:      []string{"l1"},
		expressions: map[string]any{"l1": "load index=logs"},
	})

	for _, visExpr := range []any{nil, ""} {
		expr, err := MergeDatasourceExpressions(visExpr, datasources, nil)
		require.NoError(t, err)
		assert.Nil(t, expr)
	}
}

func TestMerge_NoLayerExpressions(t *testing.T) {
	datasources := NewDatasourceMap()
	// One datasource with no layers, one whose layers contribute nothing.
	datasources.Set("empty", &fakeDatasource{})
	datasources.Set("silent", &fakeDatasource{
		layers:      []string{"l1", "l2"},
		expressions: map[string]any{},
	})

	expr, err := MergeDatasourceExpressions("chart type=bar", datasources, nil)
	require.NoError(t, err)
	assert.Nil(t, expr, "merge must collapse to nil when no layer contributes")
}

func TestMerge_NilDatasourceMap(t *testing.T) {
	expr, err := MergeDatasourceExpressions("chart", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestMerge_SpliceShape(t *testing.T) {
	visTree, err := ast.Parse("chart type=bar")
	require.NoError(t, err)

	layerTree, err := ast.Parse("load index=logs")
	require.NoError(t, err)

	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{
		layers:      []string{"l1"},
		expressions: map[string]any{"l1": layerTree},
	})

	expr, err := MergeDatasourceExpressions(visTree, datasources, nil)
	require.NoError(t, err)
	require.NotNil(t, expr)

	// merge node first, then the visualization chain in order.
	require.Len(t, expr.Chain, 2)
	head := expr.Chain[0]
	assert.Equal(t, FnMergeTables, head.Name)
	assert.Equal(t, []any{"l1"}, head.Arguments[ArgLayerIDs])
	assert.Equal(t, []any{layerTree}, head.Arguments[ArgTables])
	assert.Equal(t, visTree.Chain[0], expr.Chain[1])

	// The input trees themselves are untouched.
	require.Len(t, visTree.Chain, 1)
	assert.Equal(t, "chart", visTree.Chain[0].Name)
}

func TestMerge_OrderingAcrossDatasources(t *testing.T) {
	datasources := NewDatasourceMap()
	datasources.Set("second-added-first", &fakeDatasource{
		layers: []string{"a2", "a1"},
		expressions: map[string]any{
			"a2": "load table=a2",
			"a1": "load table=a1",
		},
	})
	datasources.Set("other", &fakeDatasource{
		layers: []string{"b1", "skipped"},
		expressions: map[string]any{
			"b1": "load table=b1",
		},
	})

	expr, err := MergeDatasourceExpressions("chart", datasources, nil)
	require.NoError(t, err)
	require.NotNil(t, expr)

	head := expr.Chain[0]
	layerIDs := head.Arguments[ArgLayerIDs]
	tables := head.Arguments[ArgTables]

	// Insertion order of the map, then each datasource's reported layer order.
	// Skipped layers leave no hole: the lists stay parallel.
	assert.Equal(t, []any{"a2", "a1", "b1"}, layerIDs)
	require.Len(t, tables, len(layerIDs))
	for i, table := range tables {
		tree := table.(*ast.Expression)
		assert.Equal(t, []any{layerIDs[i]}, tree.Chain[0].Arguments["table"])
	}
}

func TestMerge_ParsesTextualLayerExpressions(t *testing.T) {
	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{
		layers:      []string{"l1"},
		expressions: map[string]any{"l1": "load index=logs | drop field=ts"},
	})

	expr, err := MergeDatasourceExpressions("chart", datasources, nil)
	require.NoError(t, err)

	tree := expr.Chain[0].Arguments[ArgTables][0].(*ast.Expression)
	require.Len(t, tree.Chain, 2)
	assert.Equal(t, "load", tree.Chain[0].Name)
	assert.Equal(t, "drop", tree.Chain[1].Name)
}

func TestMerge_BadTextualExpression(t *testing.T) {
	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{
		layers:      []string{"l1"},
		expressions: map[string]any{"l1": "load index={unclosed"},
	})

	_, err := MergeDatasourceExpressions("chart", datasources, nil)
	assert.Error(t, err)
}

func TestMerge_DatasourceError(t *testing.T) {
	sentinel := errors.New("boom")
	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{layers: []string{"l1"}, err: sentinel})

	_, err := MergeDatasourceExpressions("chart", datasources, nil)
	assert.ErrorIs(t, err, sentinel)
}

func TestMerge_PassesDatasourceState(t *testing.T) {
	var seen []any
	ds := &stateRecordingDatasource{seen: &seen}

	datasources := NewDatasourceMap()
	datasources.Set("ds1", ds)
	states := map[string]ports.DatasourceState{
		"ds1": {IsLoading: true, State: "opaque-state"},
	}

	_, err := MergeDatasourceExpressions("chart", datasources, states)
	require.NoError(t, err)

	// The composer reads only State, never IsLoading.
	require.NotEmpty(t, seen)
	for _, s := range seen {
		assert.Equal(t, "opaque-state", s)
	}
}

type stateRecordingDatasource struct {
	seen *[]any
}

func (d *stateRecordingDatasource) GetLayers(state any) []string {
	*d.seen = append(*d.seen, state)
	return []string{"l1"}
}

func (d *stateRecordingDatasource) ToExpression(state any, layer string) (any, error) {
	*d.seen = append(*d.seen, state)
	return "load", nil
}

func TestPrependContext_AbsentExpression(t *testing.T) {
	for _, in := range []any{nil, ""} {
		expr, err := PrependContext(in, ContextParams{})
		require.NoError(t, err)
		assert.Nil(t, expr)
	}
}

func TestPrependContext_EmptyParams(t *testing.T) {
	expr, err := PrependContext("load index=logs | chart", ContextParams{})
	require.NoError(t, err)
	require.NotNil(t, expr)

	// Exactly two context nodes ahead of the original chain.
	require.Len(t, expr.Chain, 4)
	assert.Equal(t, FnGlobals, expr.Chain[0].Name)
	assert.Empty(t, expr.Chain[0].Arguments)

	ctxFn := expr.Chain[1]
	assert.Equal(t, FnGlobalContext, ctxFn.Name)
	assert.Equal(t, []any{}, ctxFn.Arguments[ArgTimeRange])
	assert.Equal(t, []any{}, ctxFn.Arguments[ArgQuery])
	assert.Equal(t, []any{}, ctxFn.Arguments[ArgFilters])

	assert.Equal(t, "load", expr.Chain[2].Name)
	assert.Equal(t, "chart", expr.Chain[3].Name)
}

func TestPrependContext_SerializedParamsRoundTrip(t *testing.T) {
	params := ContextParams{
		TimeRange: &TimeRange{From: "now-15m", To: "now"},
		Query:     &Query{Language: "kuery", Query: "status:200"},
		Filters: []Filter{
			{"meta": map[string]any{"negate": false}, "term": map[string]any{"host": "web-1"}},
		},
	}

	expr, err := PrependContext("chart", params)
	require.NoError(t, err)

	ctxFn := expr.Chain[1]

	timeRangeText := singleText(t, ctxFn.Arguments[ArgTimeRange])
	var tr TimeRange
	require.NoError(t, json.Unmarshal([]byte(timeRangeText), &tr))
	assert.Equal(t, *params.TimeRange, tr)

	queryText := singleText(t, ctxFn.Arguments[ArgQuery])
	var q Query
	require.NoError(t, json.Unmarshal([]byte(queryText), &q))
	assert.Equal(t, *params.Query, q)

	filtersText := singleText(t, ctxFn.Arguments[ArgFilters])
	var filters []Filter
	require.NoError(t, json.Unmarshal([]byte(filtersText), &filters))
	assert.Equal(t, params.Filters, filters)
}

func singleText(t *testing.T, values []any) string {
	t.Helper()
	require.Len(t, values, 1)
	text, ok := values[0].(string)
	require.True(t, ok, "context parameter must serialize to text")
	return text
}

func TestBuild_NilVisualization(t *testing.T) {
	expr, err := Build(BuildRequest{})
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestBuild_AbsentVisualizationExpression(t *testing.T) {
	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{
		layers:      []string{"l1"},
		expressions: map[string]any{"l1": "load"},
	})

	expr, err := Build(BuildRequest{
		Visualization: &fakeVisualization{expression: nil},
		Datasources:   datasources,
	})
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestBuild_CollapsesWithoutLayers(t *testing.T) {
	expr, err := Build(BuildRequest{
		Visualization: &fakeVisualization{expression: "chart"},
		Datasources:   NewDatasourceMap(),
	})
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestBuild_FullPipeline(t *testing.T) {
	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{
		layers:      []string{"l1"},
		expressions: map[string]any{"l1": "load index=logs"},
	})

	vis := &fakeVisualization{expression: "chart type=bar"}
	frame := ports.FrameAPI{LayerDatasources: map[string]string{"l1": "ds1"}}

	expr, err := Build(BuildRequest{
		Visualization:      vis,
		VisualizationState: "vis-state",
		Datasources:        datasources,
		DatasourceStates:   map[string]ports.DatasourceState{"ds1": {State: "ds-state"}},
		Frame:              frame,
	})
	require.NoError(t, err)
	require.NotNil(t, expr)

	// globals | global_context | merge_tables | chart
	require.Len(t, expr.Chain, 4)
	assert.Equal(t, FnGlobals, expr.Chain[0].Name)
	assert.Equal(t, FnGlobalContext, expr.Chain[1].Name)
	assert.Equal(t, FnMergeTables, expr.Chain[2].Name)
	assert.Equal(t, "chart", expr.Chain[3].Name)

	// Build always attaches empty context; callers add real parameters later.
	assert.Equal(t, []any{}, expr.Chain[1].Arguments[ArgTimeRange])

	// Visualization saw its state and the frame description.
	assert.Equal(t, "vis-state", vis.gotState)
	assert.Equal(t, frame, vis.gotFrame)
}

func TestBuild_VisualizationError(t *testing.T) {
	sentinel := errors.New("bad state")
	_, err := Build(BuildRequest{
		Visualization: &fakeVisualization{err: sentinel},
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestBuild_Deterministic(t *testing.T) {
	datasources := NewDatasourceMap()
	datasources.Set("ds1", &fakeDatasource{
		layers:      []string{"l1", "l2"},
		expressions: map[string]any{"l1": "load table=l1", "l2": "load table=l2"},
	})

	req := BuildRequest{
		Visualization: &fakeVisualization{expression: "chart"},
		Datasources:   datasources,
	}

	first, err := Build(req)
	require.NoError(t, err)
	second, err := Build(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first.String(), second.String())
}
