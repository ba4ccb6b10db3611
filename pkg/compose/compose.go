package compose

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/ports"
)

// Function and argument names emitted into composed trees. The downstream
// expression engine resolves these; they are part of the wire contract.
const (
	// FnMergeTables joins the per-layer tables into one input for the
	// visualization chain.
	FnMergeTables = "merge_tables"
	// FnGlobals establishes the engine's global context object.
	FnGlobals = "globals"
	// FnGlobalContext configures time range, query and filters on the global
	// context. It must run before any data-fetch node.
	FnGlobalContext = "global_context"

	ArgLayerIDs  = "layerIds"
	ArgTables    = "tables"
	ArgTimeRange = "timeRange"
	ArgQuery     = "query"
	ArgFilters   = "filters"
)

// DatasourceMap holds datasources keyed by ID, preserving insertion order.
// Order matters: the layerIds/tables pairing in the merge node follows it.
type DatasourceMap struct {
	m *orderedmap.OrderedMap[string, ports.Datasource]
}

// NewDatasourceMap returns an empty map.
func NewDatasourceMap() *DatasourceMap {
	return &DatasourceMap{m: orderedmap.New[string, ports.Datasource]()}
}

// Set registers a datasource under the given ID. Re-setting an existing ID
// keeps its original position.
func (dm *DatasourceMap) Set(id string, ds ports.Datasource) *DatasourceMap {
	dm.m.Set(id, ds)
	return dm
}

// Get returns the datasource registered under id.
func (dm *DatasourceMap) Get(id string) (ports.Datasource, bool) {
	return dm.m.Get(id)
}

// Len returns the number of registered datasources.
func (dm *DatasourceMap) Len() int {
	if dm == nil {
		return 0
	}
	return dm.m.Len()
}

// IDs returns the datasource IDs in insertion order.
func (dm *DatasourceMap) IDs() []string {
	if dm == nil {
		return nil
	}
	ids := make([]string, 0, dm.m.Len())
	for pair := dm.m.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// BuildRequest carries everything Build needs for one composition.
type BuildRequest struct {
	Visualization      ports.Visualization
	VisualizationState any
	Datasources        *DatasourceMap
	DatasourceStates   map[string]ports.DatasourceState
	Frame              ports.FrameAPI
}

// Build produces the complete expression for a visualization: the
// visualization's own chain, with per-layer data-fetch expressions merged in
// front and the context nodes prepended with empty parameters.
//
// The result is all-or-nothing. A nil visualization, an absent visualization
// expression, or zero contributed layer expressions all yield (nil, nil);
// there are no partial trees. Hosts that need real context parameters attach
// them through PrependContext on a separate call path.
func Build(req BuildRequest) (*ast.Expression, error) {
	if req.Visualization == nil {
		return nil, nil
	}
	visExpr, err := req.Visualization.ToExpression(req.VisualizationState, req.Frame)
	if err != nil {
		return nil, fmt.Errorf("visualization expression: %w", err)
	}
	merged, err := MergeDatasourceExpressions(visExpr, req.Datasources, req.DatasourceStates)
	if err != nil || merged == nil {
		return nil, err
	}
	return PrependContext(merged, ContextParams{})
}

// MergeDatasourceExpressions splices per-layer data-fetch expressions into the
// visualization expression. The resulting chain starts with a merge node
// carrying two parallel lists, the layer IDs and the corresponding layer
// trees, followed by the visualization chain unchanged.
//
// Layers whose datasource reports no expression are skipped silently. If no
// layer contributes, or the visualization expression is absent, the result is
// (nil, nil). Inputs are never mutated.
func MergeDatasourceExpressions(visExpr any, datasources *DatasourceMap, states map[string]ports.DatasourceState) (*ast.Expression, error) {
	var (
		layerIDs []any
		tables   []any
	)
	if datasources != nil {
		for pair := datasources.m.Oldest(); pair != nil; pair = pair.Next() {
			id, ds := pair.Key, pair.Value
			state := states[id].State
			for _, layer := range ds.GetLayers(state) {
				raw, err := ds.ToExpression(state, layer)
				if err != nil {
					return nil, fmt.Errorf("datasource %q layer %q: %w", id, layer, err)
				}
				tree, err := toTree(raw)
				if err != nil {
					return nil, fmt.Errorf("datasource %q layer %q: %w", id, layer, err)
				}
				if tree == nil {
					continue
				}
				layerIDs = append(layerIDs, layer)
				tables = append(tables, tree)
			}
		}
	}

	visTree, err := toTree(visExpr)
	if err != nil {
		return nil, fmt.Errorf("visualization expression: %w", err)
	}
	if visTree == nil || len(layerIDs) == 0 {
		return nil, nil
	}

	head := ast.NewFn(FnMergeTables, ast.Arguments{
		ArgLayerIDs: layerIDs,
		ArgTables:   tables,
	})
	chain := make([]*ast.Fn, 0, len(visTree.Chain)+1)
	chain = append(chain, head)
	chain = append(chain, visTree.Chain...)
	return ast.New(chain...), nil
}

// PrependContext wraps an expression with the two context nodes: FnGlobals
// with no arguments, then FnGlobalContext carrying timeRange, query and
// filters. A supplied parameter becomes a single JSON-serialized text value;
// an absent one becomes an empty argument list. The context nodes must come
// first so the engine resolves the global context before any data-fetch or
// visualization node runs.
//
// A nil (or empty textual) expression yields (nil, nil).
func PrependContext(expr any, params ContextParams) (*ast.Expression, error) {
	tree, err := toTree(expr)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}

	args := ast.Arguments{
		ArgTimeRange: []any{},
		ArgQuery:     []any{},
		ArgFilters:   []any{},
	}
	if params.TimeRange != nil {
		text, err := jsonText(params.TimeRange)
		if err != nil {
			return nil, err
		}
		args[ArgTimeRange] = []any{text}
	}
	if params.Query != nil {
		text, err := jsonText(params.Query)
		if err != nil {
			return nil, err
		}
		args[ArgQuery] = []any{text}
	}
	if params.Filters != nil {
		text, err := jsonText(params.Filters)
		if err != nil {
			return nil, err
		}
		args[ArgFilters] = []any{text}
	}

	chain := make([]*ast.Fn, 0, len(tree.Chain)+2)
	chain = append(chain, ast.NewFn(FnGlobals, nil), ast.NewFn(FnGlobalContext, args))
	chain = append(chain, tree.Chain...)
	return ast.New(chain...), nil
}

// toTree normalizes the three accepted expression forms. nil and "" mean
// absent; strings are parsed from the textual pipeline form.
func toTree(expr any) (*ast.Expression, error) {
	switch v := expr.(type) {
	case nil:
		return nil, nil
	case *ast.Expression:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return ast.Parse(v)
	default:
		return nil, fmt.Errorf("unsupported expression form %T", expr)
	}
}
