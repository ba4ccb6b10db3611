package ports

import (
	"context"
	"time"

	"github.com/vizpipe/vizpipe/pkg/ast"
)

// Visualization is the capability a chart type exposes to the composer.
// Implementations live in the host application and are opaque here.
type Visualization interface {
	// ToExpression returns the visualization's own expression chain given its
	// state and a description of the frame it renders into. The result is a
	// *ast.Expression, the textual pipeline form as a string, or nil when the
	// state cannot produce an expression yet.
	ToExpression(state any, frame FrameAPI) (any, error)
}

// Datasource is the capability a data provider exposes to the composer.
type Datasource interface {
	// GetLayers reports the layer identifiers the datasource contributes for
	// the given state, in a stable order.
	GetLayers(state any) []string

	// ToExpression returns the data-fetch expression for one layer: a
	// *ast.Expression, the textual form as a string, or nil when the layer has
	// nothing to contribute. A nil result is not an error.
	ToExpression(state any, layer string) (any, error)
}

// DatasourceState is the host-supplied snapshot for one datasource. The
// composer only ever reads State; IsLoading is carried for hosts that gate
// composition on it.
type DatasourceState struct {
	IsLoading bool
	State     any
}

// FrameAPI describes the frame a visualization renders into. It is handed
// through to Visualization.ToExpression untouched.
type FrameAPI struct {
	// LayerDatasources maps each layer to the ID of the datasource that owns it.
	LayerDatasources map[string]string

	// DateRange is the frame's absolute date range, when known.
	DateRange *DateRange
}

// DateRange is an absolute from/to pair.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ExpressionCache stores composed trees keyed by a fingerprint of their
// inputs. Implementations must be safe for concurrent use.
type ExpressionCache interface {
	// Get returns the cached tree for the key, or (nil, nil) on a miss.
	Get(ctx context.Context, key string) (*ast.Expression, error)

	// Put stores the tree under the key.
	Put(ctx context.Context, key string, expr *ast.Expression) error
}
