package registry

import (
	"github.com/vizpipe/vizpipe/pkg/compose"
)

// builtins returns definitions for the functions the composer itself emits.
func builtins() []FnDef {
	return []FnDef{
		{
			Name: compose.FnMergeTables,
			Help: "Joins per-layer tables into a single input for the visualization chain.",
			Args: map[string]ArgDef{
				compose.ArgLayerIDs: {
					Types:    []ArgType{TypeString},
					Required: true,
					Multi:    true,
					Help:     "Layer identifiers, parallel to tables.",
				},
				compose.ArgTables: {
					Types:    []ArgType{TypeExpression},
					Required: true,
					Multi:    true,
					Help:     "Per-layer data-fetch expressions, parallel to layerIds.",
				},
			},
		},
		{
			Name: compose.FnGlobals,
			Help: "Establishes the engine's global context. Takes no arguments.",
			Args: map[string]ArgDef{},
		},
		{
			Name: compose.FnGlobalContext,
			Help: "Configures time range, query and filters on the global context.",
			Args: map[string]ArgDef{
				compose.ArgTimeRange: {
					Types: []ArgType{TypeString},
					Help:  "JSON-serialized time range.",
				},
				compose.ArgQuery: {
					Types:   []ArgType{TypeString},
					Aliases: []string{"q"},
					Help:    "JSON-serialized query.",
				},
				compose.ArgFilters: {
					Types: []ArgType{TypeString},
					Help:  "JSON-serialized filter list.",
				},
			},
		},
	}
}
