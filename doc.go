/*
Package vizpipe composes executable expression pipelines for visualization
engines.

A visualization produces its own expression chain; each datasource contributes
data-fetch expressions for the layers it owns. The composer splices both into
one tree, headed by a merge node that carries the per-layer tables, and
prepends the context nodes the engine resolves before anything else runs. The
result is handed to an external expression engine for execution; vizpipe never
evaluates trees itself.

Composition is all-or-nothing: if the visualization produces no expression, or
no layer contributes one, the result is nil rather than a partial tree.

# Usage

The pure transforms live in pkg/compose and need no setup. The Engine wraps
them with validation, optional caching and instrumentation:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/vizpipe/vizpipe"
		"github.com/vizpipe/vizpipe/pkg/adapters/memory"
	)

	func main() {
		def, err := memory.LoadFile("pipeline.yaml")
		if err != nil {
			log.Fatal(err)
		}

		eng := vizpipe.New()
		expr, err := eng.Compose(context.Background(), def.BuildRequest())
		if err != nil {
			log.Fatal(err)
		}
		if expr == nil {
			log.Fatal("definition produced no expression")
		}

		fmt.Println(expr) // canonical textual pipeline form
	}

Hosts with live editor state implement the two small interfaces in pkg/ports
(Visualization and Datasource) instead of loading static definitions.
*/
package vizpipe
