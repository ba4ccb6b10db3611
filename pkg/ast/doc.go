// Package ast models expression pipelines: ordered chains of function calls
// whose arguments are scalars or nested sub-expressions.
//
// The package covers three concerns:
//
//   - the tree itself (Expression, Fn, Arguments), treated as immutable by the
//     rest of the system
//   - the textual pipeline form, via Parse and Expression.String
//   - the JSON wire shape expected by the downstream expression engine, via
//     the custom MarshalJSON/UnmarshalJSON implementations
//
// The textual and JSON forms are both lossless: parse/render and
// marshal/unmarshal round-trip the same tree.
package ast
