// Package compose splices visualization and datasource expression chains into
// one executable pipeline. It is a pure, synchronous transform: given
// read-only snapshots it either returns a freshly allocated tree or nil when
// any required input is absent. The only errors it produces are parse
// failures of textual expression forms.
package compose
