// Package ports defines the narrow contracts between the composer core and
// the host application: the Visualization and Datasource capabilities that
// feed expressions in, and the ExpressionCache driven port for storing
// composed trees. Keeping these as small interfaces lets hosts plug in
// anything from YAML-backed static definitions to live editor state.
package ports
