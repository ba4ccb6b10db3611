package http

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// rawSpec returns the embedded OpenAPI document.
func rawSpec() []byte {
	return openapiSpec
}

// LoadSpec parses and validates the embedded OpenAPI document. Called at
// startup so a malformed spec fails the process instead of serving garbage on
// /openapi.yaml.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}
