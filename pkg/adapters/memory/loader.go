package memory

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/vizpipe/vizpipe/pkg/compose"
	"github.com/vizpipe/vizpipe/pkg/ports"
)

// Definition is the YAML shape of a static pipeline: one visualization
// expression plus the datasources and layers that feed it.
type Definition struct {
	Visualization VisualizationDef `yaml:"visualization"`
	Datasources   []DatasourceDef  `yaml:"datasources"`
}

// VisualizationDef declares the visualization's textual expression.
type VisualizationDef struct {
	Expression string `yaml:"expression"`
}

// DatasourceDef declares one datasource, its layers and its opaque state.
type DatasourceDef struct {
	ID     string         `yaml:"id"`
	Layers []LayerDef     `yaml:"layers"`
	State  map[string]any `yaml:"state"`
}

// LayerDef declares one layer's data-fetch expression.
type LayerDef struct {
	ID         string `yaml:"id"`
	Expression string `yaml:"expression"`
}

// Load reads a pipeline definition from YAML.
func Load(r io.Reader) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode pipeline definition: %w", err)
	}
	if err := def.check(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a pipeline definition from a YAML file.
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pipeline definition: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (d *Definition) check() error {
	seen := make(map[string]bool, len(d.Datasources))
	for _, ds := range d.Datasources {
		if ds.ID == "" {
			return fmt.Errorf("datasource without id")
		}
		if seen[ds.ID] {
			return fmt.Errorf("duplicate datasource id %q", ds.ID)
		}
		seen[ds.ID] = true
		for _, layer := range ds.Layers {
			if layer.ID == "" {
				return fmt.Errorf("datasource %q: layer without id", ds.ID)
			}
		}
	}
	return nil
}

// BuildRequest converts the definition into a ready-to-compose request.
// Datasources keep their declared order.
func (d *Definition) BuildRequest() compose.BuildRequest {
	datasources := compose.NewDatasourceMap()
	states := make(map[string]ports.DatasourceState, len(d.Datasources))
	layerOwners := make(map[string]string)

	for _, ds := range d.Datasources {
		datasources.Set(ds.ID, NewStaticDatasource(ds.Layers))
		states[ds.ID] = ports.DatasourceState{State: ds.State}
		for _, layer := range ds.Layers {
			layerOwners[layer.ID] = ds.ID
		}
	}

	return compose.BuildRequest{
		Visualization:    NewStaticVisualization(d.Visualization.Expression),
		Datasources:      datasources,
		DatasourceStates: states,
		Frame:            ports.FrameAPI{LayerDatasources: layerOwners},
	}
}

// DecodeState decodes a datasource's opaque state block into a typed struct.
// Adapters that carry structured state in YAML use this instead of manual
// type assertions.
func DecodeState(state any, out any) error {
	if state == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "yaml",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(state); err != nil {
		return fmt.Errorf("decode datasource state: %w", err)
	}
	return nil
}

// StaticVisualization serves a fixed textual expression, ignoring state and
// frame.
type StaticVisualization struct {
	expression string
}

// NewStaticVisualization wraps a textual expression as a ports.Visualization.
// An empty expression reports absence.
func NewStaticVisualization(expression string) *StaticVisualization {
	return &StaticVisualization{expression: expression}
}

func (v *StaticVisualization) ToExpression(state any, frame ports.FrameAPI) (any, error) {
	if v.expression == "" {
		return nil, nil
	}
	return v.expression, nil
}

// StaticDatasource serves fixed per-layer textual expressions.
type StaticDatasource struct {
	order       []string
	expressions map[string]string
}

// NewStaticDatasource wraps declared layers as a ports.Datasource. Layers
// keep their declared order; layers with empty expressions report absence.
func NewStaticDatasource(layers []LayerDef) *StaticDatasource {
	ds := &StaticDatasource{expressions: make(map[string]string, len(layers))}
	for _, layer := range layers {
		ds.order = append(ds.order, layer.ID)
		ds.expressions[layer.ID] = layer.Expression
	}
	return ds
}

func (d *StaticDatasource) GetLayers(state any) []string {
	return d.order
}

func (d *StaticDatasource) ToExpression(state any, layer string) (any, error) {
	expr, ok := d.expressions[layer]
	if !ok || expr == "" {
		return nil, nil
	}
	return expr, nil
}
