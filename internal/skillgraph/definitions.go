package skillgraph

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Definitions is the on-disk form of the skill tree and competency DAG,
// as produced by the administrative import.
type Definitions struct {
	Skills       []Skill      `yaml:"skills"`
	Competencies []Competency `yaml:"competencies"`
}

// LoadDefinitions decodes YAML definitions from r.
func LoadDefinitions(r io.Reader) (*Definitions, error) {
	var defs Definitions
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		if err == io.EOF {
			return &defs, nil
		}
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	return &defs, nil
}

// Build validates the definitions and returns the resulting Graph.
func (d *Definitions) Build() (*Graph, error) {
	return New(d.Skills, d.Competencies)
}
