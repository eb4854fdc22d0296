package skillgraph

import "errors"

// ErrNotFound is returned when a skill or competency id is not in the graph.
var ErrNotFound = errors.New("not found")

// Skill is a node in the skill tree. A skill with no children is a
// minimal granular skill (MGS) and is the only kind that can be verified.
type Skill struct {
	ID       string   `yaml:"id" json:"skill_id"`
	Name     string   `yaml:"name" json:"skill_name"`
	Children []string `yaml:"children,omitempty" json:"-"`
}

// IsLeaf reports whether the skill has no children.
func (s Skill) IsLeaf() bool {
	return len(s.Children) == 0
}

// Competency is a node in the competency DAG. A competency may be the
// sub-competency of several parents.
type Competency struct {
	ID              string   `yaml:"id" json:"competency_id"`
	Name            string   `yaml:"name" json:"competency_name"`
	SubCompetencies []string `yaml:"sub_competencies,omitempty" json:"-"`
	Skills          []string `yaml:"skills,omitempty" json:"-"`
}
