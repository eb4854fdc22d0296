package skillgraph

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Graph is a read-only view over the skill tree and the competency DAG
// with precomputed indices. It is safe for concurrent use.
type Graph struct {
	skills       []Skill
	competencies []Competency

	skillByID    map[string]*Skill
	skillByName  map[string]*Skill
	skillParents map[string][]string

	compByID      map[string]*Competency
	compParents   map[string][]string
	skillOwners   map[string][]string
	compTopoIndex map[string]int

	requiredMGS map[string][]Skill
}

// New validates the definitions and builds a Graph from them.
func New(skills []Skill, competencies []Competency) (*Graph, error) {
	if err := validateDefinitions(skills, competencies); err != nil {
		return nil, err
	}
	return buildGraph(skills, competencies), nil
}

// buildGraph constructs the indices. Definitions must already be valid.
func buildGraph(skills []Skill, competencies []Competency) *Graph {
	gr := &Graph{
		skills:        slices.Clone(skills),
		competencies:  slices.Clone(competencies),
		skillByID:     make(map[string]*Skill, len(skills)),
		skillByName:   make(map[string]*Skill, len(skills)),
		skillParents:  make(map[string][]string),
		compByID:      make(map[string]*Competency, len(competencies)),
		compParents:   make(map[string][]string),
		skillOwners:   make(map[string][]string),
		compTopoIndex: make(map[string]int, len(competencies)),
		requiredMGS:   make(map[string][]Skill, len(competencies)),
	}

	for i := range gr.skills {
		s := &gr.skills[i]
		gr.skillByID[s.ID] = s
		key := nameKey(s.Name)
		if _, dup := gr.skillByName[key]; !dup {
			gr.skillByName[key] = s
		}
	}
	for i := range gr.skills {
		for _, childID := range gr.skills[i].Children {
			gr.skillParents[childID] = append(gr.skillParents[childID], gr.skills[i].ID)
		}
	}

	for i := range gr.competencies {
		c := &gr.competencies[i]
		gr.compByID[c.ID] = c
	}
	for i := range gr.competencies {
		c := gr.competencies[i]
		for _, subID := range c.SubCompetencies {
			gr.compParents[subID] = append(gr.compParents[subID], c.ID)
		}
		for _, skillID := range c.Skills {
			gr.skillOwners[skillID] = append(gr.skillOwners[skillID], c.ID)
		}
	}

	// Topological order over competencies (Kahn's algorithm) with
	// sub-competencies ordered before their parents.
	pending := make(map[string]int, len(gr.competencies))
	for _, c := range gr.competencies {
		pending[c.ID] = len(c.SubCompetencies)
	}
	var queue []string
	for id, n := range pending {
		if n == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)
	for idx := 0; len(queue) > 0; idx++ {
		id := queue[0]
		queue = queue[1:]
		gr.compTopoIndex[id] = idx

		parents := slices.Clone(gr.compParents[id])
		sort.Strings(parents)
		for _, p := range parents {
			pending[p]--
			if pending[p] == 0 {
				queue = append(queue, p)
			}
		}
	}

	for _, c := range gr.competencies {
		gr.requiredMGS[c.ID] = gr.collectRequired(c.ID)
	}

	return gr
}

// collectRequired flattens the leaf skills reachable from a competency,
// directly or through its sub-competencies. The result is sorted by id.
func (g *Graph) collectRequired(compID string) []Skill {
	seenSkill := make(map[string]bool)
	seenComp := make(map[string]bool)
	var leaves []Skill

	var walkSkill func(id string)
	walkSkill = func(id string) {
		if seenSkill[id] {
			return
		}
		seenSkill[id] = true
		s, ok := g.skillByID[id]
		if !ok {
			return
		}
		if s.IsLeaf() {
			leaves = append(leaves, *s)
			return
		}
		for _, child := range s.Children {
			walkSkill(child)
		}
	}

	stack := []string{compID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seenComp[id] {
			continue
		}
		seenComp[id] = true
		c, ok := g.compByID[id]
		if !ok {
			continue
		}
		for _, skillID := range c.Skills {
			walkSkill(skillID)
		}
		stack = append(stack, c.SubCompetencies...)
	}

	sort.Slice(leaves, func(i, j int) bool { return leaves[i].ID < leaves[j].ID })
	return leaves
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Skill returns a skill by id.
func (g *Graph) Skill(id string) (Skill, error) {
	s, ok := g.skillByID[id]
	if !ok {
		return Skill{}, fmt.Errorf("skill %q: %w", id, ErrNotFound)
	}
	return *s, nil
}

// IsLeaf reports whether the skill has no children.
// It returns ErrNotFound for an unknown id.
func (g *Graph) IsLeaf(id string) (bool, error) {
	s, err := g.Skill(id)
	if err != nil {
		return false, err
	}
	return s.IsLeaf(), nil
}

// FindByName resolves a skill by its name, ignoring case and surrounding
// whitespace. When several skills share a name the first defined wins.
func (g *Graph) FindByName(name string) (Skill, bool) {
	s, ok := g.skillByName[nameKey(name)]
	if !ok {
		return Skill{}, false
	}
	return *s, true
}

// Skills returns all skills in definition order.
func (g *Graph) Skills() []Skill {
	return slices.Clone(g.skills)
}

// Competency returns a competency by id.
func (g *Graph) Competency(id string) (Competency, error) {
	c, ok := g.compByID[id]
	if !ok {
		return Competency{}, fmt.Errorf("competency %q: %w", id, ErrNotFound)
	}
	return *c, nil
}

// Competencies returns all competencies in definition order.
func (g *Graph) Competencies() []Competency {
	return slices.Clone(g.competencies)
}

// SubCompetencies returns the direct children of a competency.
func (g *Graph) SubCompetencies(id string) ([]Competency, error) {
	c, ok := g.compByID[id]
	if !ok {
		return nil, fmt.Errorf("competency %q: %w", id, ErrNotFound)
	}
	result := make([]Competency, 0, len(c.SubCompetencies))
	for _, subID := range c.SubCompetencies {
		if sub, ok := g.compByID[subID]; ok {
			result = append(result, *sub)
		}
	}
	return result, nil
}

// ParentCompetencies returns the full ancestor chain of a competency,
// nearest first (breadth-first), each ancestor once.
func (g *Graph) ParentCompetencies(id string) ([]Competency, error) {
	if _, ok := g.compByID[id]; !ok {
		return nil, fmt.Errorf("competency %q: %w", id, ErrNotFound)
	}
	seen := map[string]bool{id: true}
	var chain []Competency
	queue := slices.Clone(g.compParents[id])
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		if seen[pid] {
			continue
		}
		seen[pid] = true
		chain = append(chain, *g.compByID[pid])
		queue = append(queue, g.compParents[pid]...)
	}
	return chain, nil
}

// OwnersBySkill returns the competencies linked to the skill directly or
// through an ancestor skill. Sub-competency edges are not followed.
// Results are unique by id and ordered by id.
func (g *Graph) OwnersBySkill(skillID string) ([]Competency, error) {
	owners, err := g.owners(skillID)
	if err != nil {
		return nil, err
	}
	return g.competenciesByID(owners), nil
}

// CompetenciesBySkill returns every competency that requires the skill,
// directly, through an ancestor skill, or through a sub-competency.
// Results are unique by id and ordered by id.
func (g *Graph) CompetenciesBySkill(skillID string) ([]Competency, error) {
	owners, err := g.owners(skillID)
	if err != nil {
		return nil, err
	}
	compSeen := map[string]bool{}
	for owner := range owners {
		compSeen[owner] = true
		ancestors, _ := g.ParentCompetencies(owner)
		for _, a := range ancestors {
			compSeen[a.ID] = true
		}
	}
	return g.competenciesByID(compSeen), nil
}

// owners walks up the skill hierarchy and collects the competencies
// linked to any skill on the way.
func (g *Graph) owners(skillID string) (map[string]bool, error) {
	if _, ok := g.skillByID[skillID]; !ok {
		return nil, fmt.Errorf("skill %q: %w", skillID, ErrNotFound)
	}

	skillSeen := map[string]bool{}
	stack := []string{skillID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if skillSeen[id] {
			continue
		}
		skillSeen[id] = true
		stack = append(stack, g.skillParents[id]...)
	}

	owners := map[string]bool{}
	for id := range skillSeen {
		for _, owner := range g.skillOwners[id] {
			owners[owner] = true
		}
	}
	return owners, nil
}

func (g *Graph) competenciesByID(ids map[string]bool) []Competency {
	result := make([]Competency, 0, len(ids))
	for id := range ids {
		result = append(result, *g.compByID[id])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// RequiredMGS returns all leaf skills a competency requires, flattening
// sub-competency requirements. The slice is sorted by skill id.
func (g *Graph) RequiredMGS(id string) ([]Skill, error) {
	req, ok := g.requiredMGS[id]
	if !ok {
		return nil, fmt.Errorf("competency %q: %w", id, ErrNotFound)
	}
	return slices.Clone(req), nil
}

// TopoIndex returns the position of a competency in an order where every
// sub-competency precedes its parents. Unknown ids sort last.
func (g *Graph) TopoIndex(id string) int {
	if i, ok := g.compTopoIndex[id]; ok {
		return i
	}
	return len(g.compTopoIndex)
}
