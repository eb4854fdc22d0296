package skillgraph

import (
	"errors"
	"strings"
	"testing"
)

// testGraph builds a small fixture:
//
//	skills:       backend -> {go, sql}; go -> {go-syntax, go-concurrency}; docker; k8s
//	competencies: c-eng -> {c-backend, c-platform}
//	              c-backend -> {c-go, c-data} + docker
//	              c-platform -> {c-go} + k8s
//	              c-go -> go; c-data -> sql
func testGraph(t *testing.T) *Graph {
	t.Helper()
	defs := &Definitions{
		Skills: []Skill{
			{ID: "backend", Name: "Backend", Children: []string{"go", "sql"}},
			{ID: "go", Name: "Go", Children: []string{"go-syntax", "go-concurrency"}},
			{ID: "go-syntax", Name: "Go Syntax"},
			{ID: "go-concurrency", Name: "Go Concurrency"},
			{ID: "sql", Name: "SQL"},
			{ID: "docker", Name: "Docker"},
			{ID: "k8s", Name: "Kubernetes"},
		},
		Competencies: []Competency{
			{ID: "c-eng", Name: "Engineering", SubCompetencies: []string{"c-backend", "c-platform"}},
			{ID: "c-backend", Name: "Backend Development", SubCompetencies: []string{"c-go", "c-data"}, Skills: []string{"docker"}},
			{ID: "c-platform", Name: "Platform", SubCompetencies: []string{"c-go"}, Skills: []string{"k8s"}},
			{ID: "c-go", Name: "Go Programming", Skills: []string{"go"}},
			{ID: "c-data", Name: "Data", Skills: []string{"sql"}},
		},
	}
	g, err := defs.Build()
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func skillIDs(skills []Skill) string {
	ids := make([]string, len(skills))
	for i, s := range skills {
		ids[i] = s.ID
	}
	return strings.Join(ids, ",")
}

func compIDs(comps []Competency) string {
	ids := make([]string, len(comps))
	for i, c := range comps {
		ids[i] = c.ID
	}
	return strings.Join(ids, ",")
}

func TestIsLeaf(t *testing.T) {
	g := testGraph(t)

	tests := []struct {
		id   string
		want bool
	}{
		{"go-syntax", true},
		{"sql", true},
		{"go", false},
		{"backend", false},
	}
	for _, tt := range tests {
		got, err := g.IsLeaf(tt.id)
		if err != nil {
			t.Fatalf("IsLeaf(%q): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("IsLeaf(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestIsLeaf_NotFound(t *testing.T) {
	g := testGraph(t)
	_, err := g.IsLeaf("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByName_CaseInsensitive(t *testing.T) {
	g := testGraph(t)
	s, ok := g.FindByName("  go SYNTAX ")
	if !ok {
		t.Fatal("expected skill to be found")
	}
	if s.ID != "go-syntax" {
		t.Errorf("got %q, want go-syntax", s.ID)
	}
	if _, ok := g.FindByName("rust"); ok {
		t.Error("expected unknown name to miss")
	}
}

func TestRequiredMGS_FlattensSubCompetencies(t *testing.T) {
	g := testGraph(t)

	tests := []struct {
		id   string
		want string
	}{
		{"c-go", "go-concurrency,go-syntax"},
		{"c-data", "sql"},
		{"c-backend", "docker,go-concurrency,go-syntax,sql"},
		{"c-platform", "go-concurrency,go-syntax,k8s"},
		{"c-eng", "docker,go-concurrency,go-syntax,k8s,sql"},
	}
	for _, tt := range tests {
		req, err := g.RequiredMGS(tt.id)
		if err != nil {
			t.Fatalf("RequiredMGS(%q): %v", tt.id, err)
		}
		if got := skillIDs(req); got != tt.want {
			t.Errorf("RequiredMGS(%q) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestParentCompetencies_NearestFirstNoDuplicates(t *testing.T) {
	g := testGraph(t)
	chain, err := g.ParentCompetencies("c-go")
	if err != nil {
		t.Fatalf("ParentCompetencies: %v", err)
	}
	// c-go has two parents sharing c-eng; c-eng must appear once, last.
	if got := compIDs(chain); got != "c-backend,c-platform,c-eng" {
		t.Errorf("chain = %s", got)
	}

	roots, err := g.ParentCompetencies("c-eng")
	if err != nil {
		t.Fatalf("ParentCompetencies: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("root has ancestors: %s", compIDs(roots))
	}
}

func TestSubCompetencies(t *testing.T) {
	g := testGraph(t)
	subs, err := g.SubCompetencies("c-backend")
	if err != nil {
		t.Fatalf("SubCompetencies: %v", err)
	}
	if got := compIDs(subs); got != "c-go,c-data" {
		t.Errorf("subs = %s", got)
	}
}

func TestCompetenciesBySkill_TraversesUpward(t *testing.T) {
	g := testGraph(t)

	comps, err := g.CompetenciesBySkill("go-syntax")
	if err != nil {
		t.Fatalf("CompetenciesBySkill: %v", err)
	}
	if got := compIDs(comps); got != "c-backend,c-eng,c-go,c-platform" {
		t.Errorf("go-syntax owners = %s", got)
	}

	comps, err = g.CompetenciesBySkill("docker")
	if err != nil {
		t.Fatalf("CompetenciesBySkill: %v", err)
	}
	if got := compIDs(comps); got != "c-backend,c-eng" {
		t.Errorf("docker owners = %s", got)
	}
}

func TestOwnersBySkill_SkipsSubCompetencyEdges(t *testing.T) {
	g := testGraph(t)

	comps, err := g.OwnersBySkill("go-syntax")
	if err != nil {
		t.Fatalf("OwnersBySkill: %v", err)
	}
	if got := compIDs(comps); got != "c-go" {
		t.Errorf("go-syntax direct owners = %s", got)
	}

	comps, err = g.OwnersBySkill("docker")
	if err != nil {
		t.Fatalf("OwnersBySkill: %v", err)
	}
	if got := compIDs(comps); got != "c-backend" {
		t.Errorf("docker direct owners = %s", got)
	}

	if _, err := g.OwnersBySkill("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompetenciesBySkill_NotFound(t *testing.T) {
	g := testGraph(t)
	if _, err := g.CompetenciesBySkill("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTopoIndex_ChildrenBeforeParents(t *testing.T) {
	g := testGraph(t)
	for _, c := range g.Competencies() {
		for _, sub := range c.SubCompetencies {
			if g.TopoIndex(sub) >= g.TopoIndex(c.ID) {
				t.Errorf("sub-competency %q (%d) not before %q (%d)",
					sub, g.TopoIndex(sub), c.ID, g.TopoIndex(c.ID))
			}
		}
	}
}

func TestLoadDefinitions_YAML(t *testing.T) {
	src := `
skills:
  - id: s1
    name: Skill One
  - id: s2
    name: Skill Two
competencies:
  - id: c1
    name: Comp One
    skills: [s1, s2]
`
	defs, err := LoadDefinitions(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}
	g, err := defs.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	req, _ := g.RequiredMGS("c1")
	if got := skillIDs(req); got != "s1,s2" {
		t.Errorf("required = %s", got)
	}
}

func TestLoadDefinitions_UnknownField(t *testing.T) {
	src := "skills:\n  - id: s1\n    nmae: typo\n"
	if _, err := LoadDefinitions(strings.NewReader(src)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
