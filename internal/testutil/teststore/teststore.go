// Package teststore provides SQLite-backed test helpers shared by the
// coverage, gaps, profile and engine tests.
//
// Each Env opens an isolated in-memory database, imports the given
// definitions and builds the read-only graph from what was stored, so
// tests exercise the same load path as the CLI.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    env := teststore.New(t, teststore.Scenario())
//	    env.Own("u1", "C1", "S1")
//	    row := env.Row("u1", "C1")
//	}
package teststore

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
)

// Env is an isolated store plus the graph built from its definitions.
type Env struct {
	t     testing.TB
	Store *store.Store
	Graph *skillgraph.Graph
}

// New opens an in-memory store, saves defs and loads the graph back.
func New(t testing.TB, defs *skillgraph.Definitions) *Env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	st, err := store.Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.DefinitionRepo().Save(ctx, defs); err != nil {
		t.Fatalf("save definitions: %v", err)
	}
	g, err := store.LoadGraph(ctx, st.DefinitionRepo())
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	return &Env{t: t, Store: st, Graph: g}
}

// Scenario returns the shared fixture:
//
//	C2 (requires S3) -> C1 (requires S1, S2)
//	C2               -> C3 (requires web = {S4, S5})
//	C4 (requires S6), unrelated root
func Scenario() *skillgraph.Definitions {
	return &skillgraph.Definitions{
		Skills: []skillgraph.Skill{
			{ID: "S1", Name: "Skill One"},
			{ID: "S2", Name: "Skill Two"},
			{ID: "S3", Name: "Skill Three"},
			{ID: "web", Name: "Web", Children: []string{"S4", "S5"}},
			{ID: "S4", Name: "HTML"},
			{ID: "S5", Name: "CSS"},
			{ID: "S6", Name: "Skill Six"},
		},
		Competencies: []skillgraph.Competency{
			{ID: "C1", Name: "Competency One", Skills: []string{"S1", "S2"}},
			{ID: "C2", Name: "Competency Two", SubCompetencies: []string{"C1", "C3"}, Skills: []string{"S3"}},
			{ID: "C3", Name: "Competency Three", Skills: []string{"web"}},
			{ID: "C4", Name: "Competency Four", Skills: []string{"S6"}},
		},
	}
}

// Own creates a row for (userID, competencyID) with the given skills
// verified. Coverage is left at zero.
func (e *Env) Own(userID, competencyID string, verifiedSkillIDs ...string) *store.UserCompetency {
	e.t.Helper()
	uc := &store.UserCompetency{UserID: userID, CompetencyID: competencyID}
	for _, id := range verifiedSkillIDs {
		s, err := e.Graph.Skill(id)
		if err != nil {
			e.t.Fatalf("own %s: %v", competencyID, err)
		}
		uc.VerifiedSkills = append(uc.VerifiedSkills, store.VerifiedSkill{SkillID: s.ID, SkillName: s.Name, Verified: true})
	}
	if err := e.Store.UserCompetencyRepo().Create(context.Background(), uc); err != nil {
		e.t.Fatalf("own %s: %v", competencyID, err)
	}
	return uc
}

// Career adds competencies to the user's career path.
func (e *Env) Career(userID string, competencyIDs ...string) {
	e.t.Helper()
	for _, id := range competencyIDs {
		if err := e.Store.CareerPathRepo().Add(context.Background(), userID, id); err != nil {
			e.t.Fatalf("career %s: %v", id, err)
		}
	}
}

// Row returns the stored row, or nil if the user does not own it.
func (e *Env) Row(userID, competencyID string) *store.UserCompetency {
	e.t.Helper()
	uc, err := e.Store.UserCompetencyRepo().FindByUserAndCompetency(context.Background(), userID, competencyID)
	if err != nil {
		e.t.Fatalf("row %s: %v", competencyID, err)
	}
	return uc
}
