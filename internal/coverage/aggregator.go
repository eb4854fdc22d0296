package coverage

import (
	"context"
	"fmt"

	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
)

// Graph is the read-only competency view the aggregator needs.
type Graph interface {
	RequiredMGS(competencyID string) ([]skillgraph.Skill, error)
	SubCompetencies(competencyID string) ([]skillgraph.Competency, error)
	ParentCompetencies(competencyID string) ([]skillgraph.Competency, error)
	TopoIndex(competencyID string) int
}

// Aggregator computes coverage for competencies from persisted child state.
type Aggregator struct {
	graph Graph
	repo  store.UserCompetencyRepo
}

// NewAggregator creates an Aggregator.
func NewAggregator(graph Graph, repo store.UserCompetencyRepo) *Aggregator {
	return &Aggregator{graph: graph, repo: repo}
}

// ParentCoverage computes a competency's coverage for a user.
//
// A competency without sub-competencies is measured against its own
// required MGS using self's verified skills. Otherwise skill counts are
// summed across the direct sub-competencies, so a child with more required
// skills weighs more. A child the user does not own contributes its
// required count and zero verified.
//
// self may be nil when the user does not own the competency.
func (a *Aggregator) ParentCoverage(ctx context.Context, userID, competencyID string, self *store.UserCompetency) (float64, error) {
	subs, err := a.graph.SubCompetencies(competencyID)
	if err != nil {
		return 0, fmt.Errorf("sub-competencies of %s: %w", competencyID, err)
	}

	if len(subs) == 0 {
		required, err := a.graph.RequiredMGS(competencyID)
		if err != nil {
			return 0, fmt.Errorf("required MGS of %s: %w", competencyID, err)
		}
		if self == nil {
			return 0, nil
		}
		return Calculate(self.VerifiedSkills, required), nil
	}

	ids := make([]string, len(subs))
	for i, sub := range subs {
		ids[i] = sub.ID
	}
	rows, err := a.repo.FindByUserAndCompetencies(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("load sub-competency rows of %s: %w", competencyID, err)
	}

	totalRequired, totalVerified := 0, 0
	for _, sub := range subs {
		required, err := a.graph.RequiredMGS(sub.ID)
		if err != nil {
			return 0, fmt.Errorf("required MGS of %s: %w", sub.ID, err)
		}
		totalRequired += len(required)
		if row, ok := rows[sub.ID]; ok {
			totalVerified += countVerified(row.VerifiedSkills, required)
		}
	}
	return Percentage(totalVerified, totalRequired), nil
}

func countVerified(verified []store.VerifiedSkill, required []skillgraph.Skill) int {
	req := make(map[string]bool, len(required))
	for _, s := range required {
		req[s.ID] = true
	}
	n := 0
	for _, vs := range verified {
		if vs.Verified && req[vs.SkillID] {
			n++
		}
	}
	return n
}
