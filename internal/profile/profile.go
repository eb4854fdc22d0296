// Package profile builds the pruned competency-tree snapshot of a user
// that is synced to the external directory service.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
)

// Node is one owned competency in the snapshot.
type Node struct {
	CompetencyID   string  `json:"competencyId"`
	CompetencyName string  `json:"competencyName"`
	Level          string  `json:"level"`
	Coverage       float64 `json:"coverage"`
	Children       []*Node `json:"children,omitempty"`
}

// Snapshot is the profile sent downstream.
type Snapshot struct {
	UserID         string  `json:"userId"`
	RelevanceScore float64 `json:"relevanceScore"`
	Competencies   []*Node `json:"competencies"`
}

// Graph is the read-only competency view the builder needs.
type Graph interface {
	Competency(id string) (skillgraph.Competency, error)
	ParentCompetencies(id string) ([]skillgraph.Competency, error)
}

// Builder assembles snapshots from persisted rows.
type Builder struct {
	graph  Graph
	repo   store.UserCompetencyRepo
	logger *slog.Logger
}

// NewBuilder creates a Builder. logger may be nil.
func NewBuilder(graph Graph, repo store.UserCompetencyRepo, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{graph: graph, repo: repo, logger: logger}
}

// Build returns the user's snapshot. Each owned competency appears once,
// under its nearest owned ancestor, or as a root when it has none. Nodes
// with zero coverage and no kept children are dropped. Siblings are
// ordered by competency id.
func (b *Builder) Build(ctx context.Context, userID string) (*Snapshot, error) {
	rows, err := b.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user competencies: %w", err)
	}

	nodes := make(map[string]*Node, len(rows))
	for _, row := range rows {
		comp, err := b.graph.Competency(row.CompetencyID)
		if err != nil {
			b.logger.WarnContext(ctx, "profile competency lookup failed",
				"user_id", userID, "competency_id", row.CompetencyID, "error", err)
			continue
		}
		nodes[comp.ID] = &Node{
			CompetencyID:   comp.ID,
			CompetencyName: comp.Name,
			Level:          row.ProficiencyLevel,
			Coverage:       row.CoveragePercentage,
		}
	}

	var roots []*Node
	for _, id := range sortedKeys(nodes) {
		parent := b.nearestOwned(ctx, userID, id, nodes)
		if parent == nil {
			roots = append(roots, nodes[id])
			continue
		}
		parent.Children = append(parent.Children, nodes[id])
	}

	competencies := prune(roots)
	if competencies == nil {
		competencies = []*Node{}
	}
	return &Snapshot{
		UserID:         userID,
		RelevanceScore: 0,
		Competencies:   competencies,
	}, nil
}

// nearestOwned returns the closest ancestor of id present in nodes.
func (b *Builder) nearestOwned(ctx context.Context, userID, id string, nodes map[string]*Node) *Node {
	chain, err := b.graph.ParentCompetencies(id)
	if err != nil {
		b.logger.WarnContext(ctx, "profile ancestor lookup failed",
			"user_id", userID, "competency_id", id, "error", err)
		return nil
	}
	for _, a := range chain {
		if n, ok := nodes[a.ID]; ok {
			return n
		}
	}
	return nil
}

// prune drops empty branches and sorts what remains.
func prune(nodes []*Node) []*Node {
	var kept []*Node
	for _, n := range nodes {
		n.Children = prune(n.Children)
		if n.Coverage == 0 && len(n.Children) == 0 {
			continue
		}
		kept = append(kept, n)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].CompetencyID < kept[j].CompetencyID })
	return kept
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
