package coverage

import (
	"context"
	"log/slog"
	"sort"

	"github.com/abhisek/skilltrack/internal/store"
	"github.com/abhisek/skilltrack/internal/telemetry"
)

// PropagatorConfig configures a Propagator.
type PropagatorConfig struct {
	Graph   Graph
	Repo    store.UserCompetencyRepo
	Events  store.EventRepo // optional
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// MaxAttempts bounds optimistic-concurrency retries per ancestor.
	MaxAttempts int
}

// Propagator recomputes ancestor competencies after their descendants
// changed.
type Propagator struct {
	graph       Graph
	repo        store.UserCompetencyRepo
	agg         *Aggregator
	events      store.EventRepo
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	maxAttempts int
}

// NewPropagator creates a Propagator.
func NewPropagator(cfg PropagatorConfig) *Propagator {
	p := &Propagator{
		graph:       cfg.Graph,
		repo:        cfg.Repo,
		agg:         NewAggregator(cfg.Graph, cfg.Repo),
		events:      cfg.Events,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		maxAttempts: cfg.MaxAttempts,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.metrics == nil {
		p.metrics = telemetry.Noop()
	}
	return p
}

// Propagate recomputes every ancestor of the touched competencies that the
// user already owns and returns the ids of the rows it rewrote.
//
// visited is scoped to one run: an ancestor already in it is skipped, and
// each ancestor is marked before recomputation so it is processed at most
// once no matter how many touched children share it. Ancestors are
// recomputed children-first.
//
// Failures are logged and never abort propagation to other ancestors.
func (p *Propagator) Propagate(ctx context.Context, runID, userID string, touched []string, visited map[string]bool) []string {
	var pending []string
	for _, id := range touched {
		chain, err := p.graph.ParentCompetencies(id)
		if err != nil {
			p.logger.WarnContext(ctx, "resolve ancestors failed",
				"user_id", userID, "competency_id", id, "error", err)
			continue
		}
		for _, ancestor := range chain {
			if visited[ancestor.ID] {
				continue
			}
			visited[ancestor.ID] = true
			pending = append(pending, ancestor.ID)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return p.graph.TopoIndex(pending[i]) < p.graph.TopoIndex(pending[j])
	})

	owned, err := p.repo.FindByUserAndCompetencies(ctx, userID, pending)
	if err != nil {
		p.logger.ErrorContext(ctx, "load ancestor rows failed",
			"user_id", userID, "ancestors", pending, "error", err)
		return nil
	}

	var updated []string
	for _, id := range pending {
		row, ok := owned[id]
		if !ok {
			p.logger.DebugContext(ctx, "ancestor not owned, skipping",
				"user_id", userID, "competency_id", id)
			continue
		}
		if p.recompute(ctx, runID, userID, id, row) {
			updated = append(updated, id)
		}
	}
	return updated
}

func (p *Propagator) recompute(ctx context.Context, runID, userID, competencyID string, row *store.UserCompetency) bool {
	var (
		fromCoverage = row.CoveragePercentage
		fromLevel    = row.ProficiencyLevel
	)
	uc, written, err := store.ReadModifyWrite(ctx, p.repo, userID, competencyID,
		store.MutateOpts{Current: row, MaxAttempts: p.maxAttempts},
		func(uc *store.UserCompetency) (bool, error) {
			cov, err := p.agg.ParentCoverage(ctx, userID, competencyID, uc)
			if err != nil {
				return false, err
			}
			level := string(MapToProficiency(cov))
			fromCoverage, fromLevel = uc.CoveragePercentage, uc.ProficiencyLevel
			if uc.CoveragePercentage == cov && uc.ProficiencyLevel == level {
				return false, nil
			}
			uc.CoveragePercentage = cov
			uc.ProficiencyLevel = level
			return true, nil
		})
	if err != nil {
		p.metrics.WriteFailures.Add(ctx, 1)
		p.logger.ErrorContext(ctx, "propagate coverage failed",
			"user_id", userID, "competency_id", competencyID, "error", err)
		return false
	}
	if !written {
		return false
	}

	p.metrics.AncestorsUpdated.Add(ctx, 1)
	p.logger.DebugContext(ctx, "ancestor coverage updated",
		"user_id", userID, "competency_id", competencyID,
		"coverage", uc.CoveragePercentage, "level", uc.ProficiencyLevel)
	AppendEvent(ctx, p.events, p.logger, store.CompetencyEventData{
		RunID:        runID,
		UserID:       userID,
		CompetencyID: competencyID,
		FromCoverage: fromCoverage,
		ToCoverage:   uc.CoveragePercentage,
		FromLevel:    fromLevel,
		ToLevel:      uc.ProficiencyLevel,
		Cause:        CausePropagation,
	})
	return true
}
