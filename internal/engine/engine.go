// Package engine runs the exam-processing pipeline: normalize the payload,
// update the competencies that require each verified skill, propagate to
// owned ancestors, run gap analysis and hand the results to the outbox.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/skilltrack/internal/coverage"
	"github.com/abhisek/skilltrack/internal/exam"
	"github.com/abhisek/skilltrack/internal/gaps"
	"github.com/abhisek/skilltrack/internal/outbox"
	"github.com/abhisek/skilltrack/internal/profile"
	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
	"github.com/abhisek/skilltrack/internal/telemetry"
)

// Graph is the read-only skill and competency view the pipeline runs on.
// *skillgraph.Graph implements it.
type Graph interface {
	exam.SkillLookup
	coverage.Graph
	gaps.Graph
	profile.Graph
	CompetenciesBySkill(skillID string) ([]skillgraph.Competency, error)
	OwnersBySkill(skillID string) ([]skillgraph.Competency, error)
}

// Options configures an Engine.
type Options struct {
	Graph        Graph
	Competencies store.UserCompetencyRepo
	CareerPaths  store.CareerPathRepo
	Events       store.EventRepo // optional

	// Outbox receives the profile and gap results. Nil discards them.
	Outbox *outbox.Outbox

	// GapScope selects the narrow-analysis scope.
	GapScope gaps.Scope

	// MaxAttempts bounds optimistic-concurrency retries per row.
	MaxAttempts int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Engine processes exam results.
type Engine struct {
	graph       Graph
	repo        store.UserCompetencyRepo
	events      store.EventRepo
	normalizer  *exam.Normalizer
	agg         *coverage.Aggregator
	propagator  *coverage.Propagator
	selector    *gaps.Selector
	profiles    *profile.Builder
	outbox      *outbox.Outbox
	maxAttempts int
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	ob := opts.Outbox
	if ob == nil {
		ob = outbox.New(outbox.Config{Logger: logger, Metrics: metrics})
	}

	return &Engine{
		graph:      opts.Graph,
		repo:       opts.Competencies,
		events:     opts.Events,
		normalizer: exam.NewNormalizer(opts.Graph, logger, metrics),
		agg:        coverage.NewAggregator(opts.Graph, opts.Competencies),
		propagator: coverage.NewPropagator(coverage.PropagatorConfig{
			Graph:       opts.Graph,
			Repo:        opts.Competencies,
			Events:      opts.Events,
			Logger:      logger,
			Metrics:     metrics,
			MaxAttempts: opts.MaxAttempts,
		}),
		selector: gaps.NewSelector(gaps.Config{
			Graph:        opts.Graph,
			Competencies: opts.Competencies,
			CareerPaths:  opts.CareerPaths,
			Logger:       logger,
			Scope:        opts.GapScope,
		}),
		profiles:    profile.NewBuilder(opts.Graph, opts.Competencies, logger),
		outbox:      ob,
		maxAttempts: opts.MaxAttempts,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run is the detailed outcome of one exam-processing run.
type Run struct {
	ID       string
	UserID   string
	ExamType exam.Type

	Verified []exam.Normalized
	Skipped  []exam.Skip

	// Updated holds the competencies written by direct skill processing,
	// Propagated those rewritten by ancestor propagation.
	Updated    []string
	Propagated []string

	Gaps    *gaps.Result      // nil when gap analysis failed
	Profile *profile.Snapshot // nil when nothing changed
	Sync    outbox.SyncResult
}

// Run processes one decoded exam payload. Per-skill, per-competency and
// sync failures are logged and absorbed; the returned error is reserved
// for payloads that cannot be processed at all.
func (e *Engine) Run(ctx context.Context, p *exam.Payload) (*Run, error) {
	if p == nil || p.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", exam.ErrInvalidPayload)
	}
	if p.Type != exam.Baseline && p.Type != exam.PostCourse {
		return nil, fmt.Errorf("%w: unknown exam type %q", exam.ErrInvalidPayload, p.Type)
	}

	start := time.Now()
	run := &Run{ID: uuid.NewString(), UserID: p.UserID, ExamType: p.Type}
	logger := e.logger.With("run_id", run.ID, "user_id", p.UserID, "exam_type", string(p.Type))

	run.Verified, run.Skipped = e.normalizer.Normalize(ctx, p.Entries)

	// Groups are written children-first, so every ancestor among them is
	// already current and propagation can skip it.
	visited := map[string]bool{}
	for _, g := range e.group(ctx, logger, run.Verified) {
		visited[g.competencyID] = true
		if e.apply(ctx, logger, run.ID, p, g) {
			run.Updated = append(run.Updated, g.competencyID)
		}
	}

	run.Propagated = e.propagator.Propagate(ctx, run.ID, p.UserID, run.Updated, visited)

	var msg outbox.Message
	res, err := e.selector.Analyze(ctx, p.UserID, p.Type, p.Passed, run.Updated)
	if err != nil {
		logger.ErrorContext(ctx, "gap analysis failed", "error", err)
	} else {
		run.Gaps = res
		if res.Send {
			msg.Gaps = res
		}
	}

	if len(run.Updated)+len(run.Propagated) > 0 {
		snap, err := e.profiles.Build(ctx, p.UserID)
		if err != nil {
			logger.ErrorContext(ctx, "build profile snapshot failed", "error", err)
		} else {
			run.Profile = snap
			msg.Profile = snap
		}
	}

	run.Sync = e.outbox.Dispatch(ctx, msg)

	e.metrics.RunDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	logger.InfoContext(ctx, "exam processed",
		"verified", len(run.Verified), "skipped", len(run.Skipped),
		"updated", len(run.Updated), "propagated", len(run.Propagated),
		"duration", time.Since(start))
	return run, nil
}

// Result is what callers of ProcessExam see: empty on success, a message
// on failure. Per-skill outcomes only appear in logs and in Run.
type Result struct {
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`

	// Run is the completed run, nil on failure.
	Run *Run `json:"-"`
}

// OK reports whether processing completed.
func (r Result) OK() bool { return r.Err == nil }

// ProcessExam runs the pipeline and reduces the outcome to a Result.
// A panic inside the pipeline is recovered into an error result; writes
// already committed stay in place.
func (e *Engine) ProcessExam(ctx context.Context, p *exam.Payload) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("exam processing panicked: %v", r)
			e.logger.ErrorContext(ctx, "exam processing aborted", "error", err)
			res = Result{Message: err.Error(), Err: err}
		}
	}()

	run, err := e.Run(ctx, p)
	if err != nil {
		e.logger.ErrorContext(ctx, "exam processing failed", "error", err)
		return Result{Message: err.Error(), Err: err}
	}
	return Result{Run: run}
}

// ProcessRaw decodes data and runs ProcessExam. defaultType applies when
// the payload does not name its exam type.
func (e *Engine) ProcessRaw(ctx context.Context, data []byte, defaultType exam.Type) Result {
	p, err := exam.Decode(data, defaultType)
	if err != nil {
		e.logger.WarnContext(ctx, "exam payload rejected", "error", err)
		return Result{Message: err.Error(), Err: err}
	}
	return e.ProcessExam(ctx, p)
}

// competencyUpdate is the set of verified skills to merge into one
// competency. direct is set when one of the skills is linked to the
// competency itself rather than reached through a sub-competency.
type competencyUpdate struct {
	competencyID string
	direct       bool
	skills       []exam.Normalized
}

// group maps each verified skill to the competencies that require it.
// A pair is dropped when the skill is missing from the competency's
// required MGS. Groups are ordered children-first so a parent's
// aggregate always reads the rows written before it in the same run.
func (e *Engine) group(ctx context.Context, logger *slog.Logger, verified []exam.Normalized) []competencyUpdate {
	byComp := map[string]*competencyUpdate{}
	var order []string

	for _, n := range verified {
		comps, err := e.graph.CompetenciesBySkill(n.SkillID)
		if err != nil {
			logger.WarnContext(ctx, "resolve competencies failed", "skill_id", n.SkillID, "error", err)
			continue
		}
		owners, err := e.graph.OwnersBySkill(n.SkillID)
		if err != nil {
			logger.WarnContext(ctx, "resolve owning competencies failed", "skill_id", n.SkillID, "error", err)
			continue
		}
		for _, c := range comps {
			required, err := e.graph.RequiredMGS(c.ID)
			if err != nil {
				logger.WarnContext(ctx, "resolve required skills failed",
					"skill_id", n.SkillID, "competency_id", c.ID, "error", err)
				continue
			}
			if !requires(required, n.SkillID) {
				logger.WarnContext(ctx, "skill not in competency's required MGS, skipping",
					"skill_id", n.SkillID, "competency_id", c.ID)
				continue
			}
			g, ok := byComp[c.ID]
			if !ok {
				g = &competencyUpdate{competencyID: c.ID}
				byComp[c.ID] = g
				order = append(order, c.ID)
			}
			if slices.ContainsFunc(owners, func(o skillgraph.Competency) bool { return o.ID == c.ID }) {
				g.direct = true
			}
			g.skills = append(g.skills, n)
		}
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return e.graph.TopoIndex(a) - e.graph.TopoIndex(b)
	})
	out := make([]competencyUpdate, len(order))
	for i, id := range order {
		out[i] = *byComp[id]
	}
	return out
}

// apply merges the group's skills into the user's row and recomputes its
// coverage in memory. Only post-course exams create rows, and only for
// competencies that own one of the skills directly; ancestors are merged
// into when the user already owns them.
func (e *Engine) apply(ctx context.Context, logger *slog.Logger, runID string, p *exam.Payload, g competencyUpdate) bool {
	var (
		fromCoverage float64
		fromLevel    = store.ProficiencyUndefined
	)

	uc, written, err := store.ReadModifyWrite(ctx, e.repo, p.UserID, g.competencyID,
		store.MutateOpts{Create: p.Type == exam.PostCourse && g.direct, MaxAttempts: e.maxAttempts},
		func(uc *store.UserCompetency) (bool, error) {
			fromCoverage, fromLevel = uc.CoveragePercentage, uc.ProficiencyLevel
			added := mergeVerified(uc, g.skills)

			cov, err := e.agg.ParentCoverage(ctx, p.UserID, g.competencyID, uc)
			if err != nil {
				return false, err
			}
			level := string(coverage.MapToProficiency(cov))
			if !added && uc.CoveragePercentage == cov && uc.ProficiencyLevel == level {
				return false, nil
			}
			uc.CoveragePercentage = cov
			uc.ProficiencyLevel = level
			return true, nil
		})
	if err != nil {
		e.metrics.WriteFailures.Add(ctx, 1)
		logger.ErrorContext(ctx, "update competency failed", "competency_id", g.competencyID, "error", err)
		return false
	}
	if uc == nil {
		logger.DebugContext(ctx, "competency not owned, skipping", "competency_id", g.competencyID)
		return false
	}
	if !written {
		return false
	}

	e.metrics.CompetenciesUpdated.Add(ctx, 1)
	logger.DebugContext(ctx, "competency updated",
		"competency_id", g.competencyID, "coverage", uc.CoveragePercentage, "level", uc.ProficiencyLevel)
	coverage.AppendEvent(ctx, e.events, logger, store.CompetencyEventData{
		RunID:        runID,
		UserID:       p.UserID,
		CompetencyID: g.competencyID,
		FromCoverage: fromCoverage,
		ToCoverage:   uc.CoveragePercentage,
		FromLevel:    fromLevel,
		ToLevel:      uc.ProficiencyLevel,
		Cause:        coverage.CauseExam,
	})
	return true
}

// mergeVerified adds skills to uc's verified set, keeping one entry per
// skill id. Existing entries are never removed. It reports whether
// anything changed.
func mergeVerified(uc *store.UserCompetency, skills []exam.Normalized) bool {
	changed := false
	for _, n := range skills {
		i := slices.IndexFunc(uc.VerifiedSkills, func(vs store.VerifiedSkill) bool {
			return vs.SkillID == n.SkillID
		})
		if i < 0 {
			uc.VerifiedSkills = append(uc.VerifiedSkills, n.ToVerified())
			changed = true
			continue
		}
		if !uc.VerifiedSkills[i].Verified {
			uc.VerifiedSkills[i].Verified = true
			changed = true
		}
	}
	return changed
}

func requires(required []skillgraph.Skill, skillID string) bool {
	return slices.ContainsFunc(required, func(s skillgraph.Skill) bool { return s.ID == skillID })
}
