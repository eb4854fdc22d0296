// Package gaps selects the gap-analysis type for an exam run and computes
// the skills a user is still missing across their career path.
package gaps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/skilltrack/internal/exam"
	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
)

// Analysis is the gap-analysis type. It classifies what triggered the
// analysis, not how many competencies it covers.
type Analysis string

const (
	Broad  Analysis = "broad"
	Narrow Analysis = "narrow"
)

// Select returns Narrow for a failed post-course exam and Broad otherwise.
func Select(examType exam.Type, passed bool) Analysis {
	if examType == exam.PostCourse && !passed {
		return Narrow
	}
	return Broad
}

// Scope controls which competencies a narrow analysis covers.
type Scope int

const (
	// ScopeCareerPath covers every career-path competency for both types.
	ScopeCareerPath Scope = iota

	// ScopeUpdatedOnly restricts narrow analyses to the career-path
	// competencies updated in the run. Broad analyses are unaffected.
	ScopeUpdatedOnly
)

// MissingSkill is a required leaf skill the user has not verified.
type MissingSkill struct {
	SkillID   string `json:"skill_id"`
	SkillName string `json:"skill_name"`
}

// Result is the outcome of one gap analysis.
type Result struct {
	UserID     string                    `json:"user_id"`
	Analysis   Analysis                  `json:"analysis_type"`
	ExamType   exam.Type                 `json:"exam_type"`
	ExamStatus string                    `json:"exam_status"`
	Gaps       map[string][]MissingSkill `json:"gaps"`

	// Skipped is set when the user has no career path.
	Skipped bool `json:"-"`
	// Send reports whether the result should go to the learning-path service.
	Send bool `json:"-"`
}

// Graph is the read-only competency view the selector needs.
type Graph interface {
	Competency(id string) (skillgraph.Competency, error)
	RequiredMGS(competencyID string) ([]skillgraph.Skill, error)
}

// Config configures a Selector.
type Config struct {
	Graph        Graph
	Competencies store.UserCompetencyRepo
	CareerPaths  store.CareerPathRepo
	Logger       *slog.Logger
	Scope        Scope
}

// Selector runs gap analyses.
type Selector struct {
	graph   Graph
	ucRepo  store.UserCompetencyRepo
	careers store.CareerPathRepo
	logger  *slog.Logger
	scope   Scope
}

// NewSelector creates a Selector.
func NewSelector(cfg Config) *Selector {
	s := &Selector{
		graph:   cfg.Graph,
		ucRepo:  cfg.Competencies,
		careers: cfg.CareerPaths,
		logger:  cfg.Logger,
		scope:   cfg.Scope,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Analyze runs the gap analysis that follows an exam. updated holds the
// competencies written in the run and only matters for ScopeUpdatedOnly.
//
// Users without a career path are skipped. Baseline results are never
// marked for sending; post-course results are sent only when some
// competency has gaps.
func (s *Selector) Analyze(ctx context.Context, userID string, examType exam.Type, passed bool, updated []string) (*Result, error) {
	analysis := Select(examType, passed)
	res := &Result{
		UserID:     userID,
		Analysis:   analysis,
		ExamType:   examType,
		ExamStatus: examStatus(examType, passed),
		Gaps:       map[string][]MissingSkill{},
	}

	path, err := s.careerPath(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		res.Skipped = true
		s.logger.InfoContext(ctx, "no career path, gap analysis skipped", "user_id", userID)
		return res, nil
	}

	scope := path
	if analysis == Narrow && s.scope == ScopeUpdatedOnly {
		scope = intersect(path, updated)
	}

	res.Gaps, err = s.Missing(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	res.Send = examType == exam.PostCourse && len(res.Gaps) > 0
	s.logger.DebugContext(ctx, "gap analysis complete",
		"user_id", userID, "analysis", string(analysis),
		"competencies", len(scope), "with_gaps", len(res.Gaps), "send", res.Send)
	return res, nil
}

// CareerGaps returns the missing skills across the user's whole career
// path, keyed by competency name.
func (s *Selector) CareerGaps(ctx context.Context, userID string) (map[string][]MissingSkill, error) {
	path, err := s.careerPath(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Missing(ctx, userID, path)
}

// Missing computes, for each competency, the required MGS not verified in
// the user's row, keyed by competency name (id when the name is empty or
// already taken). Competencies without gaps are omitted. An unknown
// competency is logged and skipped.
func (s *Selector) Missing(ctx context.Context, userID string, competencyIDs []string) (map[string][]MissingSkill, error) {
	out := map[string][]MissingSkill{}
	if len(competencyIDs) == 0 {
		return out, nil
	}

	rows, err := s.ucRepo.FindByUserAndCompetencies(ctx, userID, competencyIDs)
	if err != nil {
		return nil, fmt.Errorf("load competencies for gaps: %w", err)
	}

	for _, id := range competencyIDs {
		comp, err := s.graph.Competency(id)
		if err != nil {
			s.logger.WarnContext(ctx, "gap competency lookup failed",
				"user_id", userID, "competency_id", id, "error", err)
			continue
		}
		required, err := s.graph.RequiredMGS(id)
		if err != nil {
			s.logger.WarnContext(ctx, "gap required skills lookup failed",
				"user_id", userID, "competency_id", id, "error", err)
			continue
		}

		row := rows[id]
		var missing []MissingSkill
		for _, sk := range required {
			if row != nil && row.IsVerified(sk.ID) {
				continue
			}
			missing = append(missing, MissingSkill{SkillID: sk.ID, SkillName: sk.Name})
		}
		if len(missing) == 0 {
			continue
		}

		key := comp.Name
		if _, taken := out[key]; key == "" || taken {
			key = comp.ID
		}
		out[key] = missing
	}
	return out, nil
}

func (s *Selector) careerPath(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.careers.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load career path: %w", err)
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.CompetencyID
	}
	return ids, nil
}

func examStatus(t exam.Type, passed bool) string {
	p := exam.Payload{Type: t, Passed: passed}
	return p.ExamStatus()
}

func intersect(path, updated []string) []string {
	in := make(map[string]bool, len(updated))
	for _, id := range updated {
		in[id] = true
	}
	var out []string
	for _, id := range path {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}
