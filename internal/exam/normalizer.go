package exam

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
	"github.com/abhisek/skilltrack/internal/telemetry"
)

// SkillLookup is the read-only skill view the normalizer resolves against.
type SkillLookup interface {
	Skill(id string) (skillgraph.Skill, error)
	IsLeaf(id string) (bool, error)
	FindByName(name string) (skillgraph.Skill, bool)
}

// Normalized is one demonstrated leaf skill.
type Normalized struct {
	SkillID   string
	SkillName string

	// Score is informational and never persisted.
	Score *float64
}

// ToVerified returns the persisted form of n.
func (n Normalized) ToVerified() store.VerifiedSkill {
	return store.VerifiedSkill{SkillID: n.SkillID, SkillName: n.SkillName, Verified: true}
}

// SkipReason says why an entry was discarded.
type SkipReason string

const (
	SkipUnresolved SkipReason = "unresolved"
	SkipNotSuccess SkipReason = "not_success"
	SkipNotLeaf    SkipReason = "not_leaf"
	SkipLookup     SkipReason = "lookup_failed"
	SkipDuplicate  SkipReason = "duplicate"
)

// Skip records a discarded entry.
type Skip struct {
	Entry  Entry
	Reason SkipReason
}

// Normalizer converts payload entries into verified leaf skills.
type Normalizer struct {
	skills  SkillLookup
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewNormalizer creates a Normalizer. logger and metrics may be nil.
func NewNormalizer(skills SkillLookup, logger *slog.Logger, metrics *telemetry.Metrics) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	return &Normalizer{skills: skills, logger: logger, metrics: metrics}
}

// Normalize resolves each entry and keeps only successful leaf skills,
// at most once per skill id. Discarded entries are logged and returned
// as skips; they are never an error.
func (n *Normalizer) Normalize(ctx context.Context, entries []Entry) ([]Normalized, []Skip) {
	var (
		out   []Normalized
		skips []Skip
		seen  = make(map[string]bool, len(entries))
	)
	skip := func(e Entry, reason SkipReason, err error) {
		skips = append(skips, Skip{Entry: e, Reason: reason})
		n.metrics.EntriesSkipped.Add(ctx, 1)
		attrs := []any{"skill_id", e.SkillID, "skill_name", e.SkillName, "status", e.Status, "reason", string(reason)}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		n.logger.WarnContext(ctx, "exam entry skipped", attrs...)
	}

	for _, e := range entries {
		s, reason, err := n.resolve(e)
		if reason != "" {
			skip(e, reason, err)
			continue
		}
		if !IsSuccessStatus(e.Status) {
			skip(e, SkipNotSuccess, nil)
			continue
		}
		leaf, err := n.skills.IsLeaf(s.ID)
		if err != nil {
			skip(e, SkipLookup, err)
			continue
		}
		if !leaf {
			skip(e, SkipNotLeaf, nil)
			continue
		}
		if seen[s.ID] {
			skip(e, SkipDuplicate, nil)
			continue
		}
		seen[s.ID] = true

		name := s.Name
		if name == "" {
			name = e.SkillName
		}
		out = append(out, Normalized{SkillID: s.ID, SkillName: name, Score: e.Score})
		n.metrics.SkillsVerified.Add(ctx, 1)
	}
	return out, skips
}

// resolve finds the skill by id, falling back to the name.
func (n *Normalizer) resolve(e Entry) (skillgraph.Skill, SkipReason, error) {
	if e.SkillID != "" {
		s, err := n.skills.Skill(e.SkillID)
		switch {
		case err == nil:
			return s, "", nil
		case errors.Is(err, skillgraph.ErrNotFound):
			return skillgraph.Skill{}, SkipUnresolved, err
		default:
			return skillgraph.Skill{}, SkipLookup, err
		}
	}
	if strings.TrimSpace(e.SkillName) == "" {
		return skillgraph.Skill{}, SkipUnresolved, nil
	}
	s, ok := n.skills.FindByName(e.SkillName)
	if !ok {
		return skillgraph.Skill{}, SkipUnresolved, nil
	}
	return s, "", nil
}
