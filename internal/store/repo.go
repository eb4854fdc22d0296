package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/skilltrack/internal/skillgraph"
)

// ErrConflict is returned when a row was modified or created by someone
// else between read and write.
var ErrConflict = errors.New("concurrent modification")

// ProficiencyUndefined is the level of a row that has never been evaluated.
const ProficiencyUndefined = "undefined"

// VerifiedSkill is one entry of a user's verified-skill set for a competency.
type VerifiedSkill struct {
	SkillID   string `json:"skill_id"`
	SkillName string `json:"skill_name"`
	Verified  bool   `json:"verified"`
}

// UserCompetency is the persisted coverage state of one competency for one user.
type UserCompetency struct {
	UserID             string
	CompetencyID       string
	CoveragePercentage float64
	ProficiencyLevel   string
	VerifiedSkills     []VerifiedSkill

	// Version is the optimistic-concurrency token. It is zero for rows that
	// have not been persisted yet.
	Version   int64
	UpdatedAt time.Time
}

// VerifiedCount returns the number of entries with Verified set.
func (uc *UserCompetency) VerifiedCount() int {
	n := 0
	for _, vs := range uc.VerifiedSkills {
		if vs.Verified {
			n++
		}
	}
	return n
}

// IsVerified reports whether the skill is present and verified.
func (uc *UserCompetency) IsVerified(skillID string) bool {
	for _, vs := range uc.VerifiedSkills {
		if vs.SkillID == skillID {
			return vs.Verified
		}
	}
	return false
}

// Clone returns a deep copy.
func (uc *UserCompetency) Clone() *UserCompetency {
	c := *uc
	c.VerifiedSkills = append([]VerifiedSkill(nil), uc.VerifiedSkills...)
	return &c
}

// CareerPath marks a competency a user has chosen to pursue.
type CareerPath struct {
	UserID       string
	CompetencyID string
	CreatedAt    time.Time
}

// CompetencyEventData records a coverage change for audit.
type CompetencyEventData struct {
	RunID        string
	UserID       string
	CompetencyID string
	FromCoverage float64
	ToCoverage   float64
	FromLevel    string
	ToLevel      string
	Cause        string // "exam" or "propagation"
}

// CompetencyEvent is a persisted CompetencyEventData.
type CompetencyEvent struct {
	CompetencyEventData
	Sequence  int64
	Timestamp time.Time
}

// DefinitionRepo persists skill and competency definitions.
type DefinitionRepo interface {
	// Save replaces all stored definitions with defs.
	Save(ctx context.Context, defs *skillgraph.Definitions) error

	// Load returns the stored definitions.
	Load(ctx context.Context) (*skillgraph.Definitions, error)
}

// UserCompetencyRepo manages per-user competency coverage rows.
type UserCompetencyRepo interface {
	// FindByUserAndCompetency returns the row, or nil if the user does not
	// own the competency.
	FindByUserAndCompetency(ctx context.Context, userID, competencyID string) (*UserCompetency, error)

	// FindByUser returns all rows for a user ordered by competency id.
	FindByUser(ctx context.Context, userID string) ([]*UserCompetency, error)

	// FindByUserAndCompetencies returns the existing rows among competencyIDs,
	// keyed by competency id, in a single query.
	FindByUserAndCompetencies(ctx context.Context, userID string, competencyIDs []string) (map[string]*UserCompetency, error)

	// Create inserts a new row and sets its Version. Returns ErrConflict if
	// the row already exists.
	Create(ctx context.Context, uc *UserCompetency) error

	// Update writes uc if the stored version still equals uc.Version, then
	// advances uc.Version. Returns ErrConflict otherwise.
	Update(ctx context.Context, uc *UserCompetency) error
}

// CareerPathRepo manages the competencies users have chosen to pursue.
type CareerPathRepo interface {
	FindByUser(ctx context.Context, userID string) ([]CareerPath, error)
	Add(ctx context.Context, userID, competencyID string) error
	Remove(ctx context.Context, userID, competencyID string) error
}

// EventRepo provides append and query access to competency events.
type EventRepo interface {
	AppendCompetencyEvent(ctx context.Context, data CompetencyEventData) error
	CompetencyEvents(ctx context.Context, userID string, opts QueryOpts) ([]CompetencyEvent, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit int   // max results (0 = unlimited)
	After int64 // sequence > After
}
