package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/skilltrack/internal/skillgraph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := Open(dsn)
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func testDefinitions() *skillgraph.Definitions {
	return &skillgraph.Definitions{
		Skills: []skillgraph.Skill{
			{ID: "go", Name: "Go", Children: []string{"go-syntax", "go-concurrency"}},
			{ID: "go-syntax", Name: "Go Syntax"},
			{ID: "go-concurrency", Name: "Go Concurrency"},
			{ID: "sql", Name: "SQL"},
		},
		Competencies: []skillgraph.Competency{
			{ID: "c-backend", Name: "Backend", SubCompetencies: []string{"c-go"}, Skills: []string{"sql"}},
			{ID: "c-go", Name: "Go Programming", Skills: []string{"go"}},
		},
	}
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	require.NotNil(t, s.DB())

	var got string
	require.NoError(t, s.DB().QueryRow("PRAGMA foreign_keys").Scan(&got))
	assert.Equal(t, "1", got)
}

func TestDefinitionsSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.DefinitionRepo()

	require.NoError(t, repo.Save(ctx, testDefinitions()))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDefinitions(), loaded)

	g, err := LoadGraph(ctx, repo)
	require.NoError(t, err)
	req, err := g.RequiredMGS("c-backend")
	require.NoError(t, err)
	assert.Len(t, req, 3)
}

func TestDefinitionsSaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.DefinitionRepo()

	require.NoError(t, repo.Save(ctx, testDefinitions()))
	require.NoError(t, repo.Save(ctx, &skillgraph.Definitions{
		Skills: []skillgraph.Skill{{ID: "only", Name: "Only"}},
	}))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Skills, 1)
	assert.Equal(t, "only", loaded.Skills[0].ID)
	assert.Empty(t, loaded.Competencies)
}

func TestUserCompetencyCreateFindUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.UserCompetencyRepo()

	missing, err := repo.FindByUserAndCompetency(ctx, "u1", "c-go")
	require.NoError(t, err)
	assert.Nil(t, missing)

	uc := &UserCompetency{
		UserID:       "u1",
		CompetencyID: "c-go",
		VerifiedSkills: []VerifiedSkill{
			{SkillID: "go-syntax", SkillName: "Go Syntax", Verified: true},
		},
		CoveragePercentage: 50,
		ProficiencyLevel:   "INTERMEDIATE",
	}
	require.NoError(t, repo.Create(ctx, uc))
	assert.Equal(t, int64(1), uc.Version)

	got, err := repo.FindByUserAndCompetency(ctx, "u1", "c-go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 50.0, got.CoveragePercentage)
	assert.Equal(t, "INTERMEDIATE", got.ProficiencyLevel)
	assert.Equal(t, uc.VerifiedSkills, got.VerifiedSkills)
	assert.Equal(t, 1, got.VerifiedCount())
	assert.True(t, got.IsVerified("go-syntax"))

	got.CoveragePercentage = 100
	got.ProficiencyLevel = "EXPERT"
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	// The original handle is now stale.
	err = repo.Update(ctx, uc)
	assert.ErrorIs(t, err, ErrConflict)

	// Creating the same row twice conflicts.
	err = repo.Create(ctx, &UserCompetency{UserID: "u1", CompetencyID: "c-go"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserCompetencyBatchAndByUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.UserCompetencyRepo()

	for _, id := range []string{"c-a", "c-b", "c-c"} {
		require.NoError(t, repo.Create(ctx, &UserCompetency{UserID: "u1", CompetencyID: id}))
	}
	require.NoError(t, repo.Create(ctx, &UserCompetency{UserID: "u2", CompetencyID: "c-a"}))

	batch, err := repo.FindByUserAndCompetencies(ctx, "u1", []string{"c-a", "c-c", "c-missing"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.Contains(t, batch, "c-a")
	assert.Contains(t, batch, "c-c")

	empty, err := repo.FindByUserAndCompetencies(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	all, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c-a", all[0].CompetencyID)
	assert.Equal(t, ProficiencyUndefined, all[0].ProficiencyLevel)
	assert.Empty(t, all[0].VerifiedSkills)
}

func TestCareerPathAddListRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.CareerPathRepo()

	require.NoError(t, repo.Add(ctx, "u1", "c-backend"))
	require.NoError(t, repo.Add(ctx, "u1", "c-backend"))
	require.NoError(t, repo.Add(ctx, "u1", "c-go"))

	paths, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	require.NoError(t, repo.Remove(ctx, "u1", "c-backend"))
	paths, err = repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "c-go", paths[0].CompetencyID)
}

func TestCompetencyEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AppendCompetencyEvent(ctx, CompetencyEventData{
			RunID:        "run-1",
			UserID:       "u1",
			CompetencyID: "c-go",
			FromCoverage: float64(i * 10),
			ToCoverage:   float64((i + 1) * 10),
			FromLevel:    "BEGINNER",
			ToLevel:      "BEGINNER",
			Cause:        "exam",
		}))
	}

	events, err := repo.CompetencyEvents(ctx, "u1", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Less(t, events[0].Sequence, events[1].Sequence)

	after, err := repo.CompetencyEvents(ctx, "u1", QueryOpts{After: events[0].Sequence, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, events[1].Sequence, after[0].Sequence)
}

func TestReadModifyWrite_NoCreateSkipsMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.UserCompetencyRepo()

	called := false
	uc, written, err := ReadModifyWrite(ctx, repo, "u1", "c-go", MutateOpts{}, func(*UserCompetency) (bool, error) {
		called = true
		return true, nil
	})
	require.NoError(t, err)
	assert.Nil(t, uc)
	assert.False(t, written)
	assert.False(t, called)
}

func TestReadModifyWrite_CreatesAndUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.UserCompetencyRepo()

	add := func(skillID string) MutateFunc {
		return func(uc *UserCompetency) (bool, error) {
			if uc.IsVerified(skillID) {
				return false, nil
			}
			uc.VerifiedSkills = append(uc.VerifiedSkills, VerifiedSkill{SkillID: skillID, Verified: true})
			return true, nil
		}
	}

	uc, written, err := ReadModifyWrite(ctx, repo, "u1", "c-go", MutateOpts{Create: true}, add("s1"))
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, int64(1), uc.Version)

	uc, written, err = ReadModifyWrite(ctx, repo, "u1", "c-go", MutateOpts{}, add("s1"))
	require.NoError(t, err)
	assert.False(t, written, "unchanged row must not be rewritten")
	assert.Equal(t, int64(1), uc.Version)

	uc, written, err = ReadModifyWrite(ctx, repo, "u1", "c-go", MutateOpts{}, add("s2"))
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 2, uc.VerifiedCount())
}

func TestReadModifyWrite_RetriesOnConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.UserCompetencyRepo()
	require.NoError(t, repo.Create(ctx, &UserCompetency{UserID: "u1", CompetencyID: "c-go"}))

	stale, err := repo.FindByUserAndCompetency(ctx, "u1", "c-go")
	require.NoError(t, err)

	// Another writer adds s-other after our read.
	concurrent := stale.Clone()
	concurrent.VerifiedSkills = append(concurrent.VerifiedSkills, VerifiedSkill{SkillID: "s-other", Verified: true})
	require.NoError(t, repo.Update(ctx, concurrent))

	attempts := 0
	uc, written, err := ReadModifyWrite(ctx, repo, "u1", "c-go", MutateOpts{Current: stale}, func(uc *UserCompetency) (bool, error) {
		attempts++
		uc.VerifiedSkills = append(uc.VerifiedSkills, VerifiedSkill{SkillID: "s-mine", Verified: true})
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 2, attempts)
	assert.True(t, uc.IsVerified("s-other"), "concurrent addition must survive")
	assert.True(t, uc.IsVerified("s-mine"))
}

type failingRepo struct {
	UserCompetencyRepo
	err error
}

func (f *failingRepo) FindByUserAndCompetency(context.Context, string, string) (*UserCompetency, error) {
	return nil, f.err
}

func TestReadModifyWrite_LookupErrorIsPermanent(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := ReadModifyWrite(context.Background(), &failingRepo{err: boom}, "u1", "c", MutateOpts{}, func(*UserCompetency) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, boom)
}
