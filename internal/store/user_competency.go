package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var userCompetencyColumns = []string{
	"user_id",
	"competency_id",
	"coverage_percentage",
	"proficiency_level",
	"verified_skills",
	"version",
	"updated_at",
}

// userCompetencyRepo implements UserCompetencyRepo.
type userCompetencyRepo struct {
	drv *entsql.Driver
}

func (r *userCompetencyRepo) FindByUserAndCompetency(ctx context.Context, userID, competencyID string) (*UserCompetency, error) {
	rows, err := r.query(ctx, entsql.And(
		entsql.EQ("user_id", userID),
		entsql.EQ("competency_id", competencyID),
	))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *userCompetencyRepo) FindByUser(ctx context.Context, userID string) ([]*UserCompetency, error) {
	return r.query(ctx, entsql.EQ("user_id", userID))
}

func (r *userCompetencyRepo) FindByUserAndCompetencies(ctx context.Context, userID string, competencyIDs []string) (map[string]*UserCompetency, error) {
	result := make(map[string]*UserCompetency, len(competencyIDs))
	if len(competencyIDs) == 0 {
		return result, nil
	}
	ids := make([]any, len(competencyIDs))
	for i, id := range competencyIDs {
		ids[i] = id
	}
	rows, err := r.query(ctx, entsql.And(
		entsql.EQ("user_id", userID),
		entsql.In("competency_id", ids...),
	))
	if err != nil {
		return nil, err
	}
	for _, uc := range rows {
		result[uc.CompetencyID] = uc
	}
	return result, nil
}

func (r *userCompetencyRepo) query(ctx context.Context, where *entsql.Predicate) ([]*UserCompetency, error) {
	query, args := builder().Select(userCompetencyColumns...).
		From(entsql.Table(tableUserCompetencies)).
		Where(where).
		OrderBy("competency_id").
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query user competencies: %w", err)
	}
	defer rows.Close()

	var result []*UserCompetency
	for rows.Next() {
		var (
			uc        UserCompetency
			verified  string
			updatedAt int64
		)
		if err := rows.Scan(
			&uc.UserID,
			&uc.CompetencyID,
			&uc.CoveragePercentage,
			&uc.ProficiencyLevel,
			&verified,
			&uc.Version,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user competency: %w", err)
		}
		if err := json.Unmarshal([]byte(verified), &uc.VerifiedSkills); err != nil {
			return nil, fmt.Errorf("decode verified skills for %s/%s: %w", uc.UserID, uc.CompetencyID, err)
		}
		uc.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		result = append(result, &uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user competencies: %w", err)
	}
	return result, nil
}

func (r *userCompetencyRepo) Create(ctx context.Context, uc *UserCompetency) error {
	verified, err := encodeVerified(uc.VerifiedSkills)
	if err != nil {
		return err
	}
	level := uc.ProficiencyLevel
	if level == "" {
		level = ProficiencyUndefined
	}
	now := time.Now().UTC()

	query, args := builder().Insert(tableUserCompetencies).
		Columns(userCompetencyColumns...).
		Values(uc.UserID, uc.CompetencyID, uc.CoveragePercentage, level, verified, int64(1), now.UnixMilli()).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user competency %s/%s: %w", uc.UserID, uc.CompetencyID, ErrConflict)
		}
		return fmt.Errorf("create user competency %s/%s: %w", uc.UserID, uc.CompetencyID, err)
	}

	uc.ProficiencyLevel = level
	uc.Version = 1
	uc.UpdatedAt = now
	return nil
}

func (r *userCompetencyRepo) Update(ctx context.Context, uc *UserCompetency) error {
	verified, err := encodeVerified(uc.VerifiedSkills)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	next := uc.Version + 1

	query, args := builder().Update(tableUserCompetencies).
		Set("coverage_percentage", uc.CoveragePercentage).
		Set("proficiency_level", uc.ProficiencyLevel).
		Set("verified_skills", verified).
		Set("version", next).
		Set("updated_at", now.UnixMilli()).
		Where(entsql.And(
			entsql.EQ("user_id", uc.UserID),
			entsql.EQ("competency_id", uc.CompetencyID),
			entsql.EQ("version", uc.Version),
		)).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("update user competency %s/%s: %w", uc.UserID, uc.CompetencyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user competency %s/%s: rows affected: %w", uc.UserID, uc.CompetencyID, err)
	}
	if n == 0 {
		return fmt.Errorf("update user competency %s/%s at version %d: %w", uc.UserID, uc.CompetencyID, uc.Version, ErrConflict)
	}

	uc.Version = next
	uc.UpdatedAt = now
	return nil
}

func encodeVerified(skills []VerifiedSkill) (string, error) {
	if skills == nil {
		skills = []VerifiedSkill{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("encode verified skills: %w", err)
	}
	return string(b), nil
}

// isUniqueViolation reports whether err is a SQLite primary key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
