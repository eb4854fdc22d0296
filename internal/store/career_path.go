package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// careerPathRepo implements CareerPathRepo.
type careerPathRepo struct {
	drv *entsql.Driver
}

func (r *careerPathRepo) FindByUser(ctx context.Context, userID string) ([]CareerPath, error) {
	query, args := builder().Select("user_id", "competency_id", "created_at").
		From(entsql.Table(tableUserCareerPaths)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("created_at", "competency_id").
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query career paths: %w", err)
	}
	defer rows.Close()

	var paths []CareerPath
	for rows.Next() {
		var (
			cp        CareerPath
			createdAt int64
		)
		if err := rows.Scan(&cp.UserID, &cp.CompetencyID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan career path: %w", err)
		}
		cp.CreatedAt = time.UnixMilli(createdAt).UTC()
		paths = append(paths, cp)
	}
	return paths, rows.Err()
}

// Add records the competency on the user's career path. Adding an existing
// entry is a no-op.
func (r *careerPathRepo) Add(ctx context.Context, userID, competencyID string) error {
	query, args := builder().Insert(tableUserCareerPaths).
		Columns("user_id", "competency_id", "created_at").
		Values(userID, competencyID, time.Now().UTC().UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("user_id", "competency_id"),
			entsql.DoNothing(),
		).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("add career path %s/%s: %w", userID, competencyID, err)
	}
	return nil
}

func (r *careerPathRepo) Remove(ctx context.Context, userID, competencyID string) error {
	query, args := builder().Delete(tableUserCareerPaths).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("competency_id", competencyID),
		)).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("remove career path %s/%s: %w", userID, competencyID, err)
	}
	return nil
}
