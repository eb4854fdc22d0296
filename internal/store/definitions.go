package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/skilltrack/internal/skillgraph"
)

// definitionRepo implements DefinitionRepo.
type definitionRepo struct {
	drv *entsql.Driver
}

func (r *definitionRepo) Save(ctx context.Context, defs *skillgraph.Definitions) (err error) {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{tableSkills, tableSkillEdges, tableCompetencies, tableCompetencyLinks, tableCompetencySkills} {
		query, args := builder().Delete(table).Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, s := range defs.Skills {
		if err := insert(ctx, tx, tableSkills, []string{"id", "name", "position"}, s.ID, s.Name, i); err != nil {
			return fmt.Errorf("insert skill %q: %w", s.ID, err)
		}
		for j, child := range s.Children {
			if err := insert(ctx, tx, tableSkillEdges, []string{"parent_id", "child_id", "position"}, s.ID, child, j); err != nil {
				return fmt.Errorf("insert skill edge %q->%q: %w", s.ID, child, err)
			}
		}
	}

	for i, c := range defs.Competencies {
		if err := insert(ctx, tx, tableCompetencies, []string{"id", "name", "position"}, c.ID, c.Name, i); err != nil {
			return fmt.Errorf("insert competency %q: %w", c.ID, err)
		}
		for j, sub := range c.SubCompetencies {
			if err := insert(ctx, tx, tableCompetencyLinks, []string{"parent_id", "child_id", "position"}, c.ID, sub, j); err != nil {
				return fmt.Errorf("insert competency link %q->%q: %w", c.ID, sub, err)
			}
		}
		for j, skillID := range c.Skills {
			if err := insert(ctx, tx, tableCompetencySkills, []string{"competency_id", "skill_id", "position"}, c.ID, skillID, j); err != nil {
				return fmt.Errorf("insert competency skill %q->%q: %w", c.ID, skillID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insert(ctx context.Context, ex dialect.ExecQuerier, table string, columns []string, values ...any) error {
	query, args := builder().Insert(table).Columns(columns...).Values(values...).Query()
	return ex.Exec(ctx, query, args, nil)
}

func (r *definitionRepo) Load(ctx context.Context) (*skillgraph.Definitions, error) {
	defs := &skillgraph.Definitions{}

	skillIdx := make(map[string]int)
	err := r.scan(ctx, tableSkills, []string{"id", "name"}, func(vals []string) {
		skillIdx[vals[0]] = len(defs.Skills)
		defs.Skills = append(defs.Skills, skillgraph.Skill{ID: vals[0], Name: vals[1]})
	})
	if err != nil {
		return nil, err
	}
	err = r.scan(ctx, tableSkillEdges, []string{"parent_id", "child_id"}, func(vals []string) {
		if i, ok := skillIdx[vals[0]]; ok {
			defs.Skills[i].Children = append(defs.Skills[i].Children, vals[1])
		}
	})
	if err != nil {
		return nil, err
	}

	compIdx := make(map[string]int)
	err = r.scan(ctx, tableCompetencies, []string{"id", "name"}, func(vals []string) {
		compIdx[vals[0]] = len(defs.Competencies)
		defs.Competencies = append(defs.Competencies, skillgraph.Competency{ID: vals[0], Name: vals[1]})
	})
	if err != nil {
		return nil, err
	}
	err = r.scan(ctx, tableCompetencyLinks, []string{"parent_id", "child_id"}, func(vals []string) {
		if i, ok := compIdx[vals[0]]; ok {
			defs.Competencies[i].SubCompetencies = append(defs.Competencies[i].SubCompetencies, vals[1])
		}
	})
	if err != nil {
		return nil, err
	}
	err = r.scan(ctx, tableCompetencySkills, []string{"competency_id", "skill_id"}, func(vals []string) {
		if i, ok := compIdx[vals[0]]; ok {
			defs.Competencies[i].Skills = append(defs.Competencies[i].Skills, vals[1])
		}
	})
	if err != nil {
		return nil, err
	}

	return defs, nil
}

// scan selects two string columns from table ordered by position.
func (r *definitionRepo) scan(ctx context.Context, table string, columns []string, fn func(vals []string)) error {
	query, args := builder().Select(columns...).
		From(entsql.Table(table)).
		OrderBy("position").
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		vals := make([]string, len(columns))
		dest := make([]any, len(columns))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		fn(vals)
	}
	return rows.Err()
}

// LoadGraph reads the stored definitions and builds the read-only graph.
func LoadGraph(ctx context.Context, repo DefinitionRepo) (*skillgraph.Graph, error) {
	defs, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	g, err := defs.Build()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return g, nil
}
