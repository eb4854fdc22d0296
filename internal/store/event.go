package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// sequenceCounter manages the monotonic sequence number for competency
// events. Uses raw SQL because the increment must be atomic at the database
// level. The mutex serializes within the process; the RETURNING clause
// makes the increment atomic across processes.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// eventRepo implements EventRepo.
type eventRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *eventRepo) AppendCompetencyEvent(ctx context.Context, data CompetencyEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(tableCompetencyEvents).
		Columns("sequence", "timestamp", "run_id", "user_id", "competency_id",
			"from_coverage", "to_coverage", "from_level", "to_level", "cause").
		Values(seqNum, time.Now().UTC().UnixMilli(), data.RunID, data.UserID, data.CompetencyID,
			data.FromCoverage, data.ToCoverage, data.FromLevel, data.ToLevel, data.Cause).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save competency event: %w", err)
	}
	return nil
}

func (r *eventRepo) CompetencyEvents(ctx context.Context, userID string, opts QueryOpts) ([]CompetencyEvent, error) {
	where := entsql.EQ("user_id", userID)
	if opts.After > 0 {
		where = entsql.And(where, entsql.GT("sequence", opts.After))
	}
	sel := builder().Select("sequence", "timestamp", "run_id", "user_id", "competency_id",
		"from_coverage", "to_coverage", "from_level", "to_level", "cause").
		From(entsql.Table(tableCompetencyEvents)).
		Where(where).
		OrderBy("sequence")
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query competency events: %w", err)
	}
	defer rows.Close()

	var events []CompetencyEvent
	for rows.Next() {
		var (
			e  CompetencyEvent
			ts int64
		)
		if err := rows.Scan(&e.Sequence, &ts, &e.RunID, &e.UserID, &e.CompetencyID,
			&e.FromCoverage, &e.ToCoverage, &e.FromLevel, &e.ToLevel, &e.Cause); err != nil {
			return nil, fmt.Errorf("scan competency event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
