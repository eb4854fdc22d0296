package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MutateFunc applies a change to uc in place and reports whether anything
// changed. Returning false skips the write.
type MutateFunc func(uc *UserCompetency) (bool, error)

// MutateOpts configures ReadModifyWrite.
type MutateOpts struct {
	// Create allows inserting a new row when the user does not own the
	// competency yet. When false a missing row yields (nil, false, nil).
	Create bool

	// Current is an already-fetched row to use for the first attempt.
	// Later attempts always re-read.
	Current *UserCompetency

	// MaxAttempts bounds the number of conflict retries. Zero means 3.
	MaxAttempts int
}

// ReadModifyWrite reads the (user, competency) row, applies fn and writes
// the result under optimistic concurrency, re-reading and re-applying fn on
// ErrConflict. It returns the row as written and whether a write happened.
func ReadModifyWrite(ctx context.Context, repo UserCompetencyRepo, userID, competencyID string, opts MutateOpts, fn MutateFunc) (*UserCompetency, bool, error) {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var (
		result  *UserCompetency
		written bool
		current = opts.Current
	)

	op := func() error {
		uc := current
		current = nil
		if uc == nil {
			found, err := repo.FindByUserAndCompetency(ctx, userID, competencyID)
			if err != nil {
				return backoff.Permanent(err)
			}
			uc = found
		} else {
			uc = uc.Clone()
		}

		creating := uc == nil
		if creating {
			if !opts.Create {
				result, written = nil, false
				return nil
			}
			uc = &UserCompetency{
				UserID:           userID,
				CompetencyID:     competencyID,
				ProficiencyLevel: ProficiencyUndefined,
			}
		}

		changed, err := fn(uc)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !changed && !creating {
			result, written = uc, false
			return nil
		}

		if creating {
			err = repo.Create(ctx, uc)
		} else {
			err = repo.Update(ctx, uc)
		}
		if err != nil {
			if errors.Is(err, ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result, written = uc, true
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxInterval = 250 * time.Millisecond
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, false, fmt.Errorf("read-modify-write %s/%s: %w", userID, competencyID, err)
	}
	return result, written, nil
}
