// Package outbox delivers best-effort side effects of an exam run: the
// profile sync to the directory service and the gap analysis to the
// learning-path service.
//
// Delivery failures are reported in a SyncResult and never become the
// run's error.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/skilltrack/internal/gaps"
	"github.com/abhisek/skilltrack/internal/profile"
	"github.com/abhisek/skilltrack/internal/telemetry"
)

// ProfileSender delivers profile snapshots.
type ProfileSender interface {
	SendProfile(ctx context.Context, snap *profile.Snapshot) error
}

// GapSender delivers gap-analysis results.
type GapSender interface {
	SendGaps(ctx context.Context, res *gaps.Result) error
}

// Nop discards everything it is given.
type Nop struct{}

func (Nop) SendProfile(context.Context, *profile.Snapshot) error { return nil }
func (Nop) SendGaps(context.Context, *gaps.Result) error         { return nil }

// Message is what one run wants delivered. Nil fields are not sent.
type Message struct {
	Profile *profile.Snapshot
	Gaps    *gaps.Result
}

// SyncResult reports what was delivered.
type SyncResult struct {
	ProfileSent bool
	GapsSent    bool
	ProfileErr  error
	GapsErr     error
}

// Err joins the delivery errors, or returns nil.
func (r SyncResult) Err() error {
	return errors.Join(r.ProfileErr, r.GapsErr)
}

// Outbox dispatches messages to the senders.
type Outbox struct {
	profiles ProfileSender
	gaps     GapSender
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// Config configures an Outbox. Nil senders default to Nop.
type Config struct {
	Profiles ProfileSender
	Gaps     GapSender

	// Timeout bounds the whole dispatch. Zero means no bound beyond ctx.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New creates an Outbox.
func New(cfg Config) *Outbox {
	o := &Outbox{
		profiles: cfg.Profiles,
		gaps:     cfg.Gaps,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if o.profiles == nil {
		o.profiles = Nop{}
	}
	if o.gaps == nil {
		o.gaps = Nop{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.metrics == nil {
		o.metrics = telemetry.Noop()
	}
	return o
}

// Dispatch sends both parts of msg concurrently and waits for them.
// It never returns an error; failures are logged and recorded in the
// result.
func (o *Outbox) Dispatch(ctx context.Context, msg Message) SyncResult {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var (
		res SyncResult
		g   errgroup.Group
	)
	if msg.Profile != nil {
		g.Go(func() error {
			res.ProfileErr = o.profiles.SendProfile(ctx, msg.Profile)
			res.ProfileSent = res.ProfileErr == nil
			if res.ProfileErr != nil {
				o.failed(ctx, "profile", msg.Profile.UserID, res.ProfileErr)
			}
			return nil
		})
	}
	if msg.Gaps != nil {
		g.Go(func() error {
			res.GapsErr = o.gaps.SendGaps(ctx, msg.Gaps)
			res.GapsSent = res.GapsErr == nil
			if res.GapsErr != nil {
				o.failed(ctx, "gaps", msg.Gaps.UserID, res.GapsErr)
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (o *Outbox) failed(ctx context.Context, kind, userID string, err error) {
	o.metrics.SyncFailures.Add(ctx, 1)
	o.logger.WarnContext(ctx, "sync failed", "kind", kind, "user_id", userID, "error", err)
}
