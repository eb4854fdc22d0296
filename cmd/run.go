package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltrack/internal/config"
	"github.com/abhisek/skilltrack/internal/engine"
	"github.com/abhisek/skilltrack/internal/outbox"
	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
	"github.com/abhisek/skilltrack/internal/telemetry"
)

// runtime holds what a command needs to talk to the store.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	graph  *skillgraph.Graph
}

// openRuntime loads configuration and opens the store. When withGraph is
// set it also loads the skill graph, which requires definitions to have
// been imported.
func openRuntime(cmd *cobra.Command, withGraph bool) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: st}
	if withGraph {
		g, err := store.LoadGraph(cmd.Context(), st.DefinitionRepo())
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("load skill graph: %w", err)
		}
		if len(g.Competencies()) == 0 {
			st.Close()
			return nil, fmt.Errorf("no competencies defined; run 'skilltrack import <file>' first")
		}
		rt.graph = g
	}
	return rt, nil
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

// newEngine builds the exam pipeline with the configured outbound sync.
// The returned function shuts telemetry down.
func (rt *runtime) newEngine(ctx context.Context) (*engine.Engine, func(context.Context) error, error) {
	shutdown, err := telemetry.Init(ctx, rt.cfg.Telemetry.Enabled, "skilltrack", version, rt.cfg.Telemetry.Interval)
	if err != nil {
		return nil, nil, err
	}
	metrics := telemetry.Default()

	scope, err := rt.cfg.GapScope()
	if err != nil {
		return nil, nil, err
	}

	client := outbox.NewHTTPClient(outbox.HTTPConfig{
		ProfileURL:  rt.cfg.Sync.ProfileURL,
		GapsURL:     rt.cfg.Sync.GapsURL,
		MaxAttempts: rt.cfg.Sync.MaxAttempts,
	})
	ob := outbox.New(outbox.Config{
		Profiles: client,
		Gaps:     client,
		Timeout:  rt.cfg.Sync.Timeout,
		Logger:   rt.logger,
		Metrics:  metrics,
	})

	eng := engine.New(engine.Options{
		Graph:        rt.graph,
		Competencies: rt.store.UserCompetencyRepo(),
		CareerPaths:  rt.store.CareerPathRepo(),
		Events:       rt.store.EventRepo(),
		Outbox:       ob,
		GapScope:     scope,
		MaxAttempts:  rt.cfg.Exam.MaxAttempts,
		Logger:       rt.logger,
		Metrics:      metrics,
	})
	return eng, shutdown, nil
}
