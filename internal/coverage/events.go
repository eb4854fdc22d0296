package coverage

import (
	"context"
	"log/slog"

	"github.com/abhisek/skilltrack/internal/store"
)

// Event causes.
const (
	CauseExam        = "exam"
	CausePropagation = "propagation"
)

// AppendEvent records a coverage change. The audit trail is best-effort:
// a nil repo is a no-op and failures are only logged.
func AppendEvent(ctx context.Context, repo store.EventRepo, logger *slog.Logger, data store.CompetencyEventData) {
	if repo == nil {
		return
	}
	if err := repo.AppendCompetencyEvent(ctx, data); err != nil {
		logger.WarnContext(ctx, "append competency event failed",
			"user_id", data.UserID, "competency_id", data.CompetencyID, "error", err)
	}
}
