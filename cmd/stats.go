package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltrack/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats <user-id>",
	Short: "Show a user's competency coverage and recent changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		userID := args[0]
		rows, err := rt.store.UserCompetencyRepo().FindByUser(ctx, userID)
		if err != nil {
			return err
		}

		fmt.Printf("%-24s  %8s  %-12s  %s\n", "Competency", "Coverage", "Level", "Verified")
		fmt.Println(strings.Repeat("─", 64))
		for _, uc := range rows {
			required := 0
			if req, err := rt.graph.RequiredMGS(uc.CompetencyID); err == nil {
				required = len(req)
			}
			fmt.Printf("%-24s  %7.2f%%  %-12s  %d/%d\n",
				uc.CompetencyID, uc.CoveragePercentage, uc.ProficiencyLevel, uc.VerifiedCount(), required)
		}
		fmt.Printf("\n%d competencies owned\n", len(rows))

		limit, _ := cmd.Flags().GetInt("events")
		if limit <= 0 {
			return nil
		}
		events, err := rt.store.EventRepo().CompetencyEvents(ctx, userID, store.QueryOpts{})
		if err != nil {
			return err
		}
		if len(events) > limit {
			events = events[len(events)-limit:]
		}
		if len(events) == 0 {
			return nil
		}
		fmt.Println("\nRecent changes:")
		for _, e := range events {
			fmt.Printf("  %s  %-24s  %6.2f -> %6.2f  %-12s -> %-12s  (%s)\n",
				e.Timestamp.Format("2006-01-02 15:04"), e.CompetencyID,
				e.FromCoverage, e.ToCoverage, e.FromLevel, e.ToLevel, e.Cause)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("events", 10, "Number of recent coverage changes to show (0 to hide)")
}
