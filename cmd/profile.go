package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/skilltrack/internal/gaps"
	"github.com/abhisek/skilltrack/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Print a user's competency profile snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		b := profile.NewBuilder(rt.graph, rt.store.UserCompetencyRepo(), rt.logger)
		snap, err := b.Build(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var gapsCmd = &cobra.Command{
	Use:   "gaps <user-id>",
	Short: "Print the skills a user is missing across their career path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		sel := gaps.NewSelector(gaps.Config{
			Graph:        rt.graph,
			Competencies: rt.store.UserCompetencyRepo(),
			CareerPaths:  rt.store.CareerPathRepo(),
			Logger:       rt.logger,
		})
		missing, err := sel.CareerGaps(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), missing)
	},
}
