package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var careerCmd = &cobra.Command{
	Use:   "career",
	Short: "Manage the competencies a user is pursuing",
}

var careerAddCmd = &cobra.Command{
	Use:   "add <user-id> <competency-id>...",
	Short: "Add competencies to a user's career path",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		userID := args[0]
		for _, id := range args[1:] {
			if _, err := rt.graph.Competency(id); err != nil {
				return err
			}
		}
		repo := rt.store.CareerPathRepo()
		for _, id := range args[1:] {
			if err := repo.Add(cmd.Context(), userID, id); err != nil {
				return fmt.Errorf("add %s: %w", id, err)
			}
		}
		fmt.Printf("Added %d competencies to %s's career path\n", len(args)-1, userID)
		return nil
	},
}

var careerRemoveCmd = &cobra.Command{
	Use:   "remove <user-id> <competency-id>...",
	Short: "Remove competencies from a user's career path",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		repo := rt.store.CareerPathRepo()
		for _, id := range args[1:] {
			if err := repo.Remove(cmd.Context(), args[0], id); err != nil {
				return fmt.Errorf("remove %s: %w", id, err)
			}
		}
		return nil
	},
}

var careerListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's career path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		entries, err := rt.store.CareerPathRepo().FindByUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No career path set.")
			return nil
		}
		for _, e := range entries {
			name := "(unknown)"
			if c, err := rt.graph.Competency(e.CompetencyID); err == nil {
				name = c.Name
			}
			fmt.Printf("%-24s  %-40s  %s\n", e.CompetencyID, name, e.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	careerCmd.AddCommand(careerAddCmd)
	careerCmd.AddCommand(careerRemoveCmd)
	careerCmd.AddCommand(careerListCmd)
}
