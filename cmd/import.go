package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltrack/internal/skillgraph"
)

var importCmd = &cobra.Command{
	Use:   "import <definitions.yaml>",
	Short: "Replace skill and competency definitions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		defs, err := skillgraph.LoadDefinitions(f)
		if err != nil {
			return err
		}
		if _, err := defs.Build(); err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			fmt.Printf("%d skills, %d competencies valid (not saved)\n", len(defs.Skills), len(defs.Competencies))
			return nil
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.store.DefinitionRepo().Save(cmd.Context(), defs); err != nil {
			return fmt.Errorf("save definitions: %w", err)
		}
		fmt.Printf("Imported %d skills, %d competencies\n", len(defs.Skills), len(defs.Competencies))
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "Validate the file without saving")
}
