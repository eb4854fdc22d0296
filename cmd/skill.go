package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltrack/internal/skillgraph"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Browse the skill graph",
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all skills (optionally the required MGS of one competency)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		var skills []skillgraph.Skill
		if compID, _ := cmd.Flags().GetString("competency"); compID != "" {
			if skills, err = rt.graph.RequiredMGS(compID); err != nil {
				return err
			}
		} else {
			skills = rt.graph.Skills()
		}

		// Header.
		fmt.Printf("%-24s  %-40s  %-4s  %s\n", "ID", "Name", "Leaf", "Competencies")
		fmt.Println(strings.Repeat("─", 100))

		for _, s := range skills {
			name := s.Name
			if len(name) > 40 {
				name = name[:37] + "..."
			}
			leaf := ""
			if s.IsLeaf() {
				leaf = "yes"
			}
			var owners []string
			if comps, err := rt.graph.CompetenciesBySkill(s.ID); err == nil {
				for _, c := range comps {
					owners = append(owners, c.ID)
				}
			}
			fmt.Printf("%-24s  %-40s  %-4s  %s\n", s.ID, name, leaf, strings.Join(owners, ","))
		}

		fmt.Printf("\n%d skills\n", len(skills))
		return nil
	},
}

var competencyListCmd = &cobra.Command{
	Use:   "competencies",
	Short: "List all competencies with their required MGS count",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Printf("%-24s  %-40s  %8s  %s\n", "ID", "Name", "Required", "Sub-competencies")
		fmt.Println(strings.Repeat("─", 100))
		comps := rt.graph.Competencies()
		for _, c := range comps {
			req, _ := rt.graph.RequiredMGS(c.ID)
			fmt.Printf("%-24s  %-40s  %8d  %s\n", c.ID, c.Name, len(req), strings.Join(c.SubCompetencies, ","))
		}
		fmt.Printf("\n%d competencies\n", len(comps))
		return nil
	},
}

func init() {
	skillListCmd.Flags().String("competency", "", "Only list the required MGS of this competency")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(competencyListCmd)
}
