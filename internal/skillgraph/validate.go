package skillgraph

import (
	"fmt"
	"sort"
	"strings"
)

// validateDefinitions performs all structural checks on the definitions.
// Returns a combined error describing all problems found, or nil if valid.
func validateDefinitions(skills []Skill, competencies []Competency) error {
	var errs []string

	skillSet := make(map[string]bool, len(skills))
	for _, s := range skills {
		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, fmt.Sprintf("skill with name %q has an empty ID", s.Name))
			continue
		}
		if skillSet[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate skill ID: %q", s.ID))
		}
		skillSet[s.ID] = true
	}

	compSet := make(map[string]bool, len(competencies))
	for _, c := range competencies {
		if strings.TrimSpace(c.ID) == "" {
			errs = append(errs, fmt.Sprintf("competency with name %q has an empty ID", c.Name))
			continue
		}
		if compSet[c.ID] {
			errs = append(errs, fmt.Sprintf("duplicate competency ID: %q", c.ID))
		}
		compSet[c.ID] = true
	}

	// Dangling edges
	for _, s := range skills {
		for _, child := range s.Children {
			if !skillSet[child] {
				errs = append(errs, fmt.Sprintf("skill %q references nonexistent child %q", s.ID, child))
			}
		}
	}
	for _, c := range competencies {
		for _, sub := range c.SubCompetencies {
			if !compSet[sub] {
				errs = append(errs, fmt.Sprintf("competency %q references nonexistent sub-competency %q", c.ID, sub))
			}
		}
		for _, skillID := range c.Skills {
			if !skillSet[skillID] {
				errs = append(errs, fmt.Sprintf("competency %q references nonexistent skill %q", c.ID, skillID))
			}
		}
	}

	skillEdges := make(map[string][]string, len(skills))
	for _, s := range skills {
		skillEdges[s.ID] = s.Children
	}
	if cycle := findCycle(skillEdges); len(cycle) > 0 {
		errs = append(errs, fmt.Sprintf("cycle detected involving skills: %s", strings.Join(cycle, ", ")))
	}

	compEdges := make(map[string][]string, len(competencies))
	for _, c := range competencies {
		compEdges[c.ID] = c.SubCompetencies
	}
	if cycle := findCycle(compEdges); len(cycle) > 0 {
		errs = append(errs, fmt.Sprintf("cycle detected involving competencies: %s", strings.Join(cycle, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("graph validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// findCycle runs Kahn's algorithm over parent->children edges and returns
// the sorted ids of nodes left with unresolved in-degree (empty if acyclic).
func findCycle(edges map[string][]string) []string {
	inDegree := make(map[string]int, len(edges))
	for id := range edges {
		if _, ok := inDegree[id]; !ok {
			inDegree[id] = 0
		}
		for _, child := range edges[id] {
			if _, known := edges[child]; known {
				inDegree[child]++
			}
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range edges[id] {
			if _, known := edges[child]; !known {
				continue
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if visited == len(inDegree) {
		return nil
	}
	var cycle []string
	for id, deg := range inDegree {
		if deg > 0 {
			cycle = append(cycle, id)
		}
	}
	sort.Strings(cycle)
	return cycle
}
