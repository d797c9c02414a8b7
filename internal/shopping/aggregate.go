package shopping

import (
	"slices"

	"meal-mailer/internal/planner"
)

// Aggregate collects the ingredients of every assigned recipe, without
// duplicates, in ascending order.
func Aggregate(a planner.Assignment) []string {
	seen := make(map[string]struct{})
	items := []string{}
	for _, m := range a {
		if m.Recipe == nil {
			continue
		}
		for _, ingredient := range m.Recipe.Ingredients {
			if _, ok := seen[ingredient]; ok {
				continue
			}
			seen[ingredient] = struct{}{}
			items = append(items, ingredient)
		}
	}
	slices.Sort(items)
	return items
}
