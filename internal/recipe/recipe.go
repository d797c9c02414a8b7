package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrDuplicateRecipe is returned when two recipes share the same name.
var ErrDuplicateRecipe = errors.New("duplicate recipe name")

// Recipe is a single entry of the recipe collection. The name is its unique key.
type Recipe struct {
	Name                string   `json:"name" jsonschema:"required,minLength=1,description=Unique recipe name"`
	MealTimeEligibility []string `json:"mealTimeEligibility" jsonschema:"description=Meal slots this recipe may be served in"`
	Ingredients         []string `json:"ingredients" jsonschema:"description=Ingredients used for the shopping list"`
	Instructions        string   `json:"instructions" jsonschema:"description=Free-form cooking instructions"`
}

// UnmarshalJSON also accepts the instructions under the "recipe" key, as
// written by the web editor.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	type plain Recipe
	var v struct {
		plain
		Recipe string `json:"recipe"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Recipe(v.plain)
	if r.Instructions == "" {
		r.Instructions = v.Recipe
	}
	return nil
}

// Collection is the ordered recipe list as stored on disk.
type Collection []Recipe

// EligibleFor reports whether the recipe may be served in the given slot.
func (r Recipe) EligibleFor(slot string) bool {
	return slices.Contains(r.MealTimeEligibility, slot)
}

// Issue is a single validation finding.
type Issue struct {
	Recipe  string
	Message string
	Fatal   bool
}

func (i Issue) String() string {
	level := "warning"
	if i.Fatal {
		level = "error"
	}
	if i.Recipe == "" {
		return fmt.Sprintf("%s: %s", level, i.Message)
	}
	return fmt.Sprintf("%s: %q %s", level, i.Recipe, i.Message)
}

// Validate checks the collection against the known slots. Fatal issues make the
// collection unusable for planning; the rest are informational.
func Validate(recipes []Recipe, slots []string) []Issue {
	var issues []Issue
	seen := make(map[string]struct{}, len(recipes))
	for i, r := range recipes {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			issues = append(issues, Issue{Message: fmt.Sprintf("recipe #%d has an empty name", i+1), Fatal: true})
			continue
		}
		if _, dup := seen[r.Name]; dup {
			issues = append(issues, Issue{Recipe: r.Name, Message: "is defined more than once", Fatal: true})
		}
		seen[r.Name] = struct{}{}

		if len(r.MealTimeEligibility) == 0 {
			issues = append(issues, Issue{Recipe: r.Name, Message: "is not eligible for any meal time"})
		}
		for _, slot := range r.MealTimeEligibility {
			if !slices.Contains(slots, slot) {
				issues = append(issues, Issue{Recipe: r.Name, Message: fmt.Sprintf("uses unknown meal time %q", slot)})
			}
		}
		if len(r.Ingredients) == 0 {
			issues = append(issues, Issue{Recipe: r.Name, Message: "has no ingredients"})
		}
	}
	return issues
}

// CheckUnique returns ErrDuplicateRecipe (wrapped with the offending name) when
// the collection cannot be keyed by name.
func CheckUnique(recipes []Recipe) error {
	seen := make(map[string]struct{}, len(recipes))
	for _, r := range recipes {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("recipe with empty name: %w", ErrDuplicateRecipe)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRecipe, r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// Merge replaces recipes with matching names in place and appends new ones,
// keeping the order of the existing collection. It returns the merged list
// and how many recipes were added and updated.
func Merge(existing, incoming []Recipe) (merged []Recipe, added, updated int) {
	merged = slices.Clone(existing)
	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[r.Name] = i
	}
	for _, r := range incoming {
		if i, ok := index[r.Name]; ok {
			merged[i] = r
			updated++
			continue
		}
		index[r.Name] = len(merged)
		merged = append(merged, r)
		added++
	}
	return merged, added, updated
}

// SplitList parses a free-text list the way the editor form does: entries are
// separated by sep, trimmed, and empty entries dropped.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
