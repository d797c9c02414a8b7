// Package history holds the minimal record of a day's meals that the next run
// uses to avoid repeating recipes.
package history

// Record is one meal served on the previous day.
type Record struct {
	Name     string `json:"name"`
	MealTime string `json:"meal_time"`
}

// Names returns the set of recipe names present in the records.
func Names(records []Record) map[string]struct{} {
	names := make(map[string]struct{}, len(records))
	for _, r := range records {
		names[r.Name] = struct{}{}
	}
	return names
}
