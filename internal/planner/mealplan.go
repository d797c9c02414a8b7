package planner

import (
	"time"

	"meal-mailer/internal/recipe"
)

// DateLayout is the date label format used for artifacts and the archive.
const DateLayout = "2006-01-02"

// DefaultSlots are the meal slots used when none are configured.
var DefaultSlots = []string{"breakfast", "lunch", "dinner"}

// Meal is the recipe chosen for one slot. Recipe is nil when nothing suitable was left.
type Meal struct {
	Slot   string         `json:"slot"`
	Recipe *recipe.Recipe `json:"recipe,omitempty"`
}

// Assignment maps each slot, in slot order, to its chosen recipe.
type Assignment []Meal

// Get returns the recipe assigned to slot, if any.
func (a Assignment) Get(slot string) (*recipe.Recipe, bool) {
	for _, m := range a {
		if m.Slot == slot {
			return m.Recipe, m.Recipe != nil
		}
	}
	return nil, false
}

// Names returns the names of the assigned recipes in slot order.
func (a Assignment) Names() []string {
	var names []string
	for _, m := range a {
		if m.Recipe != nil {
			names = append(names, m.Recipe.Name)
		}
	}
	return names
}

// Absent returns the slots that received no recipe.
func (a Assignment) Absent() []string {
	var slots []string
	for _, m := range a {
		if m.Recipe == nil {
			slots = append(slots, m.Slot)
		}
	}
	return slots
}

// DailyPlan is the outcome of one planning run: today's meals and a preview of
// tomorrow's, used for the shopping list.
type DailyPlan struct {
	ID       string     `json:"id"`
	Date     time.Time  `json:"date"`
	Today    Assignment `json:"today"`
	Tomorrow Assignment `json:"tomorrow"`
}

// DateLabel returns the plan date formatted with DateLayout.
func (p DailyPlan) DateLabel() string {
	return p.Date.Format(DateLayout)
}
