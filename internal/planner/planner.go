package planner

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"meal-mailer/internal/history"
	"meal-mailer/internal/recipe"
)

// Planner handles the generation of daily meal plans.
type Planner struct {
	selector *Selector
	slots    []string
}

// NewPlanner creates a new Planner for the given slots. Empty slots fall back
// to DefaultSlots.
func NewPlanner(selector *Selector, slots []string) *Planner {
	if len(slots) == 0 {
		slots = DefaultSlots
	}
	return &Planner{
		selector: selector,
		slots:    slices.Clone(slots),
	}
}

// Slots returns the ordered slots the planner fills.
func (p *Planner) Slots() []string {
	return slices.Clone(p.slots)
}

// GeneratePlan selects today's meals excluding yesterday's, then runs the same
// selection again excluding today's meals to preview tomorrow. Only one day is
// looked back in both cases.
func (p *Planner) GeneratePlan(recipes []recipe.Recipe, previous []history.Record, date time.Time) DailyPlan {
	today := p.selector.Select(recipes, history.Names(previous), p.slots)
	tomorrow := p.selector.Select(recipes, history.Names(ToHistory(today)), p.slots)

	return DailyPlan{
		ID:       uuid.NewString(),
		Date:     date,
		Today:    today,
		Tomorrow: tomorrow,
	}
}
