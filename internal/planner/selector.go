package planner

import (
	"math/rand/v2"
	"time"

	"meal-mailer/internal/history"
	"meal-mailer/internal/recipe"
)

// Selector picks one recipe per slot at random under the uniqueness rules.
// It is not safe for concurrent use because the random source is not.
type Selector struct {
	rnd *rand.Rand
}

// NewSelector creates a Selector drawing from rnd. A nil rnd gets a
// time-seeded source.
func NewSelector(rnd *rand.Rand) *Selector {
	if rnd == nil {
		now := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(now, now>>1|1))
	}
	return &Selector{rnd: rnd}
}

// Select walks slots in order and assigns each one a recipe that is eligible
// for it, not excluded, and not already used by an earlier slot. Slots without
// such a recipe stay empty.
func (s *Selector) Select(recipes []recipe.Recipe, excluded map[string]struct{}, slots []string) Assignment {
	used := make(map[string]struct{}, len(slots))
	assignment := make(Assignment, 0, len(slots))

	for _, slot := range slots {
		var eligible []recipe.Recipe
		for _, r := range recipes {
			if !r.EligibleFor(slot) {
				continue
			}
			if _, ok := excluded[r.Name]; ok {
				continue
			}
			if _, ok := used[r.Name]; ok {
				continue
			}
			eligible = append(eligible, r)
		}

		if len(eligible) == 0 {
			assignment = append(assignment, Meal{Slot: slot})
			continue
		}

		chosen := eligible[s.rnd.IntN(len(eligible))]
		used[chosen.Name] = struct{}{}
		assignment = append(assignment, Meal{Slot: slot, Recipe: &chosen})
	}
	return assignment
}

// ToHistory converts an assignment into the records persisted for the next
// run, one per filled slot in slot order.
func ToHistory(a Assignment) []history.Record {
	records := make([]history.Record, 0, len(a))
	for _, m := range a {
		if m.Recipe == nil {
			continue
		}
		records = append(records, history.Record{Name: m.Recipe.Name, MealTime: m.Slot})
	}
	return records
}
