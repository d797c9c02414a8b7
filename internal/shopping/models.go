package shopping

import "time"

// ShoppingList represents the ingredients to stock up on for a meal plan.
type ShoppingList struct {
	ID         int64     `json:"id"`
	MealPlanID string    `json:"meal_plan_id"`
	Items      []string  `json:"items"`
	CreatedAt  time.Time `json:"created_at"`
}
