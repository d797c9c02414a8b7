package shopping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"meal-mailer/internal/database"
)

var errCritical = errors.New("critical database error")

type listRow struct {
	ID         int64     `db:"id"`
	MealPlanID string    `db:"meal_plan_id"`
	Items      string    `db:"items"`
	CreatedAt  time.Time `db:"created_at"`
}

// Repository handles persistence of shopping lists.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new shopping list repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Save stores the list for its meal plan and returns the new row id.
func (r *Repository) Save(ctx context.Context, list ShoppingList) (int64, error) {
	itemsJSON, err := json.Marshal(list.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal shopping list items: %w", err)
	}

	var id int64
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO shopping_lists (meal_plan_id, items, created_at) VALUES (?, ?, ?)`,
			list.MealPlanID, string(itemsJSON), time.Now().UTC())
		if err != nil {
			if database.IsLockError(err) {
				return err // retry
			}
			return fmt.Errorf("%w: failed to insert shopping list: %w", errCritical, err)
		}
		id, err = res.LastInsertId()
		return err
	}, errCritical)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetByMealPlanID retrieves the shopping list of a meal plan. It returns nil
// when the plan has no list.
func (r *Repository) GetByMealPlanID(ctx context.Context, mealPlanID string) (*ShoppingList, error) {
	var row listRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, meal_plan_id, items, created_at FROM shopping_lists WHERE meal_plan_id = ?`, mealPlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No shopping list found
		}
		return nil, fmt.Errorf("failed to get shopping list by meal plan ID: %w", err)
	}

	var items []string
	if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shopping list items: %w", err)
	}

	return &ShoppingList{
		ID:         row.ID,
		MealPlanID: row.MealPlanID,
		Items:      items,
		CreatedAt:  row.CreatedAt,
	}, nil
}
