package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"meal-mailer/internal/database"
	"meal-mailer/internal/recipe"
)

// errCritical stops the retrier; only lock errors are worth another attempt.
var errCritical = errors.New("critical database error")

// ArchivedPlan is a delivered plan as stored in the archive. Archived meals
// carry only the recipe name.
type ArchivedPlan struct {
	ID        string
	Date      string
	Delivery  string
	CreatedAt time.Time
	Today     Assignment
	Tomorrow  Assignment
}

type planRow struct {
	ID        string    `db:"id"`
	PlanDate  string    `db:"plan_date"`
	Delivery  string    `db:"delivery"`
	CreatedAt time.Time `db:"created_at"`
}

type mealRow struct {
	PlanID     string         `db:"plan_id"`
	DayOffset  int            `db:"day_offset"`
	Position   int            `db:"position"`
	Slot       string         `db:"slot"`
	RecipeName sql.NullString `db:"recipe_name"`
}

// PlanRepository is a database-backed archive of delivered meal plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Save stores the plan and its meals in one transaction. delivery names the
// channels the plan went out through.
func (r *PlanRepository) Save(ctx context.Context, plan DailyPlan, delivery string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		err := r.saveTx(ctx, plan, delivery)
		if err != nil && !database.IsLockError(err) {
			return fmt.Errorf("%w: %w", errCritical, err)
		}
		return err
	}, errCritical)
}

func (r *PlanRepository) saveTx(ctx context.Context, plan DailyPlan, delivery string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meal_plans (id, plan_date, delivery, created_at) VALUES (?, ?, ?, ?)`,
		plan.ID, plan.DateLabel(), delivery, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert meal plan: %w", err)
	}

	for offset, a := range []Assignment{plan.Today, plan.Tomorrow} {
		for pos, m := range a {
			var name sql.NullString
			if m.Recipe != nil {
				name = sql.NullString{String: m.Recipe.Name, Valid: true}
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO plan_meals (plan_id, day_offset, position, slot, recipe_name) VALUES (?, ?, ?, ?, ?)`,
				plan.ID, offset, pos, m.Slot, name)
			if err != nil {
				return fmt.Errorf("failed to insert plan meal: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListRecent retrieves the most recent plans, newest first.
func (r *PlanRepository) ListRecent(ctx context.Context, limit int) ([]ArchivedPlan, error) {
	var rows []planRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, plan_date, delivery, created_at FROM meal_plans ORDER BY plan_date DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent meal plans: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	query, args, err := sqlx.In(
		`SELECT plan_id, day_offset, position, slot, recipe_name FROM plan_meals WHERE plan_id IN (?) ORDER BY plan_id, day_offset, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build meals query: %w", err)
	}

	var meals []mealRow
	if err := r.db.SelectContext(ctx, &meals, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list plan meals: %w", err)
	}

	byPlan := make(map[string]*ArchivedPlan, len(rows))
	plans := make([]ArchivedPlan, len(rows))
	for i, row := range rows {
		plans[i] = ArchivedPlan{ID: row.ID, Date: row.PlanDate, Delivery: row.Delivery, CreatedAt: row.CreatedAt}
		byPlan[row.ID] = &plans[i]
	}
	for _, m := range meals {
		p := byPlan[m.PlanID]
		meal := Meal{Slot: m.Slot}
		if m.RecipeName.Valid {
			meal.Recipe = &recipe.Recipe{Name: m.RecipeName.String}
		}
		if m.DayOffset == 0 {
			p.Today = append(p.Today, meal)
		} else {
			p.Tomorrow = append(p.Tomorrow, meal)
		}
	}
	return plans, nil
}

// DeleteOlderThan removes plans dated before cutoff and returns how many were removed.
func (r *PlanRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meal_plans WHERE plan_date < ?`, cutoff.Format(DateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old meal plans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted meal plans: %w", err)
	}
	return n, nil
}
