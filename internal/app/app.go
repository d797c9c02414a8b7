package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"meal-mailer/internal/clipper"
	"meal-mailer/internal/config"
	"meal-mailer/internal/ghost"
	"meal-mailer/internal/history"
	"meal-mailer/internal/metrics"
	"meal-mailer/internal/notify"
	"meal-mailer/internal/planner"
	"meal-mailer/internal/recipe"
	"meal-mailer/internal/shopping"
	"meal-mailer/internal/storage"
)

// ErrNoArchive is returned by archive operations when no database is configured.
var ErrNoArchive = errors.New("plan archive is not configured")

// Deps holds the application's dependencies. Archive, metrics, ghost and
// clipper parts are optional.
type Deps struct {
	Config   *config.Config
	Recipes  *storage.RecipeStore
	History  *storage.HistoryStore
	Planner  *planner.Planner
	Notifier *notify.Notifier
	Plans    *planner.PlanRepository
	Shopping *shopping.Repository
	Metrics  *metrics.Store
	Ghost    ghost.Client
	Clipper  *clipper.Clipper
}

// App holds the application's dependencies.
type App struct {
	Deps
}

// NewApp creates and initializes a new App instance.
func NewApp(d Deps) *App {
	return &App{Deps: d}
}

// RunResult describes a completed daily run.
type RunResult struct {
	Plan     planner.DailyPlan
	Shopping []string
	Summary  notify.Summary
}

// RunDaily selects today's meals and tomorrow's preview, delivers the plan
// and, once every delivery succeeded, replaces the history with today's
// meals. Archive and metrics failures are logged, not returned.
func (a *App) RunDaily(ctx context.Context, now time.Time) (*RunResult, error) {
	res, err := a.prepare(now)
	if err != nil {
		return nil, err
	}

	outcomes, err := a.Notifier.Notify(ctx, res.Summary)
	a.recordMetrics(ctx, res.Plan.ID, outcomes)
	if err != nil {
		return nil, err
	}

	if err := a.History.Save(planner.ToHistory(res.Plan.Today)); err != nil {
		return nil, fmt.Errorf("failed to save today's meals: %w", err)
	}
	log.Printf("[INFO] history updated in %s", a.Config.HistoryFile)

	a.archive(ctx, res)
	return res, nil
}

// Preview writes today's plan and tomorrow's shopping list to w without
// delivering or persisting anything.
func (a *App) Preview(now time.Time, w io.Writer) error {
	res, err := a.prepare(now)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n\n%s", res.Summary.Subject, res.Summary.Text); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}

func (a *App) prepare(now time.Time) (*RunResult, error) {
	recipes, err := a.loadRecipes()
	if err != nil {
		return nil, err
	}
	previous, err := a.History.Load()
	if err != nil {
		return nil, err
	}
	log.Printf("[DEBUG] loaded %d recipes and %d history records", len(recipes), len(previous))

	plan := a.Planner.GeneratePlan(recipes, previous, now)
	if absent := plan.Today.Absent(); len(absent) > 0 {
		log.Printf("[WARN] no suitable meal for %v", absent)
	}
	list := shopping.Aggregate(plan.Tomorrow)

	summary, err := notify.Render(plan.ID, now, plan.Today, list)
	if err != nil {
		return nil, err
	}
	return &RunResult{Plan: plan, Shopping: list, Summary: summary}, nil
}

// loadRecipes reads the collection and refuses duplicate names.
func (a *App) loadRecipes() ([]recipe.Recipe, error) {
	recipes, err := a.Recipes.Load()
	if err != nil {
		return nil, err
	}
	if err := recipe.CheckUnique(recipes); err != nil {
		return nil, fmt.Errorf("malformed recipe file %s: %w", a.Recipes.Path(), err)
	}
	for _, issue := range recipe.Validate(recipes, a.Planner.Slots()) {
		if !issue.Fatal {
			log.Printf("[WARN] %s", issue)
		}
	}
	return recipes, nil
}

// CheckRecipes loads the collection and reports every validation finding.
func (a *App) CheckRecipes() ([]recipe.Recipe, []recipe.Issue, error) {
	recipes, err := a.Recipes.Load()
	if err != nil {
		return nil, nil, err
	}
	return recipes, recipe.Validate(recipes, a.Planner.Slots()), nil
}

func (a *App) recordMetrics(ctx context.Context, planID string, outcomes []notify.Outcome) {
	if a.Metrics == nil {
		return
	}
	for _, o := range outcomes {
		if err := a.Metrics.Record(ctx, metrics.Observe(planID, o.Channel, o.Started, o.Err)); err != nil {
			log.Printf("[WARN] failed to record %s delivery metric: %v", o.Channel, err)
		}
	}
}

func (a *App) archive(ctx context.Context, res *RunResult) {
	if a.Plans == nil {
		return
	}
	if err := a.Plans.Save(ctx, res.Plan, a.Notifier.Channels()); err != nil {
		log.Printf("[WARN] failed to archive plan %s: %v", res.Plan.ID, err)
		return
	}
	if a.Shopping == nil {
		return
	}
	list := shopping.ShoppingList{MealPlanID: res.Plan.ID, Items: res.Shopping}
	if _, err := a.Shopping.Save(ctx, list); err != nil {
		log.Printf("[WARN] failed to archive shopping list for plan %s: %v", res.Plan.ID, err)
	}
}

// PlanRecord is an archived plan with its shopping list.
type PlanRecord struct {
	planner.ArchivedPlan
	Shopping []string
}

// RecentPlans lists the last limit archived plans, newest first.
func (a *App) RecentPlans(ctx context.Context, limit int) ([]PlanRecord, error) {
	if a.Plans == nil {
		return nil, ErrNoArchive
	}
	plans, err := a.Plans.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	records := make([]PlanRecord, 0, len(plans))
	for _, p := range plans {
		rec := PlanRecord{ArchivedPlan: p}
		if a.Shopping != nil {
			list, err := a.Shopping.GetByMealPlanID(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			if list != nil {
				rec.Shopping = list.Items
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Cleanup removes archived plans and delivery metrics older than days.
func (a *App) Cleanup(ctx context.Context, now time.Time, days int) (plans, metricRows int64, err error) {
	if a.Plans == nil {
		return 0, 0, ErrNoArchive
	}
	if days < 1 {
		return 0, 0, fmt.Errorf("retention must be at least one day, got %d", days)
	}
	plans, err = a.Plans.DeleteOlderThan(ctx, now.AddDate(0, 0, -days))
	if err != nil {
		return 0, 0, err
	}
	if a.Metrics != nil {
		if metricRows, err = a.Metrics.Cleanup(ctx, days); err != nil {
			return plans, 0, err
		}
	}
	return plans, metricRows, nil
}

// DeliveryStats returns per-day delivery totals for the last days.
func (a *App) DeliveryStats(ctx context.Context, days int) ([]metrics.DailyStats, error) {
	if a.Metrics == nil {
		return nil, ErrNoArchive
	}
	return a.Metrics.GetDailyStats(ctx, days)
}

// ExcludedToday returns the names today's run must avoid.
func (a *App) ExcludedToday() (map[string]struct{}, error) {
	previous, err := a.History.Load()
	if err != nil {
		return nil, err
	}
	return history.Names(previous), nil
}
