package acceptance_tests

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"meal-mailer/internal/app"
	"meal-mailer/internal/config"
	"meal-mailer/internal/database"
	"meal-mailer/internal/history"
	"meal-mailer/internal/metrics"
	"meal-mailer/internal/notify"
	"meal-mailer/internal/planner"
	"meal-mailer/internal/recipe"
	"meal-mailer/internal/shopping"
	"meal-mailer/internal/storage"
)

// two candidates per slot, so tomorrow's preview is forced to the other one
var recipes = []recipe.Recipe{
	{Name: "Porridge", MealTimeEligibility: []string{"breakfast"}, Ingredients: []string{"oats", "milk"}, Instructions: "Simmer."},
	{Name: "Omelette", MealTimeEligibility: []string{"breakfast"}, Ingredients: []string{"eggs", "milk"}},
	{Name: "Lentil Soup", MealTimeEligibility: []string{"lunch"}, Ingredients: []string{"lentils", "carrot"}},
	{Name: "Caesar Salad", MealTimeEligibility: []string{"lunch"}, Ingredients: []string{"lettuce", "bread"}},
	{Name: "Risotto", MealTimeEligibility: []string{"dinner"}, Ingredients: []string{"rice", "parmesan"}},
	{Name: "Fish Tacos", MealTimeEligibility: []string{"dinner"}, Ingredients: []string{"cod", "tortillas"}},
}

func ingredientsOf(names []string) []string {
	var items []string
	for _, r := range recipes {
		if slices.Contains(names, r.Name) {
			items = append(items, r.Ingredients...)
		}
	}
	slices.Sort(items)
	return slices.Compact(items)
}

func TestDailyRunWorkflow(t *testing.T) {
	ctx := context.Background()
	t.Setenv("SEND_EMAILS", "false")

	// 1. Set up a temporary directory with a recipe file and a config file
	tempDir := t.TempDir()
	recipesData, err := json.Marshal(recipes)
	if err != nil {
		t.Fatalf("Failed to marshal recipes: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "recipes.json"), recipesData, 0o644); err != nil {
		t.Fatalf("Failed to write recipes: %v", err)
	}
	configYAML := "recipes_file: " + filepath.Join(tempDir, "recipes.json") + "\n" +
		"history_file: " + filepath.Join(tempDir, "previous_day_meals.json") + "\n" +
		"outbox_dir: " + filepath.Join(tempDir, "emails") + "\n"
	configPath := filepath.Join(tempDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// 2. Wire the application with file delivery and an in-memory archive
	db, err := database.NewDB(ctx, database.MemoryPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	outbox := notify.NewFileDeliverer(cfg.OutboxDir)
	historyStore := storage.NewHistoryStore(cfg.HistoryFile)
	a := app.NewApp(app.Deps{
		Config:   cfg,
		Recipes:  storage.NewRecipeStore(cfg.RecipesFile),
		History:  historyStore,
		Planner:  planner.NewPlanner(planner.NewSelector(nil), cfg.Slots),
		Notifier: notify.NewNotifier(outbox),
		Plans:    planner.NewPlanRepository(db.SQL),
		Shopping: shopping.NewRepository(db.SQL),
		Metrics:  metrics.NewStore(db.SQL),
	})

	// 3. First day: three meals, all different, preview of tomorrow excludes them
	day1 := time.Date(2025, 6, 2, 7, 30, 0, 0, time.Local)
	first, err := a.RunDaily(ctx, day1)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	todayNames := first.Plan.Today.Names()
	if len(todayNames) != 3 {
		t.Fatalf("Expected 3 meals on the first day, got %v", todayNames)
	}
	tomorrowNames := first.Plan.Tomorrow.Names()
	for _, name := range tomorrowNames {
		if slices.Contains(todayNames, name) {
			t.Errorf("Tomorrow's preview repeats today's %q", name)
		}
	}
	if want := ingredientsOf(tomorrowNames); !slices.Equal(first.Shopping, want) {
		t.Errorf("Expected shopping list %v, got %v", want, first.Shopping)
	}

	html, err := os.ReadFile(outbox.Path("2025-06-02"))
	if err != nil {
		t.Fatalf("Expected saved plan for the first day: %v", err)
	}
	for _, want := range []string{"Daily Meal Plan - 2025-06-02", "Ingredients to Stock Up for Tomorrow"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("Saved plan is missing %q", want)
		}
	}

	saved, err := historyStore.Load()
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(saved) != 3 {
		t.Fatalf("Expected 3 history records, got %d", len(saved))
	}

	// 4. Second day: yesterday's meals are excluded, leaving exactly the preview
	second, err := a.RunDaily(ctx, day1.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	secondNames := second.Plan.Today.Names()
	excluded := history.Names(saved)
	for _, name := range secondNames {
		if _, ok := excluded[name]; ok {
			t.Errorf("Second day repeats yesterday's %q", name)
		}
	}
	if !slices.Equal(secondNames, tomorrowNames) {
		t.Errorf("Expected second day %v to match the first day's preview %v", secondNames, tomorrowNames)
	}
	if _, err := os.Stat(outbox.Path("2025-06-03")); err != nil {
		t.Errorf("Expected saved plan for the second day: %v", err)
	}

	// 5. The archive lists both plans, newest first, with their shopping lists
	plans, err := a.RecentPlans(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("Expected 2 archived plans, got %d", len(plans))
	}
	if plans[0].Date != "2025-06-03" || plans[1].Date != "2025-06-02" {
		t.Errorf("Expected newest plan first, got %s then %s", plans[0].Date, plans[1].Date)
	}
	if !slices.Equal(plans[1].Shopping, first.Shopping) {
		t.Errorf("Expected archived shopping list %v, got %v", first.Shopping, plans[1].Shopping)
	}
	if plans[0].Delivery != "file" {
		t.Errorf("Expected delivery via file, got %q", plans[0].Delivery)
	}

	// 6. Each run recorded one successful delivery
	stats, err := a.DeliveryStats(ctx, 36500)
	if err != nil {
		t.Fatalf("Failed to read delivery stats: %v", err)
	}
	total := 0
	for _, s := range stats {
		if s.Failed != 0 {
			t.Errorf("Unexpected failed deliveries on %s: %d", s.Date, s.Failed)
		}
		total += s.Total
	}
	if total != 2 {
		t.Errorf("Expected 2 recorded deliveries, got %d", total)
	}
}
