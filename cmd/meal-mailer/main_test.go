package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-mailer/internal/config"
	"meal-mailer/internal/database"
	"meal-mailer/internal/notify"
	"meal-mailer/internal/planner"
	"meal-mailer/internal/recipe"
)

func channelNames(ds []notify.Deliverer) []string {
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name())
	}
	return names
}

func TestDeliverers(t *testing.T) {
	tbl := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{name: "outbox by default", cfg: config.Config{OutboxDir: "out"}, want: []string{"file"}},
		{name: "email replaces outbox", cfg: config.Config{Email: config.EmailConfig{Enabled: true}}, want: []string{"email"}},
		{
			name: "all channels",
			cfg: config.Config{
				Email:    config.EmailConfig{Enabled: true},
				Telegram: config.TelegramConfig{BotToken: "token", ChatIDs: []int64{1}},
				Ghost:    config.GhostConfig{URL: "http://ghost", AdminKey: "id:0011"},
			},
			want: []string{"email", "telegram", "ghost"},
		},
		{
			name: "telegram needs chats",
			cfg:  config.Config{Telegram: config.TelegramConfig{BotToken: "token"}},
			want: []string{"file"},
		},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, channelNames(deliverers(&tt.cfg)))
		})
	}
}

func TestBuildApp(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		RecipesFile:  filepath.Join(dir, "recipes.json"),
		HistoryFile:  filepath.Join(dir, "history.json"),
		OutboxDir:    filepath.Join(dir, "emails"),
		DatabasePath: database.MemoryPath,
		Slots:        planner.DefaultSlots,
	}

	t.Run("without archive", func(t *testing.T) {
		a, closeFn, err := buildApp(context.Background(), cfg, archiveNone)
		require.NoError(t, err)
		defer closeFn()
		assert.Nil(t, a.Plans)
		assert.Nil(t, a.Metrics)
		assert.Nil(t, a.Ghost)
		assert.Equal(t, "file", a.Notifier.Channels())
	})

	t.Run("with archive", func(t *testing.T) {
		a, closeFn, err := buildApp(context.Background(), cfg, archiveRequired)
		require.NoError(t, err)
		defer closeFn()
		require.NotNil(t, a.Plans)
		require.NotNil(t, a.Shopping)
		require.NotNil(t, a.Metrics)

		plans, err := a.RecentPlans(context.Background(), 5)
		require.NoError(t, err)
		assert.Empty(t, plans)
	})
}

func TestRunWithoutArchive(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	recipes := []recipe.Recipe{{Name: "Oats", MealTimeEligibility: []string{"breakfast"}, Ingredients: []string{"oats"}}}
	data, err := json.Marshal(recipes)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes.json"), data, 0o644))

	cfg := &config.Config{
		RecipesFile:  filepath.Join(dir, "recipes.json"),
		HistoryFile:  filepath.Join(dir, "history.json"),
		OutboxDir:    filepath.Join(dir, "emails"),
		DatabasePath: filepath.Join(blocker, "archive", "meal-mailer.db"),
		Slots:        planner.DefaultSlots,
	}

	_, _, err = buildApp(context.Background(), cfg, archiveRequired)
	require.Error(t, err, "archive commands need the database")

	a, closeFn, err := buildApp(context.Background(), cfg, archiveOptional)
	require.NoError(t, err)
	defer closeFn()
	assert.Nil(t, a.Plans)
	assert.Nil(t, a.Shopping)
	assert.Nil(t, a.Metrics)

	day := time.Date(2025, 6, 2, 8, 0, 0, 0, time.Local)
	res, err := a.RunDaily(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oats"}, res.Plan.Today.Names())

	_, err = os.Stat(filepath.Join(cfg.OutboxDir, "2025-06-02.html"))
	assert.NoError(t, err, "plan artifact must be written")

	saved, err := os.ReadFile(cfg.HistoryFile)
	require.NoError(t, err, "history must be written")
	assert.Contains(t, string(saved), `"Oats"`)
}

func TestRunDate(t *testing.T) {
	d, err := runDate("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local), d)

	_, err = runDate("05/03/2024")
	assert.ErrorContains(t, err, "expected YYYY-MM-DD")

	d, err = runDate("")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), d, time.Minute)
}

func TestMealsCell(t *testing.T) {
	a := planner.Assignment{
		{Slot: "breakfast", Recipe: &recipe.Recipe{Name: "Oats"}},
		{Slot: "lunch"},
	}
	assert.Equal(t, "breakfast: Oats\nlunch: -", mealsCell(a))
}
