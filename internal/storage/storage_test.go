package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-mailer/internal/history"
	"meal-mailer/internal/recipe"
)

func TestRecipeStore(t *testing.T) {
	dir := t.TempDir()
	store := NewRecipeStore(filepath.Join(dir, "recipes.json"))

	t.Run("missing file", func(t *testing.T) {
		assert.False(t, store.Exists())
		_, err := store.Load()
		require.Error(t, err)
	})

	recipes := []recipe.Recipe{
		{Name: "Oats", MealTimeEligibility: []string{"breakfast"}, Ingredients: []string{"oats", "milk"}, Instructions: "Cook."},
		{Name: "Soup", MealTimeEligibility: []string{"lunch", "dinner"}, Ingredients: []string{"leek"}},
	}

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(recipes))
		assert.True(t, store.Exists())

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, recipes, loaded)
	})

	t.Run("original file layout", func(t *testing.T) {
		path := filepath.Join(dir, "original.json")
		content := `[{"name": "Pancakes", "mealTimeEligibility": ["breakfast"], "ingredients": ["flour", "eggs"], "instructions": "Fry."}]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		loaded, err := NewRecipeStore(path).Load()
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "Pancakes", loaded[0].Name)
		assert.Equal(t, []string{"breakfast"}, loaded[0].MealTimeEligibility)
		assert.Equal(t, []string{"flour", "eggs"}, loaded[0].Ingredients)
	})

	t.Run("web editor layout", func(t *testing.T) {
		path := filepath.Join(dir, "web.json")
		content := `[{"name": "Oats", "mealTimeEligibility": ["breakfast"], "ingredients": ["oats", "milk"], "recipe": "Boil oats in milk."},
			{"name": "Soup", "mealTimeEligibility": ["lunch"], "ingredients": ["leek"], "instructions": "Simmer.", "recipe": "ignored"}]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		webStore := NewRecipeStore(path)
		loaded, err := webStore.Load()
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, "Boil oats in milk.", loaded[0].Instructions)
		assert.Equal(t, "Simmer.", loaded[1].Instructions, "instructions win over the recipe key")

		// saving keeps the text
		require.NoError(t, webStore.Save(loaded))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"instructions": "Boil oats in milk."`)

		reloaded, err := webStore.Load()
		require.NoError(t, err)
		assert.Equal(t, loaded, reloaded)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := NewRecipeStore(path).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal recipes")
	})
}

func TestHistoryStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "previous_day_meals.json")
	store := NewHistoryStore(path)

	t.Run("missing file is empty history", func(t *testing.T) {
		records, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NotNil(t, records)
	})

	t.Run("round trip", func(t *testing.T) {
		records := []history.Record{
			{Name: "Oats", MealTime: "breakfast"},
			{Name: "Soup", MealTime: "lunch"},
		}
		require.NoError(t, store.Save(records))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"meal_time": "breakfast"`)

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, records, loaded)
	})

	t.Run("overwrite with nothing", func(t *testing.T) {
		require.NoError(t, store.Save(nil))
		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, loaded)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temp files must not be left behind")
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("[{"), 0o644))
		_, err := NewHistoryStore(bad).Load()
		require.Error(t, err)
	})
}
