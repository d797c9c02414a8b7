package app

import (
	"context"
	"fmt"
	"log"
	"slices"

	"meal-mailer/internal/clipper"
	"meal-mailer/internal/recipe"
	"meal-mailer/internal/storage"
)

// ImportResult counts the recipes an import changed.
type ImportResult struct {
	Added   int
	Updated int
	Skipped int
}

// ImportGhost fetches every Ghost post, parses recipes out of them and merges
// them into the recipe file by name. Post tags naming a configured slot
// become the recipe's meal times.
func (a *App) ImportGhost(ctx context.Context) (ImportResult, error) {
	if a.Ghost == nil {
		return ImportResult{}, fmt.Errorf("ghost is not configured")
	}
	posts, err := a.Ghost.FetchPosts(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to fetch recipes from ghost: %w", err)
	}
	log.Printf("[INFO] fetched %d posts from ghost", len(posts))

	var res ImportResult
	var incoming []recipe.Recipe
	for _, post := range posts {
		slots := a.knownSlots(post.TagNames())
		r, err := clipper.ParseHTML(post.Title, post.HTML, slots)
		if err != nil {
			log.Printf("[WARN] skipping post %q: %v", post.Title, err)
			res.Skipped++
			continue
		}
		if len(slots) == 0 {
			log.Printf("[WARN] post %q has no meal time tag", post.Title)
		}
		incoming = append(incoming, r)
	}

	res.Added, res.Updated, err = a.merge(incoming)
	return res, err
}

// ImportURL clips a single recipe page and merges it into the recipe file.
// When publish is set the recipe is also posted to the Ghost blog.
func (a *App) ImportURL(ctx context.Context, url string, slots []string, publish bool) (recipe.Recipe, error) {
	if unknown := a.unknownSlots(slots); len(unknown) > 0 {
		return recipe.Recipe{}, fmt.Errorf("unknown meal times %v, configured: %v", unknown, a.Planner.Slots())
	}
	if a.Clipper == nil {
		return recipe.Recipe{}, fmt.Errorf("clipper is not configured")
	}
	r, err := a.Clipper.ClipURL(ctx, url, slots)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to clip %s: %w", url, err)
	}
	if _, _, err := a.merge([]recipe.Recipe{r}); err != nil {
		return recipe.Recipe{}, err
	}

	if publish {
		if a.Ghost == nil {
			return r, fmt.Errorf("ghost is not configured")
		}
		post, err := a.Ghost.CreatePost(ctx, r.Name, clipper.FormatHTML(r, url), true)
		if err != nil {
			return r, fmt.Errorf("failed to save to ghost: %w", err)
		}
		log.Printf("[INFO] published %q as ghost post %s", r.Name, post.ID)
	}
	return r, nil
}

// ImportFile merges the recipes of another recipe file by name. With replace
// the imported collection takes the place of the current one.
func (a *App) ImportFile(path string, replace bool) (ImportResult, error) {
	incoming, err := storage.NewRecipeStore(path).Load()
	if err != nil {
		return ImportResult{}, err
	}
	if err := recipe.CheckUnique(incoming); err != nil {
		return ImportResult{}, fmt.Errorf("malformed recipe file %s: %w", path, err)
	}

	if replace {
		if err := a.Recipes.Save(incoming); err != nil {
			return ImportResult{}, err
		}
		log.Printf("[INFO] recipes in %s replaced by %d recipes from %s", a.Recipes.Path(), len(incoming), path)
		return ImportResult{Added: len(incoming)}, nil
	}

	var res ImportResult
	res.Added, res.Updated, err = a.merge(incoming)
	return res, err
}

// ExportFile writes the current recipe collection to path and returns how
// many recipes it holds.
func (a *App) ExportFile(path string) (int, error) {
	recipes, err := a.Recipes.Load()
	if err != nil {
		return 0, err
	}
	if err := storage.NewRecipeStore(path).Save(recipes); err != nil {
		return 0, err
	}
	return len(recipes), nil
}

// merge folds incoming recipes into the stored collection. A missing recipe
// file starts an empty collection.
func (a *App) merge(incoming []recipe.Recipe) (added, updated int, err error) {
	var existing []recipe.Recipe
	if a.Recipes.Exists() {
		if existing, err = a.Recipes.Load(); err != nil {
			return 0, 0, err
		}
	}
	merged, added, updated := recipe.Merge(existing, incoming)
	if err := a.Recipes.Save(merged); err != nil {
		return 0, 0, err
	}
	log.Printf("[INFO] recipes merged into %s: %d added, %d updated", a.Recipes.Path(), added, updated)
	return added, updated, nil
}

func (a *App) knownSlots(tags []string) []string {
	var slots []string
	for _, s := range a.Planner.Slots() {
		if slices.Contains(tags, s) {
			slots = append(slots, s)
		}
	}
	return slots
}

func (a *App) unknownSlots(slots []string) []string {
	var unknown []string
	for _, s := range slots {
		if !slices.Contains(a.Planner.Slots(), s) {
			unknown = append(unknown, s)
		}
	}
	return unknown
}
