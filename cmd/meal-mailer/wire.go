package main

import (
	"context"
	"fmt"
	"log"

	"meal-mailer/internal/app"
	"meal-mailer/internal/clipper"
	"meal-mailer/internal/config"
	"meal-mailer/internal/database"
	"meal-mailer/internal/ghost"
	"meal-mailer/internal/metrics"
	"meal-mailer/internal/notify"
	"meal-mailer/internal/planner"
	"meal-mailer/internal/shopping"
	"meal-mailer/internal/storage"
	"meal-mailer/internal/telegram"
)

type archiveMode int

const (
	archiveNone     archiveMode = iota // command never touches the archive
	archiveOptional                    // run continues without the archive if it can't be opened
	archiveRequired                    // command reads the archive, failing to open it is an error
)

// buildApp wires the application from cfg. The archive database is opened
// according to mode; the returned func releases it.
func buildApp(ctx context.Context, cfg *config.Config, mode archiveMode) (*app.App, func(), error) {
	deps := app.Deps{
		Config:   cfg,
		Recipes:  recipeStore(cfg),
		History:  storage.NewHistoryStore(cfg.HistoryFile),
		Planner:  planner.NewPlanner(planner.NewSelector(nil), cfg.Slots),
		Clipper:  clipper.NewClipper(),
		Notifier: notify.NewNotifier(deliverers(cfg)...),
	}
	if cfg.Ghost.URL != "" {
		deps.Ghost = ghost.NewClient(cfg.Ghost)
	}

	closeFn := func() {}
	if mode != archiveNone {
		db, err := database.NewDB(ctx, cfg.DatabasePath)
		if err != nil && mode == archiveRequired {
			return nil, nil, fmt.Errorf("failed to open archive %s: %w", cfg.DatabasePath, err)
		}
		if err != nil {
			log.Printf("[WARN] archive %s is unavailable, plans and metrics won't be recorded: %v", cfg.DatabasePath, err)
		} else {
			deps.Plans = planner.NewPlanRepository(db.SQL)
			deps.Shopping = shopping.NewRepository(db.SQL)
			deps.Metrics = metrics.NewStore(db.SQL)
			closeFn = func() {
				if err := db.Close(); err != nil {
					log.Printf("[WARN] failed to close database: %v", err)
				}
			}
		}
	}

	log.Printf("[DEBUG] delivery channels: %s", deps.Notifier.Channels())
	return app.NewApp(deps), closeFn, nil
}

func recipeStore(cfg *config.Config) *storage.RecipeStore {
	return storage.NewRecipeStore(cfg.RecipesFile)
}

// deliverers picks the delivery channels enabled by cfg. The plan is mailed
// when emails are on and saved to the outbox otherwise.
func deliverers(cfg *config.Config) []notify.Deliverer {
	var res []notify.Deliverer
	if cfg.Email.Enabled {
		res = append(res, notify.NewEmailDeliverer(cfg.Email))
	} else {
		res = append(res, notify.NewFileDeliverer(cfg.OutboxDir))
	}
	if cfg.Telegram.Enabled() {
		res = append(res, telegram.NewDeliverer(cfg.Telegram))
	}
	if cfg.Ghost.DraftsEnabled() {
		res = append(res, ghost.NewDraftDeliverer(ghost.NewClient(cfg.Ghost), true))
	}
	return res
}
