package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"meal-mailer/internal/config"
	"meal-mailer/internal/editor"
	"meal-mailer/internal/metrics"
	"meal-mailer/internal/planner"
	"meal-mailer/internal/recipe"
)

var (
	configPath string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "meal-mailer",
		Short:         "Pick the family's daily meals and mail the plan",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&debug, "dbg", false, "debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(historyCleanupCmd())
	rootCmd.AddCommand(recipesCmd())
	rootCmd.AddCommand(recipientsCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(importGhostCmd())
	rootCmd.AddCommand(importURLCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(metricsCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging with its secrets masked.
func loadConfig() (*config.Config, error) {
	setupLog(debug)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLog(debug, cfg.Secrets()...)
	return cfg, nil
}

func runCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Select today's meals, deliver the plan and remember today's choices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := runDate(date)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveOptional)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := a.RunDaily(cmd.Context(), now)
			if err != nil {
				return fmt.Errorf("daily run failed: %w", err)
			}
			log.Printf("[INFO] plan %s for %s delivered via %s: %s", res.Plan.ID, res.Plan.DateLabel(),
				a.Notifier.Channels(), strings.Join(res.Plan.Today.Names(), ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "plan date as YYYY-MM-DD (default today)")
	return cmd
}

func previewCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print today's plan and tomorrow's shopping list without sending or saving anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := runDate(date)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveNone)
			if err != nil {
				return err
			}
			defer closeFn()
			return a.Preview(now, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "plan date as YYYY-MM-DD (default today)")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently delivered plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveRequired)
			if err != nil {
				return err
			}
			defer closeFn()

			plans, err := a.RecentPlans(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plans archived yet.")
				return nil
			}

			t := table.New().Border(lipgloss.NormalBorder()).Headers("Date", "Today", "Tomorrow", "Shopping", "Delivery")
			for _, p := range plans {
				t.Row(p.Date, mealsCell(p.Today), mealsCell(p.Tomorrow), strings.Join(p.Shopping, ", "), p.Delivery)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 7, "number of plans to show")
	return cmd
}

func historyCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "history-cleanup",
		Short: "Delete archived plans and delivery metrics older than N days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveRequired)
			if err != nil {
				return err
			}
			defer closeFn()

			plans, metricRows, err := a.Cleanup(cmd.Context(), time.Now(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d plans and %d metric records.\n", plans, metricRows)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "keep records for the last N days")
	return cmd
}

func recipesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List recipes and report problems in the recipe file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveNone)
			if err != nil {
				return err
			}
			defer closeFn()

			recipes, issues, err := a.CheckRecipes()
			if err != nil {
				return err
			}
			excluded, err := a.ExcludedToday()
			if err != nil {
				return err
			}

			t := table.New().Border(lipgloss.NormalBorder()).Headers("Name", "Meal times", "Ingredients", "Served yesterday")
			for _, r := range recipes {
				yesterday := ""
				if _, ok := excluded[r.Name]; ok {
					yesterday = "yes"
				}
				t.Row(r.Name, strings.Join(r.MealTimeEligibility, ", "), fmt.Sprint(len(r.Ingredients)), yesterday)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t)
			fmt.Fprintf(out, "%d recipes in %s\n", len(recipes), cfg.RecipesFile)
			for _, issue := range issues {
				fmt.Fprintln(out, issue)
			}
			return nil
		},
	}
	cmd.AddCommand(recipesImportCmd(), recipesExportCmd())
	return cmd
}

func recipesImportCmd() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge recipes from a JSON file into the recipe file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveNone)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := a.ImportFile(args[0], replace)
			if err != nil {
				return err
			}
			if replace {
				fmt.Fprintf(cmd.OutOrStdout(), "Replaced recipes with %d from %s.\n", res.Added, args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported recipes: %d added, %d updated.\n", res.Added, res.Updated)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the whole collection instead of merging by name")
	return cmd
}

func recipesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the recipe collection to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveNone)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := a.ExportFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d recipes to %s.\n", n, args[0])
			return nil
		},
	}
}

func recipientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "Manage who receives the daily plan",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the recipients the plan is mailed to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Email.Recipients) == 0 {
				fmt.Fprintln(out, "No recipients configured.")
				return nil
			}
			for _, r := range cfg.Email.Recipients {
				fmt.Fprintln(out, r)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <email>",
		Short: "Add a recipient to the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLog(debug)
			recipients, err := config.AddRecipient(configPath, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s, %d recipients in %s.\n", args[0], len(recipients), configPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <email>",
		Short: "Remove a recipient from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLog(debug)
			recipients, err := config.RemoveRecipient(configPath, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s, %d recipients left in %s.\n", args[0], len(recipients), configPath)
			return nil
		},
	})
	return cmd
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the recipe file in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// the UI owns the terminal, keep log lines out of it
			lgr.SetupStdLogger(lgr.Out(io.Discard), lgr.Err(io.Discard))

			store := recipeStore(cfg)
			var recipes []recipe.Recipe
			if store.Exists() {
				if recipes, err = store.Load(); err != nil {
					return err
				}
			}
			return editor.Run(recipes, store)
		},
	}
}

func importGhostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-ghost",
		Short: "Import recipes from the Ghost blog into the recipe file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Ghost.URL == "" || cfg.Ghost.ContentKey == "" {
				return fmt.Errorf("GHOST_API_URL and GHOST_CONTENT_API_KEY must be set")
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveNone)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := a.ImportGhost(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported recipes: %d added, %d updated, %d skipped.\n", res.Added, res.Updated, res.Skipped)
			return nil
		},
	}
}

func importURLCmd() *cobra.Command {
	var slots string
	var publish bool

	cmd := &cobra.Command{
		Use:   "import-url <url>",
		Short: "Clip a recipe web page into the recipe file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveNone)
			if err != nil {
				return err
			}
			defer closeFn()

			r, err := a.ImportURL(cmd.Context(), args[0], recipe.SplitList(slots, ","), publish)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q with %d ingredients for %s.\n",
				r.Name, len(r.Ingredients), strings.Join(r.MealTimeEligibility, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&slots, "slots", "", "comma separated meal times the recipe is eligible for")
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish the recipe to the Ghost blog")
	return cmd
}

func schemaCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "schema [output]",
		Short: "Write the JSON schema of the recipe file or the config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema *jsonschema.Schema
			switch kind {
			case "recipes":
				schema = jsonschema.Reflect(&recipe.Collection{})
			case "config":
				schema = jsonschema.Reflect(&config.Config{})
			default:
				return fmt.Errorf("unknown schema kind %q, use recipes or config", kind)
			}

			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			if len(args) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("failed to write schema file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema generated successfully at %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "recipes", "schema to generate: recipes or config")
	return cmd
}

func metricsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show delivery statistics and outbox health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeFn, err := buildApp(cmd.Context(), cfg, archiveRequired)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := a.DeliveryStats(cmd.Context(), days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deliveries in the last %d days\n", days)
			if len(stats) == 0 {
				fmt.Fprintln(out, "No data yet")
			} else {
				t := table.New().Border(lipgloss.NormalBorder()).Headers("Day", "Channel", "Total", "Failed", "Avg latency")
				for _, s := range stats {
					t.Row(s.Date, s.Channel, fmt.Sprint(s.Total), fmt.Sprint(s.Failed), fmt.Sprintf("%.0fms", s.AvgLatencyMS))
				}
				fmt.Fprintln(out, t)
			}

			h := metrics.GetSysHealth(cfg.OutboxDir)
			fmt.Fprintf(out, "Outbox %s: %d files, %s\n", cfg.OutboxDir, h.OutboxFiles, h.OutboxSize)
			fmt.Fprintf(out, "RAM: %dMB (Alloc) / %dMB (Sys), goroutines: %d\n", h.AllocMB, h.SysMB, h.Goroutines)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to report")
	return cmd
}

func runDate(date string) (time.Time, error) {
	if date == "" {
		return time.Now(), nil
	}
	d, err := time.ParseInLocation(planner.DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return d, nil
}

func mealsCell(a planner.Assignment) string {
	parts := make([]string, 0, len(a))
	for _, m := range a {
		name := "-"
		if m.Recipe != nil {
			name = m.Recipe.Name
		}
		parts = append(parts, m.Slot+": "+name)
	}
	return strings.Join(parts, "\n")
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(os.Stdout), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError)
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
