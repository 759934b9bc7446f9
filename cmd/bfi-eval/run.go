package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bigfive-llm/internal/config"
	"bigfive-llm/internal/db"
	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/inventory"
	"bigfive-llm/internal/llm"
	"bigfive-llm/internal/report"
	"bigfive-llm/internal/repository"
	"bigfive-llm/internal/service"
)

var (
	runModels []string
	runRoster string
	runOut    string
	runFormat string
	runStore  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the questionnaire against the roster or the named models",
	Example: `  bfi-eval run
  bfi-eval run --model openai:gpt-4o-mini --model demo:echo
  bfi-eval run --roster roster.yaml --format json --store`,
	Args: cobra.NoArgs,
	RunE: runEvaluation,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runModels, "model", "m", nil, "model reference provider:model (repeatable)")
	runCmd.Flags().StringVar(&runRoster, "roster", "", "YAML roster file (overrides BFI_ROSTER_FILE)")
	runCmd.Flags().StringVar(&runOut, "out", "", "artifact directory (overrides BFI_RESULTS_DIR)")
	runCmd.Flags().StringVar(&runFormat, "format", "table", "stdout format: table, json or csv")
	runCmd.Flags().BoolVar(&runStore, "store", false, "also store the report in Postgres (DATABASE_URL)")
}

func runEvaluation(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	switch runFormat {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q: want table, json or csv", runFormat)
	}

	settings := providerSettings(cfg)
	rosterFile := runRoster
	if rosterFile == "" {
		rosterFile = cfg.RosterFile
	}
	models, err := config.ResolveModels(runModels, rosterFile, settings.HasCredentials, logger)
	if err != nil {
		return err
	}

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	evaluator, err := newEvaluationService(cfg, newRegistry(cfg, redisClient, logger), logger)
	if err != nil {
		return err
	}

	var store report.Saver
	if runStore {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("--store needs DATABASE_URL")
		}
		pool, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = repository.NewPgReportRepository(pool)
	}

	outDir := runOut
	if outDir == "" {
		outDir = cfg.ResultsDir
	}
	publisher := report.NewPublisher(report.NewWriter(outDir), store, logger)

	rep, err := evaluator.Run(ctx, models)
	if err != nil {
		return err
	}
	artifacts, err := publisher.Publish(ctx, rep)
	if err != nil {
		return err
	}

	if err := printReport(cmd.OutOrStdout(), rep, runFormat); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "results saved to %s\n", artifacts.JSON)
	if artifacts.ErrorsCSV != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "some queries failed, see %s\n", artifacts.ErrorsCSV)
	}
	return nil
}

func newEvaluationService(c *config.Config, raters service.RaterSource, logger *zap.Logger) (*service.EvaluationService, error) {
	items := inventory.BFI44()
	if err := inventory.Validate(items); err != nil {
		return nil, fmt.Errorf("item bank: %w", err)
	}
	return service.NewEvaluationService(raters, items, service.EvaluationConfig{
		Trials:              c.Trials,
		MinValidFraction:    c.MinValidFraction,
		RunTimeout:          c.RunTimeout,
		ProviderConcurrency: c.ProviderConcurrency,
		Retry:               retryPolicy(c),
		RefusalPatterns:     c.RefusalPatterns,
	}, logger), nil
}

// openDatabase abre el pool, verifica conectividad y crea el esquema.
func openDatabase(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func printReport(w io.Writer, rep domain.EvaluationReport, format string) error {
	switch format {
	case "json":
		return report.EncodeJSON(w, rep)
	case "csv":
		return report.WriteScoresCSV(w, rep)
	default:
		_, err := fmt.Fprintln(w, report.RenderTable(rep))
		return err
	}
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Print the BFI item bank",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printItems(cmd.OutOrStdout(), inventory.BFI44())
	},
}

func printItems(w io.Writer, items []domain.Item) error {
	for _, it := range items {
		key := "+"
		if it.Reverse {
			key = "R"
		}
		if _, err := fmt.Fprintf(w, "%2d  %s  %s  %s\n", it.Index, it.Trait, key, inventory.Statement(it)); err != nil {
			return err
		}
	}
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show <report.json>",
	Short: "Render a saved report as a trait table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := report.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.RenderTable(rep))
		return nil
	},
}

// defaultModels resuelve el roster configurado para corridas sin modelos explicitos.
func defaultModels(c *config.Config, settings llm.ProviderSettings, logger *zap.Logger) func() ([]domain.TargetModel, error) {
	return func() ([]domain.TargetModel, error) {
		return config.ResolveModels(nil, c.RosterFile, settings.HasCredentials, logger)
	}
}
