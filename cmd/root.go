package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veloquery/veloquery/internal/config"
	"github.com/veloquery/veloquery/internal/engine"
	"github.com/veloquery/veloquery/internal/llm"
	"github.com/veloquery/veloquery/internal/postgres"
	"github.com/veloquery/veloquery/internal/tui"
)

var (
	appVersion = "dev"
	verbose    bool
)

// SetVersion sets the application version
func SetVersion(v string) {
	appVersion = v
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "veloquery",
	Short: "Ask the bike-share database questions in plain English",
	Long: `Veloquery translates natural-language questions about a bike-share
dataset into parameterized PostgreSQL and runs them.

Examples of questions it understands:
  - How long is the average ride from Congress Avenue?
  - Which station had the most departures last month?
  - Total kilometres ridden by women on rainy days in June 2025

Run without arguments for the interactive session, or use "ask" for a
one-shot translation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx := cmd.Context()
		store, err := postgres.Open(ctx, cfg.Database.DSN(), log)
		if err != nil {
			return err
		}
		defer store.Close()

		translator := newTranslator(store, cfg, log)

		history, err := config.LoadHistory()
		if err != nil {
			log.Warn("history unavailable", zap.Error(err))
			history = &config.History{}
		}

		return tui.Run(translator, store, func(e tui.ConversationEntry) {
			recordHistory(history, cfg, e, log)
		})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// newTranslator wires the catalog and the advisory extractor onto the
// pipeline. A missing API key simply leaves extraction detached.
func newTranslator(store *postgres.Store, cfg *config.Config, log *zap.Logger) *engine.Translator {
	catalog := postgres.NewCatalog(store.DB(), log)
	opts := []engine.Option{engine.WithLogger(log)}
	if cfg.LLM.APIKey != "" {
		client := llm.New(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout(),
		}, log)
		opts = append(opts, engine.WithSlotExtractor(client))
	}
	return engine.NewTranslator(catalog, opts...)
}

func recordHistory(history *config.History, cfg *config.Config, e tui.ConversationEntry, log *zap.Logger) {
	entry := config.QueryHistoryEntry{
		Timestamp:    time.Now().UTC(),
		Question:     e.Question,
		GeneratedSQL: e.SQL,
		Success:      e.Err == "",
		ErrorMessage: e.Err,
	}
	for _, p := range e.Params {
		entry.Params = append(entry.Params, fmt.Sprintf("%v", p))
	}
	if e.Result != nil {
		entry.RowCount = len(e.Result.Rows)
		entry.ExecutionTime = float64(e.Result.Elapsed.Microseconds()) / 1000.0
	}
	history.Add(entry, cfg.Settings.MaxHistorySize)
	if err := history.Save(); err != nil {
		log.Warn("history not saved", zap.Error(err))
	}
}
