package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veloquery/veloquery/internal/config"
	"github.com/veloquery/veloquery/internal/postgres"
)

var askRun bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Translate one question to SQL",
	Long: `Translate a natural-language question to parameterized SQL and print
it. With --run the query is also executed and the rows printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

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
		plan, err := translator.Translate(ctx, question)
		if err != nil {
			return err
		}

		fmt.Println(plan.SQL)
		for i, p := range plan.Params {
			fmt.Printf("  $%d = %s\n", i+1, formatParam(p))
		}

		entry := config.QueryHistoryEntry{
			Timestamp:    time.Now().UTC(),
			Question:     question,
			GeneratedSQL: plan.SQL,
			Success:      true,
		}
		for _, p := range plan.Params {
			entry.Params = append(entry.Params, formatParam(p))
		}

		if askRun {
			result, err := store.Query(ctx, plan.SQL, plan.Params)
			if err != nil {
				entry.Success = false
				entry.ErrorMessage = err.Error()
				saveHistory(cfg, entry, log)
				return err
			}
			entry.RowCount = len(result.Rows)
			entry.ExecutionTime = float64(result.Elapsed.Microseconds()) / 1000.0

			fmt.Println()
			fmt.Println(strings.Join(result.Columns, " | "))
			for _, row := range result.Rows {
				fmt.Println(strings.Join(row, " | "))
			}
			fmt.Printf("\n%d row(s) in %s\n", len(result.Rows), result.Elapsed.Round(time.Millisecond))
		}

		saveHistory(cfg, entry, log)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askRun, "run", false, "Execute the generated query")
}

func formatParam(p any) string {
	if t, ok := p.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return fmt.Sprintf("%v", p)
}

func saveHistory(cfg *config.Config, entry config.QueryHistoryEntry, log *zap.Logger) {
	history, err := config.LoadHistory()
	if err != nil {
		log.Warn("history unavailable", zap.Error(err))
		return
	}
	history.Add(entry, cfg.Settings.MaxHistorySize)
	if err := history.Save(); err != nil {
		log.Warn("history not saved", zap.Error(err))
	}
}
