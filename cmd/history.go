package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/report"
	"github.com/spigell/rfp-evaluator/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List past evaluation runs or show the report of one",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		history(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "l", 20, "number of runs to list")
}

func history(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, config := setup()

	if config.Store == nil || config.Store.Path == "" {
		logger.Fatal("store.path is not configured")
	}

	s, err := store.Open(config.Store.Path)
	if err != nil {
		logger.Fatal("opening run history", zap.Error(err))
	}
	defer s.Close()

	if len(args) == 1 {
		run, err := s.GetRun(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			logger.Fatal("no such run", zap.String("run_id", args[0]))
		}
		if err != nil {
			logger.Fatal("getting run", zap.Error(err))
		}
		fmt.Println(report.Markdown(run.Result))
		return
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := s.ListRuns(ctx, limit)
	if err != nil {
		logger.Fatal("listing runs", zap.Error(err))
	}

	if len(runs) == 0 {
		logger.Info("no runs recorded yet", zap.String("store", config.Store.Path))
		return
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  proposals: %d  qualified: %d  top: %s (%.1f)  rfp: %s\n",
			run.ID,
			run.CreatedAt.Local().Format(time.DateTime),
			run.Proposals,
			run.Qualified,
			run.TopProposal,
			run.TopScore,
			run.RFPPath,
		)
	}
}
