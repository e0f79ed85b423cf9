package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/pipeline"
	"github.com/spigell/rfp-evaluator/internal/report"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/spigell/rfp-evaluator/internal/store"
	"github.com/spigell/rfp-evaluator/internal/telemetry"
)

const (
	PromptShowReport   = "Show report"
	PromptQualified    = "Show qualified proposals"
	PromptWriteReport  = "Write report to file"
	PromptResultToFile = "Dump result to file"
	PromptExit         = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowReport, PromptQualified, PromptWriteReport, PromptResultToFile, PromptExit},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score and rank the proposals of a directory against an RFP",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("rfp", "", "RFP document (.pdf or .txt)")
	evaluateCmd.Flags().String("proposals", "", "directory with proposal documents")
	evaluateCmd.Flags().String("summary", "", "use this RFP summary file (yaml or json) instead of asking the LLM")
	evaluateCmd.Flags().BoolP("yes", "y", false, "do not ask what to do with the result, just write the report")
	evaluateCmd.Flags().StringP("out", "o", "", "report file (.md, .html or .json)")

	evaluateCmd.MarkFlagRequired("rfp")
	evaluateCmd.MarkFlagRequired("proposals")

	viper.BindPFlag("report", evaluateCmd.Flags().Lookup("out"))
}

// evaluate is the main command for the cli.
func evaluate(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, config := setup()

	logger.Info("starting the rfp-evaluator", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	shutdown := startTelemetry(ctx, config, logger)

	exitOnError(logger, shutdown, runEvaluate(ctx, cmd, config, logger))
	shutdown()
}

// exitOnError flushes traces before a fatal exit, since deferred calls do not run after it.
func exitOnError(logger *zap.Logger, shutdown func(), err error) {
	if err == nil {
		return
	}
	shutdown()
	logger.Fatal("exiting", zap.Error(err))
}

func runEvaluate(ctx context.Context, cmd *cobra.Command, config *Config, logger *zap.Logger) error {
	comps, err := newComponents(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("preparing components: %w", err)
	}

	p, err := comps.pipeline(logger)
	if err != nil {
		return fmt.Errorf("preparing pipeline: %w", err)
	}

	opts := pipeline.Options{
		Concurrency:            config.Evaluation.Concurrency,
		QualificationThreshold: config.Evaluation.QualificationThreshold,
		UseRFPPassMark:         config.Evaluation.UseRFPPassMark,
	}

	if path := cmd.Flag("summary").Value.String(); path != "" {
		summary, err := rfp.LoadSummary(path)
		if err != nil {
			return fmt.Errorf("loading rfp summary %s: %w", path, err)
		}
		opts.Summary = summary
	}

	in := pipeline.Input{
		RFPPath:      cmd.Flag("rfp").Value.String(),
		ProposalsDir: cmd.Flag("proposals").Value.String(),
	}

	result, err := p.Run(ctx, in, opts)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if comps.comparisonLog != nil {
		logger.Info("comparison log updated", zap.String("filename", comps.comparisonLog.Path()))
	}

	saveRun(ctx, config, result, logger)

	logger.Info("evaluation finished",
		zap.Int("proposals", len(result.Report.RankedProposals)),
		zap.Int("qualified", len(result.Report.Qualified())),
		zap.Float64("threshold", result.Threshold),
	)

	if len(result.Report.RankedProposals) == 0 {
		logger.Info("exiting", zap.String("reason", "no proposals found"))
		return nil
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return writeReport(config.Report, result, logger)
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		if err := handleAction(action, config, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			return err
		}
	}
}

func handleAction(action string, config *Config, result *pipeline.Result, logger *zap.Logger) error {
	switch action {
	case PromptShowReport:
		fmt.Println(report.Markdown(result))
		return nil
	case PromptQualified:
		qualified := result.Report.Qualified()
		for i, r := range qualified {
			logger.Info(fmt.Sprintf("%d. %s", i+1, r.Name),
				zap.Float64("total_score", r.TotalScore),
				zap.String("price_info", string(r.PriceInfo)),
			)
		}
		logger.Info("qualified proposals", zap.Int("count", len(qualified)), zap.Float64("threshold", result.Threshold))
		return nil
	case PromptWriteReport:
		return writeReport(config.Report, result, logger)
	case PromptResultToFile:
		filename, err := report.DumpToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func writeReport(path string, result *pipeline.Result, logger *zap.Logger) error {
	if strings.TrimSpace(path) == "" {
		filename, err := report.DumpToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("no report path given, dumping result to file", zap.String("filename", filename))
		return nil
	}

	if err := report.Write(path, result); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	logger.Info("report written", zap.String("filename", path))
	return nil
}

func saveRun(ctx context.Context, config *Config, result *pipeline.Result, l *zap.Logger) {
	if config.Store == nil || strings.TrimSpace(config.Store.Path) == "" {
		return
	}

	s, err := store.Open(config.Store.Path)
	if err != nil {
		l.Warn("run history is not available", zap.Error(err))
		return
	}
	defer s.Close()

	run, err := s.SaveRun(ctx, result)
	if err != nil {
		l.Warn("saving run to history", zap.Error(err))
		return
	}
	l.Info("run saved", zap.String(logger.FieldRunID, run.ID))
}

// setup builds the logger and reads the config. Any failure is fatal.
func setup() (*zap.Logger, *Config) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		l.Fatal("config is required")
	}

	return l, config
}

func startTelemetry(ctx context.Context, config *Config, logger *zap.Logger) func() {
	endpoint := ""
	if config.Telemetry != nil {
		endpoint = config.Telemetry.OTLPEndpoint
	}

	shutdown, err := telemetry.Setup(ctx, endpoint, version, logger)
	if err != nil {
		logger.Warn("tracing is disabled", zap.Error(err))
		return func() {}
	}

	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces", zap.Error(err))
		}
	}
}
