package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/lectern/internal/config"
	"github.com/Yates-Labs/lectern/internal/evaluation"
	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/orchestrator"
)

var (
	evalWorkers int
	evalShow    string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the evaluation battery and score the answers",
	Long: `Run every question of the evaluation battery through the answer pipeline,
score each answer on five rubrics with the judge model, check whether the
answer used lecture context, and save the report to the results directory.

Examples:
  lectern eval
  lectern eval --workers 3
  lectern eval --show results/evaluation_results_20250101_120000.json`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().IntVar(&evalWorkers, "workers", 0, "Concurrent test cases (default from config)")
	evalCmd.Flags().StringVar(&evalShow, "show", "", "Print a saved report instead of running the battery")
}

func runEval(cmd *cobra.Command, args []string) error {
	if path := strings.TrimSpace(evalShow); path != "" {
		report, err := evaluation.LoadReport(path)
		if err != nil {
			return fmt.Errorf("failed to load report: %w", err)
		}
		fmt.Println(formatReport(report))
		return nil
	}

	ctx := cmd.Context()
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	if evalWorkers > 0 {
		cfg.Evaluator.Workers = evalWorkers
	}

	components, err := orchestrator.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create RAG pipeline: %w", err)
	}
	defer components.Close()

	evaluator, err := newEvaluator(cfg, components, logger)
	if err != nil {
		return err
	}

	battery := evaluation.DefaultBattery()
	fmt.Println(contextStyle.Render(fmt.Sprintf("→ Running %d test questions (battery %s)...", len(battery.Cases), battery.Version)))

	report, err := evaluator.Run(ctx, battery)
	if err != nil {
		return err
	}

	path, err := evaluation.SaveReport(cfg.Paths.ResultsDir, report)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	fmt.Println()
	fmt.Println(formatReport(report))
	fmt.Println(successStyle.Render("✓ Results saved to " + path))
	return nil
}

func newEvaluator(cfg *config.Config, components *orchestrator.Components, logger *slog.Logger) (*evaluation.Evaluator, error) {
	opts := evaluation.DefaultOptions()
	opts.Workers = cfg.Evaluator.Workers
	if cfg.Prompt.Persona != "" {
		opts.Persona = cfg.Prompt.Persona
	}
	if secs := cfg.JudgeLLM().TimeoutSeconds; secs > 0 {
		opts.JudgeTimeout = time.Duration(secs) * time.Second
	}
	opts.Logger = logger
	return evaluation.NewEvaluator(components.Pipeline, components.Judge, opts)
}

// formatReport renders the per-question table followed by the run metrics.
func formatReport(report *evaluation.Report) string {
	header := contextStyle.Render(fmt.Sprintf("Run %s · battery %s · %s",
		report.RunID, report.BatteryVersion, report.Timestamp.Format(time.RFC3339)))
	return strings.Join([]string{
		header,
		outputRecordTable(report.Tests),
		outputMetricsTable(report.Metrics),
	}, "\n")
}

func outputRecordTable(records []evaluation.Record) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		scores := []string{"-", "-", "-", "-", "-"}
		if rec.Scores != nil {
			scores = []string{
				strconv.Itoa(rec.Scores.Accuracy),
				strconv.Itoa(rec.Scores.Completeness),
				strconv.Itoa(rec.Scores.TeachingStyle),
				strconv.Itoa(rec.Scores.Clarity),
				strconv.Itoa(rec.Scores.Engagement),
			}
		}
		rag := "-"
		if used := rec.RAGUsed(); used != nil {
			rag = "no"
			if *used {
				rag = "yes"
			}
		}
		status := fmt.Sprintf("%.1fs", rec.ResponseTime)
		if rec.Error != "" {
			status = "error: " + rec.ErrorKind
		}

		row := []string{strconv.Itoa(rec.Index + 1), narrative.TruncateRunes(rec.Question, 40), rec.Category}
		row = append(row, scores...)
		row = append(row, rag, status)
		rows = append(rows, row)
	}
	return renderTable(
		[]string{"#", "QUESTION", "CATEGORY", "ACC", "COMP", "STYLE", "CLAR", "ENG", "RAG", "TIME"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight},
	)
}

func outputMetricsTable(m evaluation.Metrics) string {
	rows := [][]string{
		{"Accuracy", fmt.Sprintf("%.2f", m.AvgAccuracy)},
		{"Completeness", fmt.Sprintf("%.2f", m.AvgCompleteness)},
		{"Teaching style", fmt.Sprintf("%.2f", m.AvgTeachingStyle)},
		{"Clarity", fmt.Sprintf("%.2f", m.AvgClarity)},
		{"Engagement", fmt.Sprintf("%.2f", m.AvgEngagement)},
		{"Overall", fmt.Sprintf("%.2f", m.Overall)},
		{"Avg response time", fmt.Sprintf("%.2fs", m.AvgResponseTime)},
		{"RAG success rate", fmt.Sprintf("%.1f%% (%d checks)", m.RAGSuccessRate, m.RAGChecks)},
		{"Scored tests", fmt.Sprintf("%d / %d", m.ScoredTests, m.TotalTests)},
	}
	return renderTable([]string{"METRIC", "VALUE"}, rows, []columnAlignment{alignLeft, alignRight})
}
