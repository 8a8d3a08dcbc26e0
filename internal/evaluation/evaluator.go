package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/orchestrator"
)

var (
	ErrInvalidEvaluator = errors.New("invalid evaluator configuration")
)

// Answerer produces an answer for a question. *orchestrator.Pipeline satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (*orchestrator.QueryResult, error)
}

// Options configures an Evaluator.
type Options struct {
	// Workers bounds concurrent test cases (minimum 1)
	Workers int

	// Persona and StyleHint describe the style the judge scores against
	Persona   string
	StyleHint string

	// JudgeTimeout bounds each judge call
	JudgeTimeout time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns sequential evaluation settings.
func DefaultOptions() Options {
	return Options{
		Workers:      1,
		Persona:      "the lecturer",
		StyleHint:    "enthusiastic, step-by-step, same language mix as the lectures",
		JudgeTimeout: 60 * time.Second,
	}
}

// Evaluator drives the battery through an Answerer and scores answers with a
// judge model.
type Evaluator struct {
	answerer Answerer
	judge    narrative.LLM
	opts     Options
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(answerer Answerer, judge narrative.LLM, opts Options) (*Evaluator, error) {
	if answerer == nil {
		return nil, fmt.Errorf("%w: answerer is required", ErrInvalidEvaluator)
	}
	if judge == nil {
		return nil, fmt.Errorf("%w: judge LLM is required", ErrInvalidEvaluator)
	}

	defaults := DefaultOptions()
	if opts.Workers < 1 {
		opts.Workers = defaults.Workers
	}
	if strings.TrimSpace(opts.Persona) == "" {
		opts.Persona = defaults.Persona
	}
	if strings.TrimSpace(opts.StyleHint) == "" {
		opts.StyleHint = defaults.StyleHint
	}
	if opts.JudgeTimeout <= 0 {
		opts.JudgeTimeout = defaults.JudgeTimeout
	}

	return &Evaluator{
		answerer: answerer,
		judge:    judge,
		opts:     opts,
		logger:   logging.OrDefault(opts.Logger).With("component", "evaluator"),
	}, nil
}

// Run evaluates every case of battery. A failing case is recorded with its
// error and absent scores; it never stops the others. Records are returned in
// battery order. Run fails only when ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context, battery Battery) (*Report, error) {
	started := time.Now()
	e.logger.Info("starting evaluation", "battery_version", battery.Version, "tests", len(battery.Cases), "workers", e.opts.Workers)

	var (
		mu      sync.Mutex
		records = make([]Record, 0, len(battery.Cases))
	)

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	for i, tc := range battery.Cases {
		g.Go(func() error {
			rec := e.runCase(ctx, i, tc)
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}

	sort.Slice(records, func(a, b int) bool { return records[a].Index < records[b].Index })

	metrics := Aggregate(records)
	e.logger.Info("evaluation complete",
		"overall", metrics.Overall,
		"rag_success_rate", metrics.RAGSuccessRate,
		"duration", time.Since(started))

	return &Report{
		RunID:          uuid.NewString(),
		BatteryVersion: battery.Version,
		Timestamp:      started,
		Tests:          records,
		Metrics:        metrics,
		TotalTests:     len(records),
	}, nil
}

func (e *Evaluator) runCase(ctx context.Context, index int, tc TestCase) Record {
	logger := e.logger.With("test", index+1, "category", tc.Category)
	rec := Record{
		Index:    index,
		Question: tc.Question,
		Category: tc.Category,
		InScope:  tc.InScope,
	}

	start := time.Now()
	result, err := e.answerer.Answer(ctx, tc.Question)
	if err != nil {
		rec.ResponseTime = time.Since(start).Seconds()
		rec.Error = err.Error()
		rec.ErrorKind = string(narrative.UpstreamKindOf(err))
		logger.Warn("answer failed", "error", err)
		return rec
	}

	rec.Response = result.Text()
	rec.ResponseTime = time.Since(start).Seconds()
	if result.Answer != nil {
		rec.ResponseTime = result.Answer.Duration.Seconds()
	}
	logger.Debug("answered", "response_time", rec.ResponseTime)

	rec.Scores = e.score(ctx, logger, tc, rec.Response)
	if tc.InScope {
		rec.RAGCheck = e.checkRAG(ctx, logger, tc, rec.Response)
	}
	return rec
}

func (e *Evaluator) askJudge(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.JudgeTimeout)
	defer cancel()
	return e.judge.Generate(ctx, prompt)
}

func (e *Evaluator) score(ctx context.Context, logger *slog.Logger, tc TestCase, response string) *Scores {
	raw, err := e.askJudge(ctx, buildRubricPrompt(e.opts.Persona, e.opts.StyleHint, tc, response))
	if err != nil {
		logger.Warn("rubric scoring failed", "error", err)
		return nil
	}
	scores, err := ParseScores(raw)
	if err != nil {
		logger.Warn("rubric response unparseable", "error", err, "parse_error", isParseError(err))
		return nil
	}
	return scores
}

func (e *Evaluator) checkRAG(ctx context.Context, logger *slog.Logger, tc TestCase, response string) *RAGCheck {
	raw, err := e.askJudge(ctx, buildRAGCheckPrompt(tc, response))
	if err != nil {
		logger.Warn("RAG check failed", "error", err)
		return nil
	}
	check, err := ParseRAGCheck(raw)
	if err != nil {
		logger.Warn("RAG check response unparseable", "error", err, "parse_error", isParseError(err))
		return nil
	}
	return check
}

// Aggregate computes run metrics. Each per-metric average covers only records
// with scores; absent scores count as neither zero nor a test. The RAG success
// rate covers only attempted checks and is rounded to one decimal.
func Aggregate(records []Record) Metrics {
	m := Metrics{TotalTests: len(records)}

	var sums [5]float64
	var responseTime float64
	successes := 0

	for _, r := range records {
		responseTime += r.ResponseTime
		if r.Scores != nil {
			m.ScoredTests++
			sums[0] += float64(r.Scores.Accuracy)
			sums[1] += float64(r.Scores.Completeness)
			sums[2] += float64(r.Scores.TeachingStyle)
			sums[3] += float64(r.Scores.Clarity)
			sums[4] += float64(r.Scores.Engagement)
		}
		if r.RAGCheck != nil {
			m.RAGChecks++
			if r.RAGCheck.UsesLectureContext {
				successes++
			}
		}
	}

	if m.ScoredTests > 0 {
		n := float64(m.ScoredTests)
		m.AvgAccuracy = sums[0] / n
		m.AvgCompleteness = sums[1] / n
		m.AvgTeachingStyle = sums[2] / n
		m.AvgClarity = sums[3] / n
		m.AvgEngagement = sums[4] / n
		m.Overall = (m.AvgAccuracy + m.AvgCompleteness + m.AvgTeachingStyle + m.AvgClarity + m.AvgEngagement) / 5
	}
	if len(records) > 0 {
		m.AvgResponseTime = responseTime / float64(len(records))
	}
	if m.RAGChecks > 0 {
		m.RAGSuccessRate = math.Round(float64(successes)/float64(m.RAGChecks)*1000) / 10
	}
	return m
}
