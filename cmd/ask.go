package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/orchestrator"
)

var (
	topK    int
	noRAG   bool
	verbose bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and get an answer in the lecturer's style",
	Long: `Ask a question using RAG (Retrieval-Augmented Generation).

This command:
1. Embeds the question and retrieves the most similar transcript chunks
2. Assembles a prompt from the style profile, the chunks and the question
3. Generates an answer in the lecturer's teaching style

Required environment variables:
  OPENAI_API_KEY     - API key for the answer model

Examples:
  lectern ask "DBMS mein normalization kya hota hai?"
  lectern ask "Explain deadlock in OS" --topk 5 --verbose
  lectern ask "What is polymorphism?" --no-rag`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVar(&topK, "topk", 0, "Number of transcript chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&noRAG, "no-rag", false, "Answer in style only, without retrieving lecture context")
	askCmd.Flags().BoolVar(&verbose, "verbose", false, "Show the retrieved context")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return narrative.ErrEmptyQuestion
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	if topK > 0 {
		cfg.Retrieval.TopK = topK
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Question:"))
	fmt.Println(questionStyle.Render(question))
	fmt.Println()

	if verbose {
		fmt.Println(contextStyle.Render("→ Initializing RAG pipeline..."))
	}
	components, err := orchestrator.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create RAG pipeline: %w", err)
	}
	defer components.Close()

	var result *orchestrator.QueryResult
	if noRAG {
		result, err = components.Pipeline.AnswerWithoutContext(ctx, question)
	} else {
		result, err = components.Pipeline.Answer(ctx, question)
	}
	if err != nil {
		if errors.Is(err, narrative.ErrUpstream) {
			return fmt.Errorf("answer model unavailable (%s): %w", narrative.UpstreamKindOf(err), err)
		}
		return fmt.Errorf("failed to generate answer: %w", err)
	}

	if verbose {
		printContext(result)
	}

	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println()
	fmt.Println(answerStyle.Render(strings.TrimSpace(result.Text())))
	fmt.Println()
	return nil
}

func printContext(result *orchestrator.QueryResult) {
	if len(result.Chunks) == 0 {
		fmt.Println(contextStyle.Render("No lecture context used"))
		fmt.Println()
		return
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Retrieved %d chunks", len(result.Chunks))))
	rows := make([][]string, 0, len(result.Chunks))
	for i, chunk := range result.Chunks {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			chunk.SourceFile,
			fmt.Sprintf("%s - %s", formatSeconds(chunk.StartTime), formatSeconds(chunk.EndTime)),
			fmt.Sprintf("%.3f", chunk.Score),
			narrative.TruncateRunes(strings.TrimSpace(chunk.Text), 60),
		})
	}
	fmt.Println(renderTable(
		[]string{"#", "SOURCE", "SPAN", "SCORE", "TEXT"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Println()
}
