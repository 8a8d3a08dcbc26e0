package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/orchestrator"
	"github.com/Yates-Labs/lectern/internal/rag"
)

var (
	indexMode    string
	exportFile   string
	exportFormat string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk, embed and index the lecture transcripts",
	Long: `Build the knowledge base from the transcript corpus.

The combined transcript document is used when present; otherwise every
per-lecture transcript in the transcripts directory is loaded. Transcripts
are split into overlapping chunks, embedded, and published to the index.

Build modes:
  replace  - the new index replaces the previous one (default)
  append   - new chunks are added after the existing ones

Examples:
  lectern index
  lectern index --mode append
  lectern index --export chunks.jsonl --export-format jsonl`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexMode, "mode", "", "Build mode: replace or append (default from config)")
	indexCmd.Flags().StringVar(&exportFile, "export", "", "Also write the chunks to this file")
	indexCmd.Flags().StringVar(&exportFormat, "export-format", string(rag.FormatJSON), "Chunk export format: json or jsonl")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	modeValue := cfg.Index.Mode
	if indexMode != "" {
		modeValue = indexMode
	}
	mode, err := rag.ParseBuildMode(modeValue)
	if err != nil {
		return err
	}

	docs, err := orchestrator.LoadCorpus(cfg.Paths.TranscriptsDir, cfg.Paths.CombinedFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load transcripts: %w", err)
	}
	fmt.Println(outputCorpusTable(docs))

	components, err := orchestrator.OpenIndex(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer components.Close()

	req := orchestrator.BuildRequest{
		Transcripts: docs,
		Chunking:    orchestrator.ChunkOptions(cfg.Chunking),
		Embedder:    components.Embedder,
		Store:       components.Store,
		Mode:        mode,
		BatchSize:   cfg.Embedding.BatchSize,
		Logger:      logger,
	}

	if exportFile != "" {
		file, err := os.Create(exportFile)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer file.Close()
		req.Export = file
		req.ExportFormat = exportFormat
	}

	fmt.Println(contextStyle.Render(fmt.Sprintf("→ Building index (%s mode)...", mode)))
	stats, err := orchestrator.BuildKnowledgeBase(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Indexed %d chunks from %d lectures (%d in index, %s)",
		stats.Inserted, stats.Documents, stats.Total, stats.Duration.Round(time.Millisecond))))
	if exportFile != "" {
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Exported %d chunks to %s", stats.Chunks, exportFile)))
	}
	return nil
}

func outputCorpusTable(docs []transcript.Transcript) string {
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		span := "-"
		if n := len(doc.Segments); n > 0 {
			span = formatSeconds(doc.Segments[n-1].End - doc.Segments[0].Start)
		}
		rows = append(rows, []string{doc.File, strconv.Itoa(len(doc.Segments)), span})
	}
	return renderTable(
		[]string{"LECTURE", "SEGMENTS", "DURATION"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	)
}

func formatSeconds(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}
