package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/orchestrator"
	"github.com/Yates-Labs/lectern/internal/style"
)

var showStyle bool

var styleCmd = &cobra.Command{
	Use:   "style",
	Short: "Extract the lecturer's teaching style profile",
	Long: `Analyze the transcript corpus with the answer model and write the
teaching style profile used to shape every answer.

Examples:
  lectern style
  lectern style --show`,
	Args: cobra.NoArgs,
	RunE: runStyle,
}

func init() {
	rootCmd.AddCommand(styleCmd)
	styleCmd.Flags().BoolVar(&showStyle, "show", false, "Print the extracted analysis")
}

func runStyle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	docs, err := orchestrator.LoadCorpus(cfg.Paths.TranscriptsDir, cfg.Paths.CombinedFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load transcripts: %w", err)
	}

	llm, err := narrative.NewOpenAILLM(orchestrator.LLMConfig(cfg.LLM))
	if err != nil {
		return fmt.Errorf("failed to create LLM: %w", err)
	}

	opts := style.DefaultOptions()
	opts.Persona = cfg.Prompt.Persona
	opts.Logger = logger

	fmt.Println(contextStyle.Render(fmt.Sprintf("→ Analyzing teaching style across %d lectures...", len(docs))))
	profile, err := style.Analyze(ctx, llm, docs, opts)
	if err != nil {
		return err
	}
	if err := style.Save(cfg.Paths.StyleFile, profile); err != nil {
		return fmt.Errorf("failed to save style profile: %w", err)
	}

	if showStyle {
		fmt.Println()
		fmt.Println(headerStyle.Render("Teaching style:"))
		fmt.Println(answerStyle.Render(profile.Analysis))
		fmt.Println()
	}
	fmt.Println(successStyle.Render("✓ Style profile saved to " + cfg.Paths.StyleFile))
	return nil
}
