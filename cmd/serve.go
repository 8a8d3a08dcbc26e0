package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/lectern/internal/orchestrator"
	"github.com/Yates-Labs/lectern/internal/server"
)

var bindAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat and evaluation API over HTTP",
	Long: `Start the HTTP API.

Endpoints:
  POST /chat             {"question": "...", "voice": false}
  GET  /audio/{name}     synthesized answer audio
  POST /run_evaluation   run the evaluation battery, returns metrics
  GET  /healthz          liveness

Examples:
  lectern serve
  lectern serve --bind 0.0.0.0:5000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&bindAddr, "bind", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	if bindAddr != "" {
		cfg.Server.Bind = bindAddr
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

	srv, err := server.New(components.Pipeline, server.Options{
		Bind:           cfg.Server.Bind,
		AudioDir:       cfg.Paths.AudioDir,
		ResultsDir:     cfg.Paths.ResultsDir,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		Evaluator:      evaluator,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("✓ Listening on http://" + cfg.Server.Bind))
	return srv.Run(ctx)
}
