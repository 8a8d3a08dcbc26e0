// Package server exposes the question-answering pipeline and the evaluator
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Yates-Labs/lectern/internal/evaluation"
	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/orchestrator"
)

// FallbackResponse is returned in place of an answer when the model upstream fails.
const FallbackResponse = "Sorry, I couldn't come up with an answer right now. Please try asking again in a moment."

const (
	maxRequestBody = 1 << 20

	// Raw errors stay in the log; they can carry upstream URLs and payloads.
	internalErrorMessage = "internal server error"
)

var (
	ErrInvalidServer = errors.New("invalid server configuration")

	audioNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// Answerer answers a single question. *orchestrator.Pipeline satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (*orchestrator.QueryResult, error)
}

// EvaluationRunner runs a test battery. *evaluation.Evaluator satisfies it.
type EvaluationRunner interface {
	Run(ctx context.Context, battery evaluation.Battery) (*evaluation.Report, error)
}

// Synthesizer renders answer text to an audio file at path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, path string) error
}

// Options configures a Server.
type Options struct {
	Bind           string
	AudioDir       string
	ResultsDir     string
	RequestTimeout time.Duration

	// Evaluator and Synthesizer are optional
	Evaluator   EvaluationRunner
	Battery     evaluation.Battery
	Synthesizer Synthesizer

	Logger *slog.Logger
}

// Server is the HTTP boundary.
type Server struct {
	answerer Answerer
	opts     Options
	logger   *slog.Logger
	mux      *http.ServeMux

	evalMu sync.Mutex
}

type chatRequest struct {
	Question string `json:"question"`
	Voice    bool   `json:"voice"`
}

type chatResponse struct {
	Response  string  `json:"response"`
	AudioURL  *string `json:"audio_url"`
	ErrorKind string  `json:"error_kind,omitempty"`
}

// New builds a server around answerer.
func New(answerer Answerer, opts Options) (*Server, error) {
	if answerer == nil {
		return nil, fmt.Errorf("%w: answerer is required", ErrInvalidServer)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	if len(opts.Battery.Cases) == 0 {
		opts.Battery = evaluation.DefaultBattery()
	}

	s := &Server{
		answerer: answerer,
		opts:     opts,
		logger:   logging.OrDefault(opts.Logger).With("component", "server"),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /audio/{name}", s.handleAudio)
	s.mux.HandleFunc("POST /run_evaluation", s.handleRunEvaluation)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s, nil
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on the configured bind address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return fmt.Errorf("%w: bind address is required", ErrInvalidServer)
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	// WriteTimeout stays unset: /run_evaluation replies only after the whole battery.
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("server listening", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, "No question provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	result, err := s.answerer.Answer(ctx, question)
	switch {
	case err == nil:
	case errors.Is(err, narrative.ErrEmptyQuestion):
		s.writeError(w, http.StatusBadRequest, "No question provided")
		return
	case errors.Is(err, narrative.ErrUpstream):
		kind := narrative.UpstreamKindOf(err)
		s.logger.Warn("answer unavailable, sending fallback", "kind", kind, "error", err)
		s.writeJSON(w, http.StatusOK, chatResponse{Response: FallbackResponse, ErrorKind: string(kind)})
		return
	default:
		s.logger.Error("chat request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	resp := chatResponse{Response: result.Text()}
	if req.Voice && s.opts.Synthesizer != nil && result != nil {
		if url, ok := s.synthesize(ctx, result.Text()); ok {
			result.AudioRef = url
			resp.AudioURL = &url
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// synthesize renders text into the audio directory. Failures are logged and
// reported as ok == false; they never fail the chat request.
func (s *Server) synthesize(ctx context.Context, text string) (string, bool) {
	name := fmt.Sprintf("response_%s.mp3", uuid.NewString()[:8])
	if err := os.MkdirAll(s.opts.AudioDir, 0o755); err != nil {
		s.logger.Warn("voice generation failed", "error", err)
		return "", false
	}
	if err := s.opts.Synthesizer.Synthesize(ctx, text, filepath.Join(s.opts.AudioDir, name)); err != nil {
		s.logger.Warn("voice generation failed", "error", err)
		return "", false
	}
	return "/audio/" + name, true
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !validAudioName(name) || s.opts.AudioDir == "" {
		s.writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	f, err := os.Open(filepath.Join(s.opts.AudioDir, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("audio open failed", "name", name, "error", err)
		}
		s.writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func validAudioName(name string) bool {
	return audioNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

func (s *Server) handleRunEvaluation(w http.ResponseWriter, r *http.Request) {
	if s.opts.Evaluator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation is not configured")
		return
	}
	if !s.evalMu.TryLock() {
		s.writeError(w, http.StatusConflict, "an evaluation is already running")
		return
	}
	defer s.evalMu.Unlock()

	report, err := s.opts.Evaluator.Run(r.Context(), s.opts.Battery)
	if err != nil {
		s.logger.Error("evaluation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	if s.opts.ResultsDir != "" {
		path, err := evaluation.SaveReport(s.opts.ResultsDir, report)
		if err != nil {
			s.logger.Error("failed to save evaluation report", "error", err)
		} else {
			s.logger.Info("evaluation report saved", "path", path, "run_id", report.RunID)
		}
	}
	s.writeJSON(w, http.StatusOK, report.Metrics)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
