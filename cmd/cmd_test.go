package cmd

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Yates-Labs/lectern/internal/evaluation"
	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0s"},
		{9.6, "10s"},
		{90.4, "1m30s"},
		{3725, "1h2m5s"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.seconds); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("expected empty output for no headers, got %q", got)
	}

	out := renderTable([]string{"A", "B"}, [][]string{{"one"}, {"two", "2"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"A", "B", "one", "two", "2"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestOutputCorpusTable(t *testing.T) {
	docs := []transcript.Transcript{
		{File: "lec1.wav", Segments: []transcript.Segment{{Start: 0, End: 4}, {Start: 4, End: 65}}},
		{File: "empty.wav"},
	}
	out := outputCorpusTable(docs)
	for _, want := range []string{"lec1.wav", "1m5s", "empty.wav"} {
		if !strings.Contains(out, want) {
			t.Errorf("corpus table missing %q:\n%s", want, out)
		}
	}
}

func TestOutputRecordTable(t *testing.T) {
	records := []evaluation.Record{
		{
			Index:        0,
			Question:     "DBMS mein normalization kya hota hai?",
			Category:     "DBMS",
			ResponseTime: 1.5,
			Scores:       &evaluation.Scores{Accuracy: 9, Completeness: 8, TeachingStyle: 7, Clarity: 6, Engagement: 5},
			RAGCheck:     &evaluation.RAGCheck{UsesLectureContext: true, Confidence: 8},
		},
		{Index: 1, Question: "Explain deadlock", Category: "OS", Error: "deadline exceeded", ErrorKind: "timeout"},
	}
	out := outputRecordTable(records)
	for _, want := range []string{"1.5s", "yes", "error: timeout", "DBMS", "OS"} {
		if !strings.Contains(out, want) {
			t.Errorf("record table missing %q:\n%s", want, out)
		}
	}
}

func TestEvalShow(t *testing.T) {
	report := &evaluation.Report{
		RunID:          "run-42",
		BatteryVersion: evaluation.BatteryVersion,
		Timestamp:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Tests: []evaluation.Record{
			{Index: 0, Question: "Explain deadlock", Category: "OS", ResponseTime: 2,
				Scores: &evaluation.Scores{Accuracy: 8, Completeness: 8, TeachingStyle: 8, Clarity: 8, Engagement: 8}},
		},
		Metrics: evaluation.Metrics{Overall: 8, ScoredTests: 1, TotalTests: 1},
	}
	path, err := evaluation.SaveReport(t.TempDir(), report)
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	loaded, err := evaluation.LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport failed: %v", err)
	}
	out := formatReport(loaded)
	for _, want := range []string{"run-42", "Explain deadlock", "8.00", "1 / 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}

	defer func(prev string) { evalShow = prev }(evalShow)
	evalShow = path
	if err := runEval(evalCmd, nil); err != nil {
		t.Errorf("eval --show failed: %v", err)
	}
	evalShow = filepath.Join(t.TempDir(), "missing.json")
	if err := runEval(evalCmd, nil); err == nil {
		t.Error("expected error for a missing report")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"index": false, "ask": false, "eval": false, "style": false, "serve": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
