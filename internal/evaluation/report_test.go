package evaluation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *Report {
	return &Report{
		RunID:          "run-1",
		BatteryVersion: BatteryVersion,
		Timestamp:      time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local),
		Tests:          []Record{{Index: 0, Question: "DBMS mein normalization kya hai?", Scores: &Scores{Accuracy: 8, Completeness: 8, TeachingStyle: 8, Clarity: 8, Engagement: 8}}},
		Metrics:        Metrics{TotalTests: 1},
		TotalTests:     1,
	}
}

func TestSaveReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	report := testReport()

	path, err := SaveReport(dir, report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "evaluation_results_20240309_140507.json"), path)

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, loaded.RunID)
	assert.Equal(t, report.Tests[0].Question, loaded.Tests[0].Question)
	assert.Equal(t, 8, loaded.Tests[0].Scores.Accuracy)
}

func TestSaveReport_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	first, err := SaveReport(dir, testReport())
	require.NoError(t, err)
	before, err := os.ReadFile(first)
	require.NoError(t, err)

	second := testReport()
	second.RunID = "run-2"
	path2, err := SaveReport(dir, second)
	require.NoError(t, err)
	path3, err := SaveReport(dir, second)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "evaluation_results_20240309_140507_1.json"), path2)
	assert.Equal(t, filepath.Join(dir, "evaluation_results_20240309_140507_2.json"), path3)

	after, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSaveReport_Nil(t *testing.T) {
	_, err := SaveReport(t.TempDir(), nil)
	assert.Error(t, err)
}
