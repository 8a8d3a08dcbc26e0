// Package evaluation runs a fixed battery of questions through the answer
// pipeline, scores each answer with a judge model and persists the report.
package evaluation

import "time"

// TestCase is one question of the battery.
type TestCase struct {
	Question       string `json:"question"`
	ExpectedTopics string `json:"expected_topics"`
	Category       string `json:"category"`
	InScope        bool   `json:"in_scope"`
}

// Battery is a versioned, ordered set of test cases.
type Battery struct {
	Version string     `json:"version"`
	Cases   []TestCase `json:"cases"`
}

// Scores are the five rubric scores, each in [1,10].
type Scores struct {
	Accuracy      int `json:"accuracy"`
	Completeness  int `json:"completeness"`
	TeachingStyle int `json:"teaching_style"`
	Clarity       int `json:"clarity"`
	Engagement    int `json:"engagement"`
}

// RAGCheck is the judge's verdict on whether an answer drew on lecture context.
type RAGCheck struct {
	UsesLectureContext bool `json:"uses_lecture_context"`
	Confidence         int  `json:"confidence"`
}

// Record is the outcome of one test case. Scores and RAGCheck are nil when the
// judge's response could not be parsed or the check was not attempted.
type Record struct {
	Index        int       `json:"index"`
	Question     string    `json:"question"`
	Category     string    `json:"category"`
	InScope      bool      `json:"in_scope"`
	Response     string    `json:"response"`
	ResponseTime float64   `json:"response_time"`
	Scores       *Scores   `json:"scores"`
	RAGCheck     *RAGCheck `json:"rag_check,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
}

// RAGUsed reports the RAG-use verdict, or nil when unknown.
func (r Record) RAGUsed() *bool {
	if r.RAGCheck == nil {
		return nil
	}
	used := r.RAGCheck.UsesLectureContext
	return &used
}

// Metrics are the aggregated results of a run.
type Metrics struct {
	AvgAccuracy      float64 `json:"avg_accuracy"`
	AvgCompleteness  float64 `json:"avg_completeness"`
	AvgTeachingStyle float64 `json:"avg_teaching_style"`
	AvgClarity       float64 `json:"avg_clarity"`
	AvgEngagement    float64 `json:"avg_engagement"`
	Overall          float64 `json:"overall"`
	AvgResponseTime  float64 `json:"avg_response_time"`
	RAGSuccessRate   float64 `json:"rag_success_rate"`
	RAGChecks        int     `json:"rag_checks"`
	ScoredTests      int     `json:"scored_tests"`
	TotalTests       int     `json:"total_tests"`
}

// Report is a completed evaluation run. It is never mutated once returned.
type Report struct {
	RunID          string    `json:"run_id"`
	BatteryVersion string    `json:"battery_version"`
	Timestamp      time.Time `json:"timestamp"`
	Tests          []Record  `json:"tests"`
	Metrics        Metrics   `json:"metrics"`
	TotalTests     int       `json:"total_tests"`
}
