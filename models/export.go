// Package models defines data structures for the exporter.
package models

import "time"

// Record is one entity of a remote collection as decoded from the API.
type Record map[string]any

// Row is the flat list of fields projected from a Record.
type Row []string

// Outcome describes how an export run ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// ExportSummary holds the overall result of an export run
type ExportSummary struct {
	TotalRows    int
	PagesFetched int
	Skipped      int
	Outcome      Outcome
	Err          error
	StartTime    time.Time
	EndTime      time.Time
	OutputFile   string
}

// Duration returns the wall time of the run.
func (s *ExportSummary) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Reason returns the failure message, or an empty string when the run did not fail.
func (s *ExportSummary) Reason() string {
	if s.Outcome != OutcomeFailed || s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
