// internal/models/student.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPassed Status = "Passed"
	StatusFailed Status = "Failed"
)

// StudentRecord is one input row. ID and Age are kept exactly as read.
type StudentRecord struct {
	Line            int                `json:"line"`
	Name            string             `json:"name"`
	ID              string             `json:"id"`
	Age             string             `json:"age"`
	Grades          [3]decimal.Decimal `json:"grades"`
	DefaultedGrades int                `json:"defaultedGrades"`
}

type GradedRecord struct {
	ID      string          `json:"id"`
	Age     string          `json:"age"`
	Average decimal.Decimal `json:"averagePercent"`
	Status  Status          `json:"status"`
}

// AverageText renders the average with exactly two decimals.
func (r GradedRecord) AverageText() string {
	return r.Average.StringFixed(2)
}

type RunSummary struct {
	RunID           string    `json:"runId"`
	InputPath       string    `json:"inputPath,omitempty"`
	OutputPath      string    `json:"outputPath,omitempty"`
	Engine          string    `json:"engine"`
	Schema          string    `json:"schema"`
	Rows            int       `json:"rows"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	DefaultedGrades int       `json:"defaultedGrades"`
	PassThreshold   float64   `json:"passThreshold"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// GradingRun is a finished run: the summary plus every graded row in input order.
type GradingRun struct {
	Summary RunSummary     `json:"summary"`
	Records []GradedRecord `json:"records"`
}
