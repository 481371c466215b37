package grading

import (
	"student-grading/internal/models"

	"github.com/shopspring/decimal"
)

// Grader is the single place pass/fail is decided. Every engine goes through it.
type Grader struct {
	threshold decimal.Decimal
}

func NewGrader(threshold float64) *Grader {
	return &Grader{threshold: decimal.NewFromFloat(threshold)}
}

func (g *Grader) Threshold() decimal.Decimal {
	return g.threshold
}

// Classify compares the already rounded average; the threshold is inclusive.
func (g *Grader) Classify(average decimal.Decimal) models.Status {
	if average.GreaterThanOrEqual(g.threshold) {
		return models.StatusPassed
	}
	return models.StatusFailed
}

func (g *Grader) Grade(rec models.StudentRecord) models.GradedRecord {
	avg := Average(rec.Grades)
	return models.GradedRecord{
		ID:      rec.ID,
		Age:     rec.Age,
		Average: avg,
		Status:  g.Classify(avg),
	}
}

// GradeAll grades every record, keeping input order and length.
func (g *Grader) GradeAll(recs []models.StudentRecord) []models.GradedRecord {
	out := make([]models.GradedRecord, len(recs))
	for i, rec := range recs {
		out[i] = g.Grade(rec)
	}
	return out
}

// Tally counts statuses and defaulted grade cells for a run summary.
func Tally(recs []models.StudentRecord, graded []models.GradedRecord) (passed, failed, defaulted int) {
	for _, r := range graded {
		if r.Status == models.StatusPassed {
			passed++
		} else {
			failed++
		}
	}
	for _, r := range recs {
		defaulted += r.DefaultedGrades
	}
	return passed, failed, defaulted
}
