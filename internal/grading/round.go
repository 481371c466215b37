package grading

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"student-grading/internal/models"

	"github.com/shopspring/decimal"
)

var three = decimal.NewFromInt(3)

const (
	// maxGradeMagnitude is the float64 overflow point: values of 10^309 and
	// above are infinite and default to 0.
	maxGradeMagnitude = 309
	// maxGradeScale caps the fractional digits kept. Smaller values read as 0.
	maxGradeScale = 32
)

// ParseGrade coerces a raw cell to a grade. Empty, non-numeric, NaN and
// infinite values become 0 and ok is false.
func ParseGrade(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return boundGrade(d)
}

// boundGrade keeps the exponent within float64 range before any arithmetic,
// since aligning a huge exponent costs digits proportional to its size.
func boundGrade(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsZero() {
		return decimal.Zero, true
	}
	exp := int64(d.Exponent())
	magnitude := exp + int64(len(new(big.Int).Abs(d.Coefficient()).String()))
	switch {
	case magnitude > maxGradeMagnitude:
		return decimal.Zero, false
	case magnitude < -maxGradeScale:
		return decimal.Zero, true
	case exp < -maxGradeScale:
		return d.Round(maxGradeScale), true
	}
	return d, true
}

// ParseGradeValue is ParseGrade for JSON-decoded values.
func ParseGradeValue(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case json.Number:
		return ParseGrade(val.String())
	case string:
		return ParseGrade(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return ParseGrade(strconv.FormatFloat(val, 'f', -1, 64))
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	}
	return decimal.Zero, false
}

// NewStudentRecord builds a record from raw cells, substituting 0 for bad grades.
func NewStudentRecord(line int, name, id, age string, grades [3]string) models.StudentRecord {
	rec := models.StudentRecord{Line: line, Name: name, ID: id, Age: age}
	for i, raw := range grades {
		g, ok := ParseGrade(raw)
		rec.Grades[i] = g
		if !ok {
			rec.DefaultedGrades++
		}
	}
	return rec
}

// Average is (g1+g2+g3)/3 rounded half away from zero to two places.
// DivRound rounds on the exact remainder, so 212.985/3 lands on 71.00 rather
// than drifting below the midpoint.
func Average(grades [3]decimal.Decimal) decimal.Decimal {
	sum := grades[0].Add(grades[1]).Add(grades[2])
	return sum.DivRound(three, 2)
}
