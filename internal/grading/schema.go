package grading

import (
	"fmt"
	"sort"

	"student-grading/internal/models"
)

// Schema names the input and output columns and the status vocabulary for a run.
type Schema struct {
	Name string

	NameColumn   string
	IDColumn     string
	AgeColumn    string
	GradeColumns [3]string

	OutputHeader [4]string // id, age, average, status

	PassedLabel string
	FailedLabel string
}

var (
	// SchemaEN is the default: English headers and Passed/Failed.
	SchemaEN = Schema{
		Name:         "en",
		NameColumn:   "Name",
		IDColumn:     "ID",
		AgeColumn:    "Age",
		GradeColumns: [3]string{"Grade1", "Grade2", "Grade3"},
		OutputHeader: [4]string{"ID", "Age", "AveragePercent", "Status"},
		PassedLabel:  "Passed",
		FailedLabel:  "Failed",
	}

	// SchemaES matches the Spanish registrar export.
	SchemaES = Schema{
		Name:         "es",
		NameColumn:   "Nombre",
		IDColumn:     "Cédula",
		AgeColumn:    "Edad",
		GradeColumns: [3]string{"Nota1", "Nota2", "Nota3"},
		OutputHeader: [4]string{"Cédula", "Edad", "NotaPromedio", "Estado"},
		PassedLabel:  "Aprobado",
		FailedLabel:  "Reprobado",
	}

	schemas = map[string]Schema{
		SchemaEN.Name: SchemaEN,
		SchemaES.Name: SchemaES,
	}
)

// SchemaByName looks up a preset; the empty name selects SchemaEN.
func SchemaByName(name string) (Schema, error) {
	if name == "" {
		return SchemaEN, nil
	}
	s, ok := schemas[name]
	if !ok {
		return Schema{}, fmt.Errorf("unknown schema %q (known: %v)", name, SchemaNames())
	}
	return s, nil
}

func SchemaNames() []string {
	names := make([]string, 0, len(schemas))
	for n := range schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s Schema) Label(status models.Status) string {
	if status == models.StatusPassed {
		return s.PassedLabel
	}
	return s.FailedLabel
}

// Row renders one output row.
func (s Schema) Row(rec models.GradedRecord) []string {
	return []string{rec.ID, rec.Age, rec.AverageText(), s.Label(rec.Status)}
}

// columnIndex maps the schema's input columns to positions in header.
// The first occurrence of a duplicated name wins; a missing column is -1.
type columnIndex struct {
	name, id, age int
	grades        [3]int
}

func (s Schema) index(header []string) columnIndex {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}
	lookup := func(col string) int {
		if i, ok := pos[col]; ok {
			return i
		}
		return -1
	}
	idx := columnIndex{
		name: lookup(s.NameColumn),
		id:   lookup(s.IDColumn),
		age:  lookup(s.AgeColumn),
	}
	for i, col := range s.GradeColumns {
		idx.grades[i] = lookup(col)
	}
	return idx
}

func (c columnIndex) missing(s Schema) []string {
	var out []string
	check := func(i int, col string) {
		if i < 0 {
			out = append(out, col)
		}
	}
	check(c.name, s.NameColumn)
	check(c.id, s.IDColumn)
	check(c.age, s.AgeColumn)
	for i, col := range s.GradeColumns {
		check(c.grades[i], col)
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// record builds a StudentRecord from a positional row.
func (c columnIndex) record(line int, row []string) models.StudentRecord {
	return NewStudentRecord(line,
		cell(row, c.name),
		cell(row, c.id),
		cell(row, c.age),
		[3]string{cell(row, c.grades[0]), cell(row, c.grades[1]), cell(row, c.grades[2])},
	)
}
