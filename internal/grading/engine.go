package grading

import (
	"fmt"
	"io"

	"student-grading/internal/models"
)

// Engine adapts a tabular library to the pipeline. Engines only move cells
// in and out; grading always happens in Grader.
type Engine interface {
	Name() string
	Read(r io.Reader, schema Schema) (*Dataset, error)
	Rows(schema Schema, recs []models.GradedRecord) ([][]string, error)
}

const (
	EngineCSV       = "csv"
	EngineDataFrame = "dataframe"
)

// EngineByName returns the engine registered under name; "" selects csv.
func EngineByName(name string) (Engine, error) {
	switch name {
	case "", EngineCSV:
		return CSVEngine{}, nil
	case EngineDataFrame:
		return DataFrameEngine{}, nil
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

// CSVEngine reads and renders rows with encoding/csv directly.
type CSVEngine struct{}

func (CSVEngine) Name() string { return EngineCSV }

func (CSVEngine) Read(r io.Reader, schema Schema) (*Dataset, error) {
	return ReadRecords(r, schema)
}

func (CSVEngine) Rows(schema Schema, recs []models.GradedRecord) ([][]string, error) {
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, schema.OutputHeader[:])
	for _, rec := range recs {
		rows = append(rows, schema.Row(rec))
	}
	return rows, nil
}

// Write renders recs with e and writes them as CSV.
func Write(w io.Writer, e Engine, schema Schema, recs []models.GradedRecord, crlf bool) error {
	rows, err := e.Rows(schema, recs)
	if err != nil {
		return err
	}
	return WriteRows(w, rows, crlf)
}
