package grading

import (
	"fmt"
	"io"

	"student-grading/internal/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DataFrameEngine loads the input into a gota DataFrame and builds the output
// as one. All columns stay strings so IDs and ages round-trip untouched.
type DataFrameEngine struct{}

func (DataFrameEngine) Name() string { return EngineDataFrame }

func (DataFrameEngine) Read(r io.Reader, schema Schema) (*Dataset, error) {
	header, rows, lines, err := readRows(r)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return &Dataset{}, nil
	}

	idx := schema.index(header)
	ds := &Dataset{MissingColumns: idx.missing(schema)}
	if len(rows) == 0 {
		// gota refuses a frame without data rows
		return ds, nil
	}

	// Columns are addressed by position; gota renames duplicate headers.
	names := make([]string, len(header))
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i)
	}
	records := make([][]string, 0, len(rows)+1)
	records = append(records, names)
	for _, row := range rows {
		records = append(records, fitRow(row, len(header)))
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("load dataframe: %w", df.Err)
	}

	column := func(i int) []string {
		if i < 0 {
			return nil
		}
		return df.Col(names[i]).Records()
	}
	nameCol, idCol, ageCol := column(idx.name), column(idx.id), column(idx.age)
	var gradeCols [3][]string
	for i, gi := range idx.grades {
		gradeCols[i] = column(gi)
	}

	ds.Records = make([]models.StudentRecord, df.Nrow())
	for i := range ds.Records {
		ds.Records[i] = NewStudentRecord(lines[i],
			cell(nameCol, i),
			cell(idCol, i),
			cell(ageCol, i),
			[3]string{cell(gradeCols[0], i), cell(gradeCols[1], i), cell(gradeCols[2], i)},
		)
	}
	return ds, nil
}

func (DataFrameEngine) Rows(schema Schema, recs []models.GradedRecord) ([][]string, error) {
	if len(recs) == 0 {
		return [][]string{schema.OutputHeader[:]}, nil
	}

	ids := make([]string, len(recs))
	ages := make([]string, len(recs))
	avgs := make([]string, len(recs))
	labels := make([]string, len(recs))
	for i, rec := range recs {
		ids[i], ages[i], avgs[i], labels[i] = rec.ID, rec.Age, rec.AverageText(), schema.Label(rec.Status)
	}

	h := schema.OutputHeader
	df := dataframe.New(
		series.New(ids, series.String, h[0]),
		series.New(ages, series.String, h[1]),
		series.New(avgs, series.String, h[2]),
		series.New(labels, series.String, h[3]),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("build dataframe: %w", df.Err)
	}
	return df.Records(), nil
}

// fitRow pads or truncates row to width cells.
func fitRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
