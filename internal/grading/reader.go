package grading

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"student-grading/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset is what an engine reads from one input file.
type Dataset struct {
	Records        []models.StudentRecord
	MissingColumns []string // schema columns absent from the header; their cells read as ""
}

// readRows returns the header and data rows of a CSV document together with
// the source line of each data row. An empty document yields a nil header.
func readRows(r io.Reader) (header []string, rows [][]string, lines []int, err error) {
	br := bufio.NewReader(r)
	if prefix, _ := br.Peek(len(utf8BOM)); bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse csv: %w", err)
		}
		if header == nil {
			header = make([]string, len(row))
			for i, h := range row {
				header[i] = strings.TrimSpace(h)
			}
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return header, rows, lines, nil
}

// ReadRecords parses a CSV document with a header row into student records.
// Short rows read missing cells as empty and extra cells are ignored.
func ReadRecords(r io.Reader, schema Schema) (*Dataset, error) {
	header, rows, lines, err := readRows(r)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return &Dataset{}, nil
	}

	idx := schema.index(header)
	ds := &Dataset{
		Records:        make([]models.StudentRecord, len(rows)),
		MissingColumns: idx.missing(schema),
	}
	for i, row := range rows {
		ds.Records[i] = idx.record(lines[i], row)
	}
	return ds, nil
}
