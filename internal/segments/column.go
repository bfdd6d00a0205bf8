package segments

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// ReadColumn returns the finite values of one numeric column of any CSV table,
// such as a segment table or a fitted rate table. The column is matched by name
// or by alias. Empty and non-finite cells are skipped.
func ReadColumn(path, column string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	want := canonical(column)
	idx := -1
	for i, h := range header {
		if canonical(strings.TrimPrefix(h, "\ufeff")) == want {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s has no column %q", path, column)
	}

	var out []float64
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &RowError{File: path, Line: line, Err: err}
		}
		if idx >= len(rec) {
			continue
		}
		v, err := parseFloat(strings.TrimSpace(rec[idx]))
		if err != nil {
			return nil, &RowError{File: path, Line: line, Column: column, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func canonical(name string) string {
	name = strings.TrimSpace(name)
	if c, ok := aliases[strings.ToLower(name)]; ok {
		return c
	}
	return name
}
