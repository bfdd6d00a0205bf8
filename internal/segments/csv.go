package segments

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ReadFile reads one segment table from a CSV file.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		var re *RowError
		if errors.As(err, &re) {
			re.File = path
			return nil, re
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// Read parses a segment table. Known columns are matched by name, case-insensitively
// and under their long-form aliases; a leading unnamed index column is skipped and
// any other column is carried in Segment.Extra. An empty canopy rate reads as 0.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty table")
	}
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(header))
	t := &Table{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if i == 0 && (h == "" || strings.HasPrefix(h, "Unnamed:")) {
			continue
		}
		name := h
		if canon, ok := aliases[strings.ToLower(h)]; ok {
			name = canon
		}
		cols[i] = name
		t.Columns = append(t.Columns, name)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}

		seg := NewSegment()
		seg.Line = line
		for i, v := range rec {
			if i >= len(cols) || cols[i] == "" {
				continue
			}
			if err := seg.set(cols[i], strings.TrimSpace(v)); err != nil {
				return nil, &RowError{Line: line, Column: cols[i], Err: err}
			}
		}
		if math.IsNaN(seg.CanopyRate) {
			seg.CanopyRate = 0
		}
		t.Rows = append(t.Rows, seg)
	}
	return t, nil
}

func (s *Segment) set(col, v string) error {
	var err error
	switch col {
	case ColLatitude:
		s.Latitude, err = parseFloat(v)
	case ColLongitude:
		s.Longitude, err = parseFloat(v)
	case ColDate:
		s.Date = strings.TrimSuffix(v, ".0")
	case ColGTX:
		s.GTX = v
	case ColSignalRate:
		s.SignalRate, err = parseFloat(v)
	case ColGroundRate:
		s.GroundRate, err = parseFloat(v)
	case ColCanopyRate:
		s.CanopyRate, err = parseFloat(v)
	case ColStrong:
		s.Strong, err = parseBool(v)
	case ColNight:
		s.Night, err = parseBool(v)
	case ColMSW:
		s.MSW, err = parseCode(v)
	case ColSceneType:
		s.SceneType, err = parseCode(v)
	case ColLandCover:
		s.LandCover, err = parseCode(v)
	default:
		if s.Extra == nil {
			s.Extra = make(map[string]string)
		}
		s.Extra[col] = v
	}
	return err
}

func parseFloat(v string) (float64, error) {
	if v == "" || strings.EqualFold(v, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(v, 64)
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "1.0":
		return true, nil
	case "false", "0", "0.0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func parseCode(v string) (int, error) {
	if v == "" || strings.EqualFold(v, "nan") {
		return Unknown, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return Unknown, err
	}
	if f != math.Trunc(f) {
		return Unknown, fmt.Errorf("code %q is not an integer", v)
	}
	return int(f), nil
}

// ConcatDir reads every *.csv file in dir, in name order, into one table. Columns
// are the union of all headers in first-seen order.
func ConcatDir(dir string) (*Table, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files in %s", dir)
	}
	sort.Strings(files)

	out := &Table{}
	for _, f := range files {
		t, err := ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, c := range t.Columns {
			out.AddColumn(c)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

// WriteFile writes t as CSV, creating parent directories as needed.
func WriteFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, t); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Write emits t's columns in order. Missing values are written as empty cells.
func Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, s := range t.Rows {
		for i, c := range t.Columns {
			rec[i] = s.get(c)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Segment) get(col string) string {
	switch col {
	case ColLatitude:
		return formatFloat(s.Latitude)
	case ColLongitude:
		return formatFloat(s.Longitude)
	case ColDate:
		return s.Date
	case ColGTX:
		return s.GTX
	case ColSignalRate:
		return formatFloat(s.SignalRate)
	case ColGroundRate:
		return formatFloat(s.GroundRate)
	case ColCanopyRate:
		return formatFloat(s.CanopyRate)
	case ColStrong:
		return formatBool(s.Strong)
	case ColNight:
		return formatBool(s.Night)
	case ColMSW:
		return formatCode(s.MSW)
	case ColSceneType:
		return formatCode(s.SceneType)
	case ColLandCover:
		return formatCode(s.LandCover)
	}
	return s.Extra[col]
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatCode(v int) string {
	if v == Unknown {
		return ""
	}
	return strconv.Itoa(v)
}
