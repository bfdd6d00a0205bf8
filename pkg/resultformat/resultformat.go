// Package resultformat encodes and decodes fit result tables as CSV, JSON or
// MessagePack.
package resultformat

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sodankyla/phrates/internal/constants"
	"github.com/sodankyla/phrates/internal/rhovrhog"
	"github.com/vmihailenco/msgpack/v5"
)

// Supported formats
const (
	CSV     = "csv"
	JSON    = "json"
	MsgPack = "msgpack"
)

// Columns is the header of the CSV result table.
var Columns = []string{"track", "date", "gtx", "strong", "night", "ρv", "ρg", "weight", "ρvρg"}

// Envelope wraps a result table with the metadata of the run that produced it.
// CSV output carries only the rows.
type Envelope struct {
	RunID      string               `json:"run_id"`
	Name       string               `json:"name,omitempty"`
	Version    string               `json:"version"`
	CreatedAt  time.Time            `json:"created_at"`
	Slope      float64              `json:"slope"`
	Iterations int                  `json:"iterations"`
	Cost       float64              `json:"cost"`
	Results    []rhovrhog.FitResult `json:"results"`
}

// NewEnvelope builds the envelope for one fit.
func NewEnvelope(runID uuid.UUID, name string, res *rhovrhog.Result) *Envelope {
	return &Envelope{
		RunID:      runID.String(),
		Name:       name,
		Version:    constants.Version,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Slope:      res.Slope,
		Iterations: res.Iterations,
		Cost:       res.Cost,
		Results:    res.Rows,
	}
}

// Normalize maps an empty format to CSV and rejects unknown ones.
func Normalize(format string) (string, error) {
	switch f := strings.ToLower(format); f {
	case "":
		return CSV, nil
	case CSV, JSON, MsgPack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown result format %q", format)
	}
}

// Extension returns the file extension, dot included, for format.
func Extension(format string) string {
	f, err := Normalize(format)
	if err != nil {
		return ""
	}
	return "." + f
}

// Encode writes env to w in the given format. CSV is the default.
func Encode(w io.Writer, format string, env *Envelope) error {
	f, err := Normalize(format)
	if err != nil {
		return err
	}

	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	case MsgPack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json") // Use json tags for MessagePack
		return enc.Encode(env)
	default:
		return EncodeCSV(w, env.Results)
	}
}

// Decode reads an envelope written by Encode. CSV input yields an envelope
// holding only the rows.
func Decode(r io.Reader, format string) (*Envelope, error) {
	f, err := Normalize(format)
	if err != nil {
		return nil, err
	}

	env := &Envelope{}
	switch f {
	case JSON:
		err = json.NewDecoder(r).Decode(env)
	case MsgPack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		err = dec.Decode(env)
	default:
		env.Results, err = DecodeCSV(r)
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

// WriteFile encodes env into path, creating parent directories.
func WriteFile(path, format string, env *Envelope) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, format, env); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile decodes path, picking the format from its extension.
func ReadFile(path string) (*Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	env, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return env, nil
}

// EncodeCSV writes rows as a CSV table with the Columns header.
func EncodeCSV(w io.Writer, rows []rhovrhog.FitResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Track,
			r.Date,
			r.GTX,
			formatBool(r.Strong),
			formatBool(r.Night),
			formatFloat(r.CanopyIntercept),
			formatFloat(r.GroundIntercept),
			formatFloat(r.Weight),
			formatFloat(r.Ratio),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads a result table. Columns are matched by name, so a leading
// index column is tolerated.
func DecodeCSV(r io.Reader) ([]rhovrhog.FitResult, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var rows []rhovrhog.FitResult
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var row rhovrhog.FitResult
		var errs []error
		row.Track = rec[idx["track"]]
		row.Date = rec[idx["date"]]
		row.GTX = rec[idx["gtx"]]
		row.Strong, err = strconv.ParseBool(rec[idx["strong"]])
		errs = append(errs, err)
		row.Night, err = strconv.ParseBool(rec[idx["night"]])
		errs = append(errs, err)
		row.CanopyIntercept, err = strconv.ParseFloat(rec[idx["ρv"]], 64)
		errs = append(errs, err)
		row.GroundIntercept, err = strconv.ParseFloat(rec[idx["ρg"]], 64)
		errs = append(errs, err)
		row.Weight, err = strconv.ParseFloat(rec[idx["weight"]], 64)
		errs = append(errs, err)
		row.Ratio, err = strconv.ParseFloat(rec[idx["ρvρg"]], 64)
		errs = append(errs, err)

		for _, e := range errs {
			if e != nil {
				return nil, fmt.Errorf("line %d: %w", line, e)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
