package resultformat

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sodankyla/phrates/internal/rhovrhog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEnvelope() *Envelope {
	res := &rhovrhog.Result{
		Slope:      -2,
		Iterations: 7,
		Cost:       0.125,
		Rows: []rhovrhog.FitResult{
			{Track: "20190101gt1l", Date: "20190101", GTX: "gt1l", Strong: true, Night: false,
				CanopyIntercept: 6, GroundIntercept: 3, Weight: 1, Ratio: 2},
			{Track: "20190215gt2r", Date: "20190215", GTX: "gt2r", Strong: false, Night: true,
				CanopyIntercept: 1.5, GroundIntercept: 0.75, Weight: 0.64, Ratio: 2},
		},
	}
	return NewEnvelope(uuid.MustParse("5b1f0ab4-5c7e-4f0a-9a3b-2d8c6f1e7a90"), "sn_op", res)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", CSV, false},
		{"CSV", CSV, false},
		{"json", JSON, false},
		{"msgpack", MsgPack, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, ".msgpack", Extension(MsgPack))
	assert.Equal(t, "", Extension("xml"))
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "", sampleEnvelope()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "track,date,gtx,strong,night,ρv,ρg,weight,ρvρg", lines[0])
	assert.Equal(t, "20190101gt1l,20190101,gt1l,True,False,6,3,1,2", lines[1])
	assert.Equal(t, "20190215gt2r,20190215,gt2r,False,True,1.5,0.75,0.64,2", lines[2])
}

func TestRoundTrip(t *testing.T) {
	env := sampleEnvelope()

	for _, format := range []string{JSON, MsgPack} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, format, env))

			back, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, env.RunID, back.RunID)
			assert.Equal(t, env.Name, back.Name)
			assert.Equal(t, env.Version, back.Version)
			assert.True(t, env.CreatedAt.Equal(back.CreatedAt))
			assert.Equal(t, env.Slope, back.Slope)
			assert.Equal(t, env.Iterations, back.Iterations)
			assert.Equal(t, env.Results, back.Results)
		})
	}

	t.Run(CSV, func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, CSV, env))

		back, err := Decode(&buf, CSV)
		require.NoError(t, err)
		assert.Empty(t, back.RunID)
		assert.Equal(t, env.Results, back.Results)
	})
}

// A track without canopy signal keeps a zero intercept, so its ratio is 0/0.
func TestRoundTripNaNRatio(t *testing.T) {
	env := sampleEnvelope()
	env.Results = append(env.Results, rhovrhog.FitResult{
		Track: "20190301gt3l", Date: "20190301", GTX: "gt3l", Strong: true,
		CanopyIntercept: 0, GroundIntercept: 0, Weight: 0, Ratio: math.NaN(),
	})

	for _, format := range []string{CSV, JSON, MsgPack} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, format, env))

			back, err := Decode(&buf, format)
			require.NoError(t, err)
			require.Len(t, back.Results, 3)
			assert.Equal(t, env.Results[:2], back.Results[:2])

			got := back.Results[2]
			assert.True(t, math.IsNaN(got.Ratio))
			got.Ratio = 0
			want := env.Results[2]
			want.Ratio = 0
			assert.Equal(t, want, got)
		})
	}
}

func TestJSONWritesNaNAsNull(t *testing.T) {
	env := sampleEnvelope()
	env.Results[0].Ratio = math.NaN()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, JSON, env))
	assert.Contains(t, buf.String(), `"ρvρg": null`)
	assert.Contains(t, buf.String(), `"ρvρg": 2`)
}

func TestJSONUsesTableColumnNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, JSON, sampleEnvelope()))

	out := buf.String()
	for _, key := range []string{`"run_id"`, `"ρv"`, `"ρg"`, `"ρvρg"`, `"gtx"`} {
		assert.Contains(t, out, key)
	}
}

func TestDecodeCSVWithIndexColumn(t *testing.T) {
	in := ",track,date,gtx,strong,night,ρv,ρg,weight,ρvρg\n" +
		"0,20190101gt1l,20190101,gt1l,True,True,6.0,3.0,1.0,2.0\n"

	rows, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Night)
	assert.Equal(t, 3.0, rows[0].GroundIntercept)
}

func TestDecodeCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "track,date\nx,y\n"},
		{"bad float", "track,date,gtx,strong,night,ρv,ρg,weight,ρvρg\nk,d,g,True,True,abc,1,1,1\n"},
		{"bad bool", "track,date,gtx,strong,night,ρv,ρg,weight,ρvρg\nk,d,g,yes,True,1,1,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestWriteAndReadFile(t *testing.T) {
	env := sampleEnvelope()
	dir := t.TempDir()

	for _, format := range []string{CSV, JSON, MsgPack} {
		path := filepath.Join(dir, "ph_rates", "rate_sn_op"+Extension(format))
		require.NoError(t, WriteFile(path, format, env))

		back, err := ReadFile(path)
		require.NoError(t, err, format)
		assert.Equal(t, env.Results, back.Results, format)
	}
}
