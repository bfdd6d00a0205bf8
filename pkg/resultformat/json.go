package resultformat

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sodankyla/phrates/internal/rhovrhog"
)

// jsonFloat writes non-finite values as null, since JSON has no NaN. A null
// reads back as NaN.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = jsonFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type jsonRow struct {
	Track           string    `json:"track"`
	Date            string    `json:"date"`
	GTX             string    `json:"gtx"`
	Strong          bool      `json:"strong"`
	Night           bool      `json:"night"`
	CanopyIntercept jsonFloat `json:"ρv"`
	GroundIntercept jsonFloat `json:"ρg"`
	Weight          jsonFloat `json:"weight"`
	Ratio           jsonFloat `json:"ρvρg"`
}

type jsonEnvelope struct {
	RunID      string    `json:"run_id"`
	Name       string    `json:"name,omitempty"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Slope      jsonFloat `json:"slope"`
	Iterations int       `json:"iterations"`
	Cost       jsonFloat `json:"cost"`
	Results    []jsonRow `json:"results"`
}

// MarshalJSON encodes the envelope with NaN intercepts and ratios as null.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := jsonEnvelope{
		RunID:      e.RunID,
		Name:       e.Name,
		Version:    e.Version,
		CreatedAt:  e.CreatedAt,
		Slope:      jsonFloat(e.Slope),
		Iterations: e.Iterations,
		Cost:       jsonFloat(e.Cost),
		Results:    make([]jsonRow, len(e.Results)),
	}
	for i, r := range e.Results {
		out.Results[i] = jsonRow{
			Track:           r.Track,
			Date:            r.Date,
			GTX:             r.GTX,
			Strong:          r.Strong,
			Night:           r.Night,
			CanopyIntercept: jsonFloat(r.CanopyIntercept),
			GroundIntercept: jsonFloat(r.GroundIntercept),
			Weight:          jsonFloat(r.Weight),
			Ratio:           jsonFloat(r.Ratio),
		}
	}
	return json.Marshal(out)
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var in jsonEnvelope
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	*e = Envelope{
		RunID:      in.RunID,
		Name:       in.Name,
		Version:    in.Version,
		CreatedAt:  in.CreatedAt,
		Slope:      float64(in.Slope),
		Iterations: in.Iterations,
		Cost:       float64(in.Cost),
	}
	if in.Results != nil {
		e.Results = make([]rhovrhog.FitResult, len(in.Results))
	}
	for i, r := range in.Results {
		e.Results[i] = rhovrhog.FitResult{
			Track:           r.Track,
			Date:            r.Date,
			GTX:             r.GTX,
			Strong:          r.Strong,
			Night:           r.Night,
			CanopyIntercept: float64(r.CanopyIntercept),
			GroundIntercept: float64(r.GroundIntercept),
			Weight:          float64(r.Weight),
			Ratio:           float64(r.Ratio),
		}
	}
	return nil
}
