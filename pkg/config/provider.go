// Package config loads run configuration for the photon-rate analysis binaries
// from a YAML file or a SQLite database.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSite() (*SiteData, error)
	GetFilters() (*FilterData, error)
	GetFit() (*FitData, error)
	GetPlots() ([]PlotData, error)

	IsReadOnly() bool
	Close() error
}

// Output formats understood by the result encoders.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Site    SiteData   `json:"site" yaml:"site"`
	Filters FilterData `json:"filters" yaml:"filters"`
	Fit     FitData    `json:"fit" yaml:"fit"`
	Output  OutputData `json:"output" yaml:"output"`
	Plots   []PlotData `json:"plots,omitempty" yaml:"plots,omitempty"`
}

// SiteData names the study site and its bounding box in geographic coordinates.
type SiteData struct {
	Name        string          `json:"name" yaml:"name"`
	BoundingBox BoundingBoxData `json:"bounding_box" yaml:"bounding_box"`
}

type BoundingBoxData struct {
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
}

// IsZero reports whether no bounding box was configured.
func (b BoundingBoxData) IsZero() bool {
	return b == BoundingBoxData{}
}

// FilterData holds the acquisition-condition filters applied before fitting.
// A nil rate cap takes the default; a cap of 0 disables it.
type FilterData struct {
	ClearAtmosphere   []int    `json:"clear_atmosphere,omitempty" yaml:"clear_atmosphere,omitempty"`
	ExcludedLandCover []int    `json:"excluded_land_cover,omitempty" yaml:"excluded_land_cover,omitempty"`
	MaxCanopyRate     *float64 `json:"max_canopy_rate,omitempty" yaml:"max_canopy_rate,omitempty"`
	MaxGroundRate     *float64 `json:"max_ground_rate,omitempty" yaml:"max_ground_rate,omitempty"`
}

// FitData holds the track weighting threshold and solver settings.
type FitData struct {
	CorrelationThreshold float64 `json:"correlation_threshold,omitempty" yaml:"correlation_threshold,omitempty"`
	MaxIterations        int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Tau                  float64 `json:"tau,omitempty" yaml:"tau,omitempty"`
	GradientTol          float64 `json:"gradient_tol,omitempty" yaml:"gradient_tol,omitempty"`
	StepTol              float64 `json:"step_tol,omitempty" yaml:"step_tol,omitempty"`
	CostTol              float64 `json:"cost_tol,omitempty" yaml:"cost_tol,omitempty"`
	DropDegenerate       bool    `json:"drop_degenerate,omitempty" yaml:"drop_degenerate,omitempty"`
}

// OutputData controls where and how results are written.
type OutputData struct {
	Dir          string  `json:"dir,omitempty" yaml:"dir,omitempty"`
	Format       string  `json:"format,omitempty" yaml:"format,omitempty"`
	PlotWidthCm  float64 `json:"plot_width_cm,omitempty" yaml:"plot_width_cm,omitempty"`
	PlotHeightCm float64 `json:"plot_height_cm,omitempty" yaml:"plot_height_cm,omitempty"`
}

// PlotData defines one histogram figure. Nil axis limits are left to the plotter.
type PlotData struct {
	Name    string       `json:"name" yaml:"name"`
	Title   string       `json:"title,omitempty" yaml:"title,omitempty"`
	Column  string       `json:"column" yaml:"column"`
	Bins    int          `json:"bins,omitempty" yaml:"bins,omitempty"`
	Density bool         `json:"density,omitempty" yaml:"density,omitempty"`
	XMin    *float64     `json:"x_min,omitempty" yaml:"x_min,omitempty"`
	XMax    *float64     `json:"x_max,omitempty" yaml:"x_max,omitempty"`
	YMin    *float64     `json:"y_min,omitempty" yaml:"y_min,omitempty"`
	YMax    *float64     `json:"y_max,omitempty" yaml:"y_max,omitempty"`
	Output  string       `json:"output" yaml:"output"`
	Series  []SeriesData `json:"series" yaml:"series"`
}

// SeriesData is one labelled input file drawn into a histogram.
type SeriesData struct {
	Label string `json:"label" yaml:"label"`
	Input string `json:"input" yaml:"input"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Default values
const (
	DefaultSiteName             = "sodankyla"
	DefaultRateCap              = 2.0
	DefaultCorrelationThreshold = -0.5
	DefaultMaxIterations        = 200
	DefaultTau                  = 1e-3
	DefaultTolerance            = 1e-10
	DefaultBins                 = 25
	DefaultPlotWidthCm          = 10.16
	DefaultPlotHeightCm         = 8.89
)

// DefaultBoundingBox is the Sodankylä study area.
var DefaultBoundingBox = BoundingBoxData{MinLon: 26.30, MinLat: 66.89, MaxLon: 27.39, MaxLat: 67.89}

var (
	defaultClearAtmosphere   = []int{0, 1, 2}
	defaultExcludedLandCover = []int{20, 30, 50, 80, 90, 121, 126}
)

// Default returns a configuration with every default applied.
func Default() *ConfigData {
	c := &ConfigData{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in zero-valued settings.
func (c *ConfigData) ApplyDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = DefaultSiteName
	}
	if c.Site.BoundingBox.IsZero() {
		c.Site.BoundingBox = DefaultBoundingBox
	}

	if len(c.Filters.ClearAtmosphere) == 0 {
		c.Filters.ClearAtmosphere = append([]int(nil), defaultClearAtmosphere...)
	}
	if len(c.Filters.ExcludedLandCover) == 0 {
		c.Filters.ExcludedLandCover = append([]int(nil), defaultExcludedLandCover...)
	}
	if c.Filters.MaxCanopyRate == nil {
		v := DefaultRateCap
		c.Filters.MaxCanopyRate = &v
	}
	if c.Filters.MaxGroundRate == nil {
		v := DefaultRateCap
		c.Filters.MaxGroundRate = &v
	}

	if c.Fit.CorrelationThreshold == 0 {
		c.Fit.CorrelationThreshold = DefaultCorrelationThreshold
	}
	if c.Fit.MaxIterations == 0 {
		c.Fit.MaxIterations = DefaultMaxIterations
	}
	if c.Fit.Tau == 0 {
		c.Fit.Tau = DefaultTau
	}
	if c.Fit.GradientTol == 0 {
		c.Fit.GradientTol = DefaultTolerance
	}
	if c.Fit.StepTol == 0 {
		c.Fit.StepTol = DefaultTolerance
	}
	if c.Fit.CostTol == 0 {
		c.Fit.CostTol = DefaultTolerance
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.Format == "" {
		c.Output.Format = FormatCSV
	}
	if c.Output.PlotWidthCm == 0 {
		c.Output.PlotWidthCm = DefaultPlotWidthCm
	}
	if c.Output.PlotHeightCm == 0 {
		c.Output.PlotHeightCm = DefaultPlotHeightCm
	}

	for i := range c.Plots {
		if c.Plots[i].Bins == 0 {
			c.Plots[i].Bins = DefaultBins
		}
	}
}

// Validate reports every problem found in the configuration.
func (c *ConfigData) Validate() error {
	var errs []error

	bb := c.Site.BoundingBox
	if bb.MinLon >= bb.MaxLon || bb.MinLat >= bb.MaxLat {
		errs = append(errs, fmt.Errorf("site %q: bounding box min must be below max", c.Site.Name))
	}
	if c.Fit.CorrelationThreshold >= 0 || c.Fit.CorrelationThreshold < -1 {
		errs = append(errs, fmt.Errorf("fit: correlation_threshold %v must lie in [-1, 0)", c.Fit.CorrelationThreshold))
	}
	if c.Fit.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("fit: max_iterations must not be negative"))
	}
	if c.Filters.MaxCanopyRate != nil && *c.Filters.MaxCanopyRate < 0 {
		errs = append(errs, fmt.Errorf("filters: max_canopy_rate must not be negative"))
	}
	if c.Filters.MaxGroundRate != nil && *c.Filters.MaxGroundRate < 0 {
		errs = append(errs, fmt.Errorf("filters: max_ground_rate must not be negative"))
	}

	switch strings.ToLower(c.Output.Format) {
	case "", FormatCSV, FormatJSON, FormatMsgpack:
	default:
		errs = append(errs, fmt.Errorf("output: unknown format %q", c.Output.Format))
	}

	names := make(map[string]bool)
	for _, p := range c.Plots {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("plots: plot without a name"))
			continue
		}
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("plot %s: duplicate name", p.Name))
		}
		names[p.Name] = true
		if p.Column == "" {
			errs = append(errs, fmt.Errorf("plot %s: column is required", p.Name))
		}
		if p.Output == "" {
			errs = append(errs, fmt.Errorf("plot %s: output is required", p.Name))
		}
		if len(p.Series) == 0 {
			errs = append(errs, fmt.Errorf("plot %s: at least one series is required", p.Name))
		}
		if p.Bins < 0 {
			errs = append(errs, fmt.Errorf("plot %s: bins must not be negative", p.Name))
		}
	}

	return errors.Join(errs...)
}

// RateCaps returns the configured canopy and ground rate caps, defaults applied.
func (f FilterData) RateCaps() (canopy, ground float64) {
	canopy, ground = DefaultRateCap, DefaultRateCap
	if f.MaxCanopyRate != nil {
		canopy = *f.MaxCanopyRate
	}
	if f.MaxGroundRate != nil {
		ground = *f.MaxGroundRate
	}
	return canopy, ground
}

// Float returns a pointer to v, for optional settings.
func Float(v float64) *float64 {
	return &v
}

// NewProvider opens the provider for the named backend ("yaml" or "sqlite").
func NewProvider(backend, path string) (ConfigProvider, error) {
	switch strings.ToLower(backend) {
	case "", "yaml", "yml":
		return NewYAMLProvider(path), nil
	case "sqlite":
		return NewSQLiteProvider(path)
	default:
		return nil, fmt.Errorf("unknown config backend %q", backend)
	}
}

// Load reads, defaults and validates the configuration at path. An empty path
// yields the default configuration.
func Load(backend, path string) (*ConfigData, error) {
	if path == "" {
		return Default(), nil
	}

	provider, err := NewProvider(backend, path)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
