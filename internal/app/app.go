// Package app runs the analysis steps behind the command line tools: grouping
// photon-count tables by snow scene, filtering them by acquisition condition,
// fitting ρv/ρg per track and drawing the configured histograms.
package app

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodankyla/phrates/internal/plots"
	"github.com/sodankyla/phrates/internal/rhovrhog"
	"github.com/sodankyla/phrates/internal/segments"
	"github.com/sodankyla/phrates/internal/site"
	"github.com/sodankyla/phrates/pkg/config"
	"github.com/sodankyla/phrates/pkg/resultformat"
)

// Output directory names, relative to the chosen output directory.
const (
	GroupDir    = "ph_cnt_grp"
	FilteredDir = "filtered_scenes"
	RatesDir    = "ph_rates"
)

// App represents one configured analysis run
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance. Defaults are applied to cfg; a nil
// cfg uses the defaults alone.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// OutputDir returns dir, or the configured output directory when dir is empty.
func (a *App) OutputDir(dir string) string {
	if dir != "" {
		return dir
	}
	return a.cfg.Output.Dir
}

func (a *App) boundingBox() site.BoundingBox {
	bb := a.cfg.Site.BoundingBox
	if bb.IsZero() {
		return site.Sodankyla
	}
	return site.BoundingBox{MinLon: bb.MinLon, MinLat: bb.MinLat, MaxLon: bb.MaxLon, MaxLat: bb.MaxLat}
}

// ConcatRates concatenates the photon-count tables in inDir, clips them to the
// study site, attaches the snow scene classification read from scenesPath and
// writes the site table, the merged table and one table per snow scene type
// under outDir/ph_cnt_grp.
func (a *App) ConcatRates(inDir, scenesPath, outDir string) error {
	tbl, err := segments.ConcatDir(inDir)
	if err != nil {
		return fmt.Errorf("failed to read photon count tables: %w", err)
	}

	scenes, err := site.ReadScenes(scenesPath)
	if err != nil {
		return fmt.Errorf("failed to read snow scenes: %w", err)
	}

	clipped := site.Clip(tbl.Rows, a.boundingBox())
	a.logger.Infow("clipped to study site", "site", a.cfg.Site.Name, "segments", len(tbl.Rows), "kept", len(clipped))

	base := filepath.Join(a.OutputDir(outDir), GroupDir)
	sod := tbl.WithRows(clipped)
	if err := segments.WriteFile(filepath.Join(base, "_sod.csv"), sod); err != nil {
		return err
	}

	merged := sod.WithRows(site.MergeScenes(clipped, scenes))
	merged.AddColumn(segments.ColSceneType)
	if err := segments.WriteFile(filepath.Join(base, "ss_rates.csv"), merged); err != nil {
		return err
	}

	strata := site.Stratify(merged.Rows)
	outputs := []struct {
		name string
		rows []segments.Segment
	}{
		{"no_sn.csv", strata.NoSnow},
		{"sn.csv", strata.Snow},
		{"var_sn.csv", strata.Variable},
	}
	for _, o := range outputs {
		if err := segments.WriteFile(filepath.Join(base, o.name), merged.WithRows(o.rows)); err != nil {
			return err
		}
		a.logger.Infow("wrote scene table", "file", o.name, "segments", len(o.rows))
	}
	return nil
}

// FilterScenes splits the merged rate table at ratesPath into snow and no-snow
// segments and writes one table per acquisition condition, plus the forest-only
// tables built from the land-cover annotated inputs, under outDir/filtered_scenes.
// Empty land-cover paths skip the forest tables.
func (a *App) FilterScenes(ratesPath, snowLandPath, noSnowLandPath, outDir string) error {
	tbl, err := segments.ReadFile(ratesPath)
	if err != nil {
		return fmt.Errorf("failed to read rate table: %w", err)
	}

	base := filepath.Join(a.OutputDir(outDir), FilteredDir)
	clearCodes := a.cfg.Filters.ClearAtmosphere

	groups := []struct {
		prefix string
		rows   []segments.Segment
	}{
		{"snow", site.Filter(tbl.Rows, site.SceneType(site.Snow))},
		{"no_snow", site.Filter(tbl.Rows, site.SceneType(site.NoSnow))},
	}
	conditions := []struct {
		suffix string
		pred   site.Predicate
	}{
		{"power", site.StrongBeam},
		{"weak", site.WeakBeam},
		{"day", site.Day},
		{"night", site.Night},
		{"atm", site.ClearAtmosphere(clearCodes)},
		{"op", site.Optimum(clearCodes)},
	}

	for _, g := range groups {
		for _, c := range conditions {
			rows := site.Filter(g.rows, c.pred)
			name := fmt.Sprintf("%s_%s.csv", g.prefix, c.suffix)
			if err := segments.WriteFile(filepath.Join(base, name), tbl.WithRows(rows)); err != nil {
				return err
			}
			a.logger.Debugw("wrote filtered table", "file", name, "segments", len(rows))
		}
	}

	landInputs := []struct {
		prefix string
		path   string
	}{
		{"snow", snowLandPath},
		{"no_snow", noSnowLandPath},
	}
	for _, in := range landInputs {
		if in.path == "" {
			continue
		}
		land, err := segments.ReadFile(in.path)
		if err != nil {
			return fmt.Errorf("failed to read land cover table: %w", err)
		}
		rows := site.Filter(land.Rows, site.Forest(a.cfg.Filters.ExcludedLandCover))
		name := in.prefix + "_lc_forest.csv"
		if err := segments.WriteFile(filepath.Join(base, name), land.WithRows(rows)); err != nil {
			return err
		}
		a.logger.Infow("wrote forest table", "file", name, "segments", len(rows), "of", len(land.Rows))
	}
	return nil
}

// FitOutput lists what FitRates wrote.
type FitOutput struct {
	Envelope  *resultformat.Envelope
	TablePath string
	PlotPath  string
}

// FitRates fits ρv/ρg per track on the segment table at infile and writes the
// result table and the scatter plot as outDir/ph_rates/rate_<name>.*.
func (a *App) FitRates(infile, name, outDir string) (*FitOutput, error) {
	tbl, err := segments.ReadFile(infile)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}

	maxCanopy, maxGround := a.cfg.Filters.RateCaps()
	rows := site.Filter(tbl.Rows, site.RateCap(maxCanopy, maxGround))

	ms, err := segments.Measurements(rows)
	if err != nil {
		var rowErr *segments.RowError
		if errors.As(err, &rowErr) && rowErr.File == "" {
			rowErr.File = infile
		}
		return nil, err
	}

	runID := uuid.New()
	logger := a.logger.With("run_id", runID.String(), "name", name)
	logger.Infow("fitting", "input", infile, "segments", len(tbl.Rows), "within_caps", len(ms))

	res, err := rhovrhog.Fit(ms, a.fitOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", name, err)
	}
	logger.Infow("fit converged", "tracks", len(res.Rows), "dropped", len(res.Dropped),
		"slope", res.Slope, "iterations", res.Iterations, "cost", res.Cost)

	out := &FitOutput{Envelope: resultformat.NewEnvelope(runID, name, res)}
	base := filepath.Join(a.OutputDir(outDir), RatesDir, "rate_"+name)
	out.TablePath = base + resultformat.Extension(a.cfg.Output.Format)
	if err := resultformat.WriteFile(out.TablePath, a.cfg.Output.Format, out.Envelope); err != nil {
		return nil, err
	}

	out.PlotPath = base + ".png"
	size := plots.SizeCm(a.cfg.Output.PlotWidthCm, a.cfg.Output.PlotHeightCm)
	if err := plots.FitScatter(res, out.PlotPath, size); err != nil {
		return nil, err
	}
	logger.Infow("wrote results", "table", out.TablePath, "plot", out.PlotPath)
	return out, nil
}

func (a *App) fitOptions(logger *zap.SugaredLogger) rhovrhog.Options {
	f := a.cfg.Fit
	return rhovrhog.Options{
		CorrelationThreshold: f.CorrelationThreshold,
		DropDegenerate:       f.DropDegenerate,
		Solver: rhovrhog.SolverSettings{
			MaxIterations: f.MaxIterations,
			Tau:           f.Tau,
			GradientTol:   f.GradientTol,
			StepTol:       f.StepTol,
			CostTol:       f.CostTol,
		},
		Logger: logger,
	}
}

// RatePlots renders every configured histogram. Relative input and output paths
// are resolved against baseDir, or the configured output directory when empty.
func (a *App) RatePlots(baseDir string) error {
	if len(a.cfg.Plots) == 0 {
		return fmt.Errorf("no plots configured")
	}
	base := a.OutputDir(baseDir)

	for _, def := range a.cfg.Plots {
		series := make([]plots.Series, 0, len(def.Series))
		for _, sd := range def.Series {
			values, err := segments.ReadColumn(resolve(base, sd.Input), def.Column)
			if err != nil {
				return fmt.Errorf("plot %s: %w", def.Name, err)
			}
			c, err := plots.ParseColor(sd.Color)
			if err != nil {
				return fmt.Errorf("plot %s: %w", def.Name, err)
			}
			series = append(series, plots.Series{Label: sd.Label, Values: values, Color: c})
		}

		spec := plots.HistogramSpec{
			Title:   def.Title,
			XLabel:  def.Column,
			Bins:    def.Bins,
			Density: def.Density,
			XMin:    def.XMin,
			XMax:    def.XMax,
			YMin:    def.YMin,
			YMax:    def.YMax,
		}
		out := resolve(base, def.Output)
		size := plots.SizeCm(a.cfg.Output.PlotWidthCm, a.cfg.Output.PlotHeightCm)
		if err := plots.Histogram(spec, series, out, size); err != nil {
			return fmt.Errorf("plot %s: %w", def.Name, err)
		}
		a.logger.Infow("wrote histogram", "plot", def.Name, "output", out)
	}
	return nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
