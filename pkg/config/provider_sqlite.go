package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/sodankyla/phrates/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DefaultConfigName is the configuration row read and written by the provider.
const DefaultConfigName = "default"

// ErrNoConfig is returned when the database holds no saved configuration.
var ErrNoConfig = errors.New("no configuration found")

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens dbPath, creating it if needed, and brings its
// schema up to date.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := NewMigrator(db, nil).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// NewMigrator returns a migrator over the configuration schema of db.
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrationFS, "migrations", MigrationTable), logger)
}

// MigrationTable records the applied configuration schema versions.
const MigrationTable = "config_migrations"

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	site, err := s.GetSite()
	if err != nil {
		return nil, fmt.Errorf("failed to load site: %w", err)
	}
	config.Site = *site

	filters, err := s.GetFilters()
	if err != nil {
		return nil, fmt.Errorf("failed to load filters: %w", err)
	}
	config.Filters = *filters

	fit, err := s.GetFit()
	if err != nil {
		return nil, fmt.Errorf("failed to load fit config: %w", err)
	}
	config.Fit = *fit

	output, err := s.GetOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to load output config: %w", err)
	}
	config.Output = *output

	plots, err := s.GetPlots()
	if err != nil {
		return nil, fmt.Errorf("failed to load plots: %w", err)
	}
	config.Plots = plots

	return config, nil
}

// configID returns the id of the default configuration row.
func (s *SQLiteProvider) configID() (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM configs WHERE name = ?", DefaultConfigName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoConfig
	}
	return id, err
}

// GetSite returns the study site from the database. A missing row leaves the
// site empty for the defaults to fill.
func (s *SQLiteProvider) GetSite() (*SiteData, error) {
	id, err := s.configID()
	if err != nil {
		return nil, err
	}

	site := &SiteData{}
	err = s.db.QueryRow(`
		SELECT name, min_lon, min_lat, max_lon, max_lat
		FROM site_configs WHERE config_id = ?
	`, id).Scan(&site.Name, &site.BoundingBox.MinLon, &site.BoundingBox.MinLat,
		&site.BoundingBox.MaxLon, &site.BoundingBox.MaxLat)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query site: %w", err)
	}
	return site, nil
}

// GetFilters returns the acquisition filters from the database
func (s *SQLiteProvider) GetFilters() (*FilterData, error) {
	id, err := s.configID()
	if err != nil {
		return nil, err
	}

	filters := &FilterData{}
	var maxCanopy, maxGround sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT max_canopy_rate, max_ground_rate
		FROM filter_configs WHERE config_id = ?
	`, id).Scan(&maxCanopy, &maxGround)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query filters: %w", err)
	}
	filters.MaxCanopyRate = floatPtr(maxCanopy)
	filters.MaxGroundRate = floatPtr(maxGround)

	rows, err := s.db.Query(`
		SELECT kind, code FROM filter_codes
		WHERE config_id = ?
		ORDER BY kind, position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var code int
		if err := rows.Scan(&kind, &code); err != nil {
			return nil, fmt.Errorf("failed to scan filter code row: %w", err)
		}
		switch kind {
		case "clear_atmosphere":
			filters.ClearAtmosphere = append(filters.ClearAtmosphere, code)
		case "excluded_land_cover":
			filters.ExcludedLandCover = append(filters.ExcludedLandCover, code)
		}
	}
	return filters, rows.Err()
}

// GetFit returns the fit settings from the database
func (s *SQLiteProvider) GetFit() (*FitData, error) {
	id, err := s.configID()
	if err != nil {
		return nil, err
	}

	fit := &FitData{}
	var threshold, tau, gradTol, stepTol, costTol sql.NullFloat64
	var maxIter sql.NullInt64
	err = s.db.QueryRow(`
		SELECT correlation_threshold, max_iterations, tau, gradient_tol,
		       step_tol, cost_tol, drop_degenerate
		FROM fit_configs WHERE config_id = ?
	`, id).Scan(&threshold, &maxIter, &tau, &gradTol, &stepTol, &costTol, &fit.DropDegenerate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query fit config: %w", err)
	}

	fit.CorrelationThreshold = threshold.Float64
	fit.MaxIterations = int(maxIter.Int64)
	fit.Tau = tau.Float64
	fit.GradientTol = gradTol.Float64
	fit.StepTol = stepTol.Float64
	fit.CostTol = costTol.Float64
	return fit, nil
}

// GetOutput returns the output settings from the database
func (s *SQLiteProvider) GetOutput() (*OutputData, error) {
	id, err := s.configID()
	if err != nil {
		return nil, err
	}

	output := &OutputData{}
	var dir, format sql.NullString
	var width, height sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT dir, format, plot_width_cm, plot_height_cm
		FROM output_configs WHERE config_id = ?
	`, id).Scan(&dir, &format, &width, &height)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query output config: %w", err)
	}

	output.Dir = dir.String
	output.Format = format.String
	output.PlotWidthCm = width.Float64
	output.PlotHeightCm = height.Float64
	return output, nil
}

// GetPlots returns the histogram definitions from the database
func (s *SQLiteProvider) GetPlots() ([]PlotData, error) {
	id, err := s.configID()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, name, title, column_name, bins, density,
		       x_min, x_max, y_min, y_max, output
		FROM plot_configs
		WHERE config_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query plots: %w", err)
	}
	defer rows.Close()

	var plots []PlotData
	var plotIDs []int64
	for rows.Next() {
		var plot PlotData
		var plotID int64
		var title sql.NullString
		var bins sql.NullInt64
		var xMin, xMax, yMin, yMax sql.NullFloat64

		err := rows.Scan(&plotID, &plot.Name, &title, &plot.Column, &bins, &plot.Density,
			&xMin, &xMax, &yMin, &yMax, &plot.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plot row: %w", err)
		}

		plot.Title = title.String
		plot.Bins = int(bins.Int64)
		plot.XMin = floatPtr(xMin)
		plot.XMax = floatPtr(xMax)
		plot.YMin = floatPtr(yMin)
		plot.YMax = floatPtr(yMax)

		plots = append(plots, plot)
		plotIDs = append(plotIDs, plotID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i, plotID := range plotIDs {
		series, err := s.getSeries(plotID)
		if err != nil {
			return nil, fmt.Errorf("failed to load series for plot %s: %w", plots[i].Name, err)
		}
		plots[i].Series = series
	}

	return plots, nil
}

func (s *SQLiteProvider) getSeries(plotID int64) ([]SeriesData, error) {
	rows, err := s.db.Query(`
		SELECT label, input, color FROM plot_series
		WHERE plot_id = ?
		ORDER BY position
	`, plotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []SeriesData
	for rows.Next() {
		var sd SeriesData
		var color sql.NullString
		if err := rows.Scan(&sd.Label, &sd.Input, &color); err != nil {
			return nil, err
		}
		sd.Color = color.String
		series = append(series, sd)
	}
	return series, rows.Err()
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, DefaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	if err := s.insertSite(tx, configID, &configData.Site); err != nil {
		return fmt.Errorf("failed to insert site: %w", err)
	}
	if err := s.insertFilters(tx, configID, &configData.Filters); err != nil {
		return fmt.Errorf("failed to insert filters: %w", err)
	}
	if err := s.insertFit(tx, configID, &configData.Fit); err != nil {
		return fmt.Errorf("failed to insert fit config: %w", err)
	}
	if err := s.insertOutput(tx, configID, &configData.Output); err != nil {
		return fmt.Errorf("failed to insert output config: %w", err)
	}
	for i := range configData.Plots {
		if err := s.insertPlot(tx, configID, i, &configData.Plots[i]); err != nil {
			return fmt.Errorf("failed to insert plot %s: %w", configData.Plots[i].Name, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) upsertConfig(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO configs (name, created_at, updated_at)
		VALUES (?, datetime('now'), datetime('now'))
		ON CONFLICT(name) DO UPDATE SET updated_at = datetime('now')
	`, name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow("SELECT id FROM configs WHERE name = ?", name).Scan(&id)
	return id, err
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM plot_series WHERE plot_id IN (SELECT id FROM plot_configs WHERE config_id = ?)",
		"DELETE FROM plot_configs WHERE config_id = ?",
		"DELETE FROM output_configs WHERE config_id = ?",
		"DELETE FROM fit_configs WHERE config_id = ?",
		"DELETE FROM filter_codes WHERE config_id = ?",
		"DELETE FROM filter_configs WHERE config_id = ?",
		"DELETE FROM site_configs WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertSite(tx *sql.Tx, configID int64, site *SiteData) error {
	_, err := tx.Exec(`
		INSERT INTO site_configs (config_id, name, min_lon, min_lat, max_lon, max_lat)
		VALUES (?, ?, ?, ?, ?, ?)
	`, configID, site.Name, site.BoundingBox.MinLon, site.BoundingBox.MinLat,
		site.BoundingBox.MaxLon, site.BoundingBox.MaxLat)
	return err
}

func (s *SQLiteProvider) insertFilters(tx *sql.Tx, configID int64, filters *FilterData) error {
	_, err := tx.Exec(`
		INSERT INTO filter_configs (config_id, max_canopy_rate, max_ground_rate)
		VALUES (?, ?, ?)
	`, configID, nullFloatPtr(filters.MaxCanopyRate), nullFloatPtr(filters.MaxGroundRate))
	if err != nil {
		return err
	}

	codes := map[string][]int{
		"clear_atmosphere":    filters.ClearAtmosphere,
		"excluded_land_cover": filters.ExcludedLandCover,
	}
	for kind, list := range codes {
		for pos, code := range list {
			_, err := tx.Exec(`
				INSERT INTO filter_codes (config_id, kind, position, code)
				VALUES (?, ?, ?, ?)
			`, configID, kind, pos, code)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLiteProvider) insertFit(tx *sql.Tx, configID int64, fit *FitData) error {
	_, err := tx.Exec(`
		INSERT INTO fit_configs (config_id, correlation_threshold, max_iterations, tau,
		                         gradient_tol, step_tol, cost_tol, drop_degenerate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, configID, nullFloat64(fit.CorrelationThreshold), nullInt64(fit.MaxIterations),
		nullFloat64(fit.Tau), nullFloat64(fit.GradientTol), nullFloat64(fit.StepTol),
		nullFloat64(fit.CostTol), fit.DropDegenerate)
	return err
}

func (s *SQLiteProvider) insertOutput(tx *sql.Tx, configID int64, output *OutputData) error {
	_, err := tx.Exec(`
		INSERT INTO output_configs (config_id, dir, format, plot_width_cm, plot_height_cm)
		VALUES (?, ?, ?, ?, ?)
	`, configID, nullString(output.Dir), nullString(output.Format),
		nullFloat64(output.PlotWidthCm), nullFloat64(output.PlotHeightCm))
	return err
}

func (s *SQLiteProvider) insertPlot(tx *sql.Tx, configID int64, position int, plot *PlotData) error {
	result, err := tx.Exec(`
		INSERT INTO plot_configs (config_id, position, name, title, column_name, bins, density,
		                          x_min, x_max, y_min, y_max, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, configID, position, plot.Name, nullString(plot.Title), plot.Column, nullInt64(plot.Bins),
		plot.Density, nullFloatPtr(plot.XMin), nullFloatPtr(plot.XMax),
		nullFloatPtr(plot.YMin), nullFloatPtr(plot.YMax), plot.Output)
	if err != nil {
		return err
	}

	plotID, err := result.LastInsertId()
	if err != nil {
		return err
	}

	for pos, series := range plot.Series {
		_, err := tx.Exec(`
			INSERT INTO plot_series (plot_id, position, label, input, color)
			VALUES (?, ?, ?, ?, ?)
		`, plotID, pos, series.Label, series.Input, nullString(series.Color))
		if err != nil {
			return err
		}
	}
	return nil
}

// Helper functions for handling nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat64(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullInt64(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
