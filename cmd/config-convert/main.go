// Command config-convert loads a YAML run configuration into a SQLite
// configuration database.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sodankyla/phrates/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	// Store the effective configuration so both backends behave the same.
	configData.ApplyDefaults()
	if err := configData.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
		printConfigSummary(configData)
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	// Opening the provider creates the schema.
	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func printConfigSummary(c *config.ConfigData) {
	bb := c.Site.BoundingBox
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Site: %s (%.2f, %.2f, %.2f, %.2f)\n", c.Site.Name, bb.MinLon, bb.MinLat, bb.MaxLon, bb.MaxLat)

	canopy, ground := c.Filters.RateCaps()
	fmt.Printf("Filters:\n")
	fmt.Printf("  clear atmosphere: %v\n", c.Filters.ClearAtmosphere)
	fmt.Printf("  excluded land cover: %v\n", c.Filters.ExcludedLandCover)
	fmt.Printf("  rate caps: canopy < %g, ground < %g\n", canopy, ground)

	fmt.Printf("Fit: correlation threshold %g, max %d iterations, drop degenerate %t\n",
		c.Fit.CorrelationThreshold, c.Fit.MaxIterations, c.Fit.DropDegenerate)
	fmt.Printf("Output: %s in %s\n", c.Output.Format, c.Output.Dir)

	fmt.Printf("Plots (%d):\n", len(c.Plots))
	for _, p := range c.Plots {
		fmt.Printf("  - %s: %s, %d series -> %s\n", p.Name, p.Column, len(p.Series), p.Output)
	}
}
