// Command rate-plots renders the histograms defined in the configuration.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sodankyla/phrates/internal/app"
	"github.com/sodankyla/phrates/internal/log"
	"github.com/sodankyla/phrates/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	baseDir := flag.String("dir", "", "Directory relative plot inputs and outputs are resolved against (default: output.dir)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData, err := config.Load(*cfgBackend, *cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	application := app.New(cfgData, log.GetSugaredLogger())
	if err := application.RatePlots(*baseDir); err != nil {
		log.Errorf("rate-plots failed: %v", err)
		os.Exit(1)
	}
}
