// Command concat-rates concatenates ICESat-2 photon-count tables, clips them to
// the study site and groups them by snow scene classification.
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
	cfgFile := flag.String("config", "", "Path to configuration source (YAML file or SQLite database); defaults apply when empty")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <photon count dir> <snow scene csv> [output dir]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 || flag.NArg() > 3 {
		flag.Usage()
		os.Exit(2)
	}

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
	if err := application.ConcatRates(flag.Arg(0), flag.Arg(1), flag.Arg(2)); err != nil {
		log.Errorf("concat-rates failed: %v", err)
		os.Exit(1)
	}
}
