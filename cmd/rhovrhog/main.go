// Command rhovrhog fits the canopy/ground photon rate ratio of every track in a
// segment table and writes the result table and a scatter plot of the fit.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sodankyla/phrates/internal/app"
	"github.com/sodankyla/phrates/internal/constants"
	"github.com/sodankyla/phrates/internal/log"
	"github.com/sodankyla/phrates/internal/rhovrhog"
	"github.com/sodankyla/phrates/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "", "Path to configuration source (YAML file or SQLite database); defaults apply when empty")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	format := flag.String("format", "", "Result table format: csv, json or msgpack (overrides the configuration)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <segment csv> <name> [output dir]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("rhovrhog %s\n", constants.Version)
		os.Exit(0)
	}

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
	if *format != "" {
		cfgData.Output.Format = *format
		if err := cfgData.Validate(); err != nil {
			log.Errorf("Invalid -format: %v", err)
			os.Exit(1)
		}
	}

	application := app.New(cfgData, log.GetSugaredLogger())
	out, err := application.FitRates(flag.Arg(0), flag.Arg(1), flag.Arg(2))
	if err != nil {
		var degenerate *rhovrhog.DegenerateTrackError
		if errors.As(err, &degenerate) {
			log.Errorw("fit failed on a degenerate track; set fit.drop_degenerate to skip such tracks",
				"track", degenerate.TrackKey, "reason", degenerate.Reason)
		}
		log.Errorf("rhovrhog failed: %v", err)
		os.Exit(1)
	}

	for _, r := range out.Envelope.Results {
		fmt.Printf("%-16s ρv=%8.4f ρg=%8.4f weight=%6.4f ρv/ρg=%7.4f\n",
			r.Track, r.CanopyIntercept, r.GroundIntercept, r.Weight, r.Ratio)
	}
}
