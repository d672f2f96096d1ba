package fetch

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/saveenergy/nwm/pkg/types"
)

var errExtraArgs = errors.New("unexpected arguments")

// Options are the values given on the command line. Options not given fall
// back to the settings file, then the catalog; an option given as
// --name= is recorded in Raw.Blank and rejected by the resolver.
type Options struct {
	Raw types.RawOptions

	List        bool
	DryRun      bool
	JSON        bool
	Verbose     bool
	Quiet       bool
	NoColor     bool
	Timeout     int
	ConfigFile  string
	CatalogFile string
}

// scanHelpVersion finds --help or --version anywhere before "--". They are
// answered before any other flag is looked at, so an invalid option next
// to them cannot turn them into a failure.
func scanHelpVersion(args []string) (help, version bool) {
	for _, arg := range args {
		if arg == "--" {
			return false, false
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		switch name {
		case "help", "h":
			return true, false
		case "version":
			return false, true
		}
	}
	return false, false
}

// scanJSON reports whether --json is among args, so that errors raised
// while parsing the rest of the flags can already be reported as JSON.
func scanJSON(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "json" {
			continue
		}
		if !hasValue {
			return true
		}
		on, err := strconv.ParseBool(value)
		return err == nil && on
	}
	return false
}

func parseFlags(args []string) (*Options, map[string]bool, error) {
	opts := &Options{}
	flagsSet := make(map[string]bool)

	flagSet := flag.NewFlagSet("nwm", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.Raw.Archive, "archive", "", "Archive name (see --list)")
	flagSet.StringVar(&opts.Raw.Config, "config", "", "Configuration profile")
	flagSet.StringVar(&opts.Raw.Geom, "geom", "", "Geometry")
	flagSet.StringVar(&opts.Raw.Variable, "variable", "", "Variable of the geometry")
	flagSet.StringVar(&opts.Raw.Comid, "comid", "", "Feature id, or x,y for grid geometries")
	flagSet.StringVar(&opts.Raw.InitTime, "init_time", "", "Forecast initialization hour")
	flagSet.StringVar(&opts.Raw.TimeLag, "time_lag", "", "Time lag in hours")
	flagSet.StringVar(&opts.Raw.StartDate, "start_date", "", "First date (YYYY-MM-DD)")
	flagSet.StringVar(&opts.Raw.EndDate, "end_date", "", "Last date (YYYY-MM-DD)")
	flagSet.StringVar(&opts.Raw.Output, "output", "", "Output file")

	flagSet.BoolVar(&opts.List, "list", false, "List archives, configs, geometries and variables")
	flagSet.BoolVar(&opts.DryRun, "dry-run", false, "Validate and print the request without fetching")
	flagSet.BoolVar(&opts.JSON, "json", false, "Output as JSON")
	flagSet.BoolVar(&opts.Verbose, "verbose", false, "Verbose output")
	flagSet.BoolVar(&opts.Verbose, "v", false, "Verbose output (short)")
	flagSet.BoolVar(&opts.Quiet, "quiet", false, "Quiet mode (errors only)")
	flagSet.BoolVar(&opts.Quiet, "q", false, "Quiet mode (errors only) (short)")
	flagSet.BoolVar(&opts.NoColor, "no-color", false, "Disable color output")
	flagSet.IntVar(&opts.Timeout, "timeout", 0, "Request timeout in seconds (1-600)")
	flagSet.StringVar(&opts.ConfigFile, "config-file", "", "Settings file")
	flagSet.StringVar(&opts.CatalogFile, "catalog-file", "", "Catalog file")

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", errExtraArgs, strings.Join(rest, " "))
	}

	flagSet.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
		if slices.Contains(types.OptionNames, f.Name) {
			_ = opts.Raw.Set(f.Name, f.Value.String())
		}
		switch f.Name {
		case "v":
			flagsSet["verbose"] = true
		case "q":
			flagsSet["quiet"] = true
		}
	})
	return opts, flagsSet, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: nwm [flags]

Download a National Water Model time series as a WaterML (.wml) file.

Options:
  --archive string      Archive name (default: the catalog's default archive)
  --config string       Configuration profile (default: the catalog's default)
  --geom string         Geometry (default: the catalog's default geometry)
  --variable string     Variable of the geometry (default: its first variable)
  --comid string        Feature id, or x,y for grid geometries
                        (default: the geometry's sample id)
  --init_time int       Initialization hour allowed by the config (default: first)
  --time_lag int        Time lag in hours allowed by the config (default: first)
  --start_date date     First date, YYYY-MM-DD (default: first archive day)
  --end_date date       Last date, YYYY-MM-DD (default: start_date)
  --output path         Output file (default: nwm.wml)

  Run nwm --list for the archives, configs, geometries and variables the
  catalog offers (with --catalog-file, the ones of that catalog).

Flags:
  -h, --help            Show help
  --version             Print version
  --list                List archives, configs, geometries and variables
  --dry-run             Validate and print the request, fetch nothing
  --json                Output results and errors as JSON
  -v, --verbose         Verbose output
  -q, --quiet           Quiet mode (errors only)
  --no-color            Disable color output
  --timeout int         Request timeout in seconds (1-600) (default: 60)
  --config-file path    Settings file (default: ~/.config/nwm/config.yaml)
  --catalog-file path   Catalog file replacing the built-in one

Commands:
  nwm mcp               Run as MCP server (stdio transport, for AI agents)

Environment:
  NWM_SERVICE_URL       Data service URL override
  NWM_CATALOG_FILE      Catalog file
  NWM_TIMEOUT           Request timeout (seconds or duration)
  NWM_LOG_LEVEL         debug, info, warn, error
  NWM_CACHE_PATH        Enable the local document cache at this path
  NWM_S3_ENDPOINT       S3 endpoint for s3 archives (with NWM_S3_ACCESS_KEY,
                        NWM_S3_SECRET_KEY, NWM_S3_REGION, NWM_S3_USE_SSL)
  NO_COLOR              Disable colors

Exit codes:
  0   Success
  1   Retrieval or write failed
  2   Invalid option or settings
  130 Interrupted

Examples:
  nwm --archive=harvey --config=short_range --comid=5781915
  nwm --geom=forcing --variable=RAINRATE --comid=1635,2030 --output=rain.wml
  nwm --config=analysis_assim --start_date=2017-08-25 --end_date=2017-08-31
  nwm --list
`)
}
