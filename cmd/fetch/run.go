// Package fetch implements the default `nwm` command: validate the option
// set and download the selected time series into one WaterML file.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/saveenergy/nwm/internal/config"
	"github.com/saveenergy/nwm/internal/logging"
	"github.com/saveenergy/nwm/pkg/cache"
	"github.com/saveenergy/nwm/pkg/catalog"
	"github.com/saveenergy/nwm/pkg/client"
	"github.com/saveenergy/nwm/pkg/source"
)

const (
	exitSuccess   = 0
	exitFailure   = 1
	exitUsage     = 2
	exitInterrupt = 130
)

var errUsage = errors.New("invalid usage")

// Replaced in tests.
var (
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
	newSource            = source.New
	now                  = time.Now
	isTerminal           = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
)

func Run(args []string, version string) int {
	if help, showVersion := scanHelpVersion(args); help || showVersion {
		if help {
			printUsage(stdout)
		} else {
			fmt.Fprintf(stdout, "nwm version %s\n", version)
		}
		return exitSuccess
	}

	opts, flagsSet, err := parseFlags(args)
	if err != nil {
		err = fmt.Errorf("%w: %v", errUsage, err)
		if scanJSON(args) {
			createFormatter(&Options{JSON: true}, false, stdout, stderr).FormatError(err)
		} else {
			writeError(stderr, err)
		}
		return exitUsage
	}
	if os.Getenv("NO_COLOR") != "" {
		opts.NoColor = true
	}
	formatter := createFormatter(opts, isTerminal(), stdout, stderr)

	cfg, err := loadSettings(opts, flagsSet)
	if err != nil {
		formatter.FormatError(err)
		return exitUsage
	}
	setupLogging(cfg, opts)

	cat, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		formatter.FormatError(err)
		return exitUsage
	}

	if opts.List {
		if opts.JSON {
			printCatalogJSON(stdout, cat, now())
		} else {
			printCatalog(stdout, cat, now())
		}
		return exitSuccess
	}

	clientOpts := []client.Option{
		client.WithSourceFactory(newSource),
		client.WithClock(now),
		client.WithSettings(source.Settings{
			ServiceURL: cfg.ServiceURL,
			S3: source.S3Config{
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
				Region:    cfg.S3Region,
				UseSSL:    cfg.S3UseSSL,
			},
		}),
	}
	if cfg.CachePath != "" {
		store, err := cache.New(cfg.CachePath, cfg.CacheMaxEntries, cfg.CacheTTL)
		if err != nil {
			logging.Warn("document cache disabled", logging.F("path", cfg.CachePath), logging.F("error", err))
		} else {
			defer store.Close()
			clientOpts = append(clientOpts, client.WithCache(store))
		}
	}
	c := client.New(cat, clientOpts...)

	raw := cfg.Defaults.Overlay(opts.Raw)
	req, err := c.Resolve(raw)
	if err != nil {
		formatter.FormatError(err)
		return exitUsage
	}

	if opts.DryRun {
		formatter.FormatRequest(req)
		return exitSuccess
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, cfg.Timeout)
	defer cancel()

	logging.Debug("request resolved",
		logging.F("request_id", c.RequestID()),
		logging.F("fingerprint", req.Fingerprint()[:12]),
		logging.F("days", len(req.Days())),
		logging.F("output", req.Output))

	res, err := c.Download(ctx, req)
	if err != nil {
		if sigCtx.Err() != nil {
			formatter.FormatError(fmt.Errorf("interrupted: %w", err))
			return exitInterrupt
		}
		formatter.FormatError(err)
		return exitFailure
	}
	formatter.FormatResult(res)
	return exitSuccess
}

// loadSettings layers built-in defaults, the settings file, NWM_*
// variables and finally flags.
func loadSettings(opts *Options, flagsSet map[string]bool) (*config.Config, error) {
	cfg := config.DefaultConfig()

	path, required := config.DefaultPath(), false
	if flagsSet["config-file"] {
		path, required = opts.ConfigFile, true
	}
	if err := cfg.LoadFile(path, required); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if flagsSet["catalog-file"] {
		cfg.CatalogFile = opts.CatalogFile
	}
	if flagsSet["timeout"] {
		cfg.Timeout = time.Duration(opts.Timeout) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		if flagsSet["timeout"] && (cfg.Timeout < config.MinTimeout || cfg.Timeout > config.MaxTimeout) {
			return nil, fmt.Errorf("%w: --timeout must be between %d and %d seconds, got %d", errUsage,
				int(config.MinTimeout.Seconds()), int(config.MaxTimeout.Seconds()), opts.Timeout)
		}
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, opts *Options) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelWarn
	}
	switch {
	case opts.Verbose:
		level = logging.LevelDebug
	case opts.Quiet:
		level = logging.LevelError
	}
	logging.Init(level)
	logging.GetLogger().SetLevel(level)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
