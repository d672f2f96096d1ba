// Package mcp implements the `nwm mcp` subcommand: an MCP (Model Context
// Protocol) server over stdio transport. Agents can spawn this process and
// validate or retrieve time series without building command lines.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/saveenergy/nwm/internal/config"
	"github.com/saveenergy/nwm/internal/logging"
	"github.com/saveenergy/nwm/pkg/catalog"
	"github.com/saveenergy/nwm/pkg/client"
	"github.com/saveenergy/nwm/pkg/source"
	"github.com/saveenergy/nwm/pkg/types"
)

type toolArg struct {
	name string
	desc string
}

// optionArgs describes the option arguments with the names cat offers.
func optionArgs(cat *catalog.Catalog) []toolArg {
	return []toolArg{
		{"archive", fmt.Sprintf("Archive: %s (default: %s)", strings.Join(cat.ArchiveNames(), ", "), cat.DefaultArchive)},
		{"config", fmt.Sprintf("Configuration: %s (default: %s)", strings.Join(cat.ConfigNames(), ", "), cat.DefaultConfig)},
		{"geom", fmt.Sprintf("Geometry: %s (default: %s)", strings.Join(cat.GeomNames(), ", "), cat.DefaultGeom)},
		{"variable", fmt.Sprintf("Variable of the geometry, one of %s (default: first variable of geom)", strings.Join(cat.VariableNames(), ", "))},
		{"comid", "Feature id, or \"x,y\" for grid geometries (default: geometry's sample id)"},
		{"init_time", "Initialization hour allowed by the config (default: first)"},
		{"time_lag", "Time lag in hours allowed by the config (default: first)"},
		{"start_date", "First date, YYYY-MM-DD (default: first day of the archive)"},
		{"end_date", "Last date, YYYY-MM-DD (default: start_date; only multi-day configs span days)"},
	}
}

// ToolDefinitions returns the tools served by Run for cat.
func ToolDefinitions(cat *catalog.Catalog) []mcp.Tool {
	args := optionArgs(cat)
	requestOpts := func(extra ...mcp.ToolOption) []mcp.ToolOption {
		var opts []mcp.ToolOption
		for _, a := range args {
			opts = append(opts, mcp.WithString(a.name, mcp.Description(a.desc)))
		}
		return append(opts, extra...)
	}

	listTool := mcp.NewTool("list_catalog",
		mcp.WithDescription("List the archives (with available date windows), configuration profiles, geometries and variables that requests may use."),
	)
	validateTool := mcp.NewTool("validate_request",
		requestOpts(mcp.WithDescription("Check a retrieval request without fetching anything. Returns the fully resolved request with defaults filled in, or the first invalid option and its valid values."))...,
	)
	fetchTool := mcp.NewTool("fetch_timeseries",
		requestOpts(
			mcp.WithDescription("Retrieve a National Water Model time series as WaterML. Returns the WaterML document, or writes it to `output` and returns a summary when a path is given."),
			mcp.WithString("output", mcp.Description("File to write the WaterML document to (optional)")),
		)...,
	)
	return []mcp.Tool{listTool, validateTool, fetchTool}
}

// toolHandler serves the tools against one catalog and settings snapshot.
type toolHandler struct {
	catalog   *catalog.Catalog
	settings  source.Settings
	timeout   time.Duration
	newSource source.Factory
	now       func() time.Time
}

// Run starts the MCP stdio server. Blocks until stdin closes or signal received.
func Run(version string) int {
	h, err := loadHandler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "nwm mcp: error: %v\n", err)
		return 2
	}

	s := server.NewMCPServer(
		"nwm",
		version,
		server.WithToolCapabilities(true),
	)
	tools := ToolDefinitions(h.catalog)
	s.AddTool(tools[0], h.handleListCatalog)
	s.AddTool(tools[1], h.handleValidateRequest)
	s.AddTool(tools[2], h.handleFetchTimeseries)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "nwm mcp: error: %v\n", err)
		return 1
	}
	return 0
}

func loadHandler() (*toolHandler, error) {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFile(config.DefaultPath(), false); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
		logging.Init(level)
	}

	var cat *catalog.Catalog
	var err error
	if cfg.CatalogFile != "" {
		cat, err = catalog.Load(cfg.CatalogFile)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return nil, err
	}
	return &toolHandler{
		catalog: cat,
		settings: source.Settings{
			ServiceURL: cfg.ServiceURL,
			S3: source.S3Config{
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
				Region:    cfg.S3Region,
				UseSSL:    cfg.S3UseSSL,
			},
		},
		timeout:   cfg.Timeout,
		newSource: source.New,
		now:       time.Now,
	}, nil
}

// --- Tool Handlers ---

func (h *toolHandler) handleListCatalog(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.catalog.Summarize(h.now()))
}

func (h *toolHandler) handleValidateRequest(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resolved, err := h.client().Resolve(rawOptions(req))
	if err != nil {
		return optionErrorResult(err), nil
	}
	return jsonResult(resolved)
}

func (h *toolHandler) handleFetchTimeseries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c := h.client()
	raw := rawOptions(req)
	resolved, err := c.Resolve(raw)
	if err != nil {
		return optionErrorResult(err), nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if !raw.IsSet("output") {
		data, err := c.Fetch(fetchCtx, resolved)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Fetch failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	result, err := c.Download(fetchCtx, resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Fetch failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (h *toolHandler) client() *client.Client {
	return client.New(h.catalog,
		client.WithSourceFactory(h.newSource),
		client.WithClock(h.now),
		client.WithSettings(h.settings),
	)
}

// rawOptions reads the option arguments of a tool call. Numbers are
// accepted for the integer options since agents often send them unquoted.
// A null argument counts as absent; an empty string is a given, blank value.
func rawOptions(req mcp.CallToolRequest) types.RawOptions {
	var raw types.RawOptions
	for key, arg := range req.GetArguments() {
		var v string
		switch a := arg.(type) {
		case nil:
			continue
		case string:
			v = strings.TrimSpace(a)
		case float64:
			v = strconv.FormatFloat(a, 'f', -1, 64)
		default:
			v = fmt.Sprint(a)
		}
		if slices.Contains(types.OptionNames, key) {
			_ = raw.Set(key, v)
		}
	}
	return raw
}

func optionErrorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Invalid request: %v", err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("JSON encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
