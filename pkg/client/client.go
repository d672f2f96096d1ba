// Package client provides a Go SDK for retrieving National Water Model time
// series programmatically. Agents and applications can import this package
// instead of shelling out to the CLI.
//
// Usage:
//
//	cat, _ := catalog.Default()
//	c := client.New(cat)
//	req, err := c.Resolve(types.RawOptions{Archive: "harvey", Config: "short_range"})
//	result, err := c.Download(ctx, req)
package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/saveenergy/nwm/internal/logging"
	"github.com/saveenergy/nwm/internal/options"
	"github.com/saveenergy/nwm/internal/output"
	"github.com/saveenergy/nwm/pkg/cache"
	"github.com/saveenergy/nwm/pkg/catalog"
	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
	"github.com/saveenergy/nwm/pkg/source"
	"github.com/saveenergy/nwm/pkg/types"
)

// SchemaVersion is bumped whenever Result changes shape.
const SchemaVersion = "1"

// MaxDocumentBytes caps how much of a response is read.
const MaxDocumentBytes = 64 << 20

// Client resolves options against one catalog and retrieves the selected
// document through a source backend.
type Client struct {
	catalog   *catalog.Catalog
	newSource source.Factory
	cache     *cache.Store
	now       func() time.Time
	logger    *logging.Logger
	settings  source.Settings
}

// Option configures the Client.
type Option func(*Client)

// WithSourceFactory replaces the backend constructor, typically in tests.
func WithSourceFactory(f source.Factory) Option {
	return func(c *Client) { c.newSource = f }
}

// WithCache stores retrieved documents in s and serves repeats from it.
func WithCache(s *cache.Store) Option {
	return func(c *Client) { c.cache = s }
}

// WithClock sets the time used to anchor rolling archive windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSettings passes backend overrides (service URL, S3 credentials, ...).
// A RequestID in s replaces the generated one.
func WithSettings(s source.Settings) Option {
	return func(c *Client) {
		id := c.settings.RequestID
		c.settings = s
		if c.settings.RequestID == "" {
			c.settings.RequestID = id
		}
	}
}

// New creates a client for cat. Each client carries one request id, sent
// to the data service and echoed in every Result.
func New(cat *catalog.Catalog, opts ...Option) *Client {
	c := &Client{
		catalog:   cat,
		newSource: source.New,
		now:       time.Now,
		logger:    logging.NewLogger("client"),
		settings:  source.Settings{RequestID: uuid.NewString()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RequestID() string {
	return c.settings.RequestID
}

// Resolve validates raw options into a Request.
func (c *Client) Resolve(raw types.RawOptions) (types.Request, error) {
	return options.Resolve(raw, c.catalog, c.now())
}

// Result describes a completed download.
type Result struct {
	SchemaVersion string        `json:"schema_version"`
	RequestID     string        `json:"request_id"`
	Output        string        `json:"output"`
	Bytes         int           `json:"bytes"`
	Values        int           `json:"values"`
	Cached        bool          `json:"cached"`
	DurationMs    int64         `json:"duration_ms"`
	Request       types.Request `json:"request"`
}

// Fetch retrieves and checks the document for req without writing anything.
func (c *Client) Fetch(ctx context.Context, req types.Request) ([]byte, error) {
	data, _, _, err := c.fetch(ctx, req)
	return data, err
}

// Download retrieves the document for req and writes it to req.Output. The
// backend is asked exactly once; on any failure no output file is left.
func (c *Client) Download(ctx context.Context, req types.Request) (*Result, error) {
	start := time.Now()
	if req.Output == "" {
		return nil, nwmerrors.ErrWriteFailed("(empty path)", fmt.Errorf("no output path"))
	}

	data, values, cached, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := output.WriteFile(req.Output, data); err != nil {
		return nil, err
	}

	c.logger.Info("wrote time series",
		logging.F("request_id", c.RequestID()),
		logging.F("output", req.Output),
		logging.F("bytes", len(data)),
		logging.F("values", values),
		logging.F("cached", cached))

	return &Result{
		SchemaVersion: SchemaVersion,
		RequestID:     c.RequestID(),
		Output:        req.Output,
		Bytes:         len(data),
		Values:        values,
		Cached:        cached,
		DurationMs:    time.Since(start).Milliseconds(),
		Request:       req,
	}, nil
}

func (c *Client) fetch(ctx context.Context, req types.Request) (data []byte, values int, cached bool, err error) {
	key := req.Fingerprint()
	if c.cache != nil {
		entry, err := c.cache.Get(key)
		if err != nil {
			c.logger.Warn("cache lookup failed", logging.F("error", err))
		} else if entry != nil {
			values, err := output.CheckWaterML(entry.Data)
			if err == nil {
				c.logger.Debug("cache hit", logging.F("key", key[:12]))
				return entry.Data, values, true, nil
			}
			c.logger.Warn("discarding unreadable cache entry", logging.F("error", err))
		}
	}

	archive, ok := c.catalog.Archives[req.Archive]
	if !ok {
		return nil, 0, false, nwmerrors.ErrFetchFailed("configure source",
			fmt.Errorf("archive %q is not in the catalog", req.Archive))
	}
	fetcher, err := c.newSource(archive, c.settings)
	if err != nil {
		return nil, 0, false, nwmerrors.ErrFetchFailed("configure source", err)
	}

	c.logger.Debug("fetching",
		logging.F("request_id", c.RequestID()),
		logging.F("archive", req.Archive),
		logging.F("config", req.Config),
		logging.F("geom", req.Geom),
		logging.F("variable", req.Variable),
		logging.F("comid", req.ComidString()),
		logging.F("start_date", req.StartDate.Format(types.DateLayout)),
		logging.F("end_date", req.EndDate.Format(types.DateLayout)))

	body, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, 0, false, err
	}
	defer body.Close()

	data, err = io.ReadAll(io.LimitReader(body, MaxDocumentBytes+1))
	if err != nil {
		return nil, 0, false, nwmerrors.ErrFetchFailed("read response", err)
	}
	if len(data) > MaxDocumentBytes {
		return nil, 0, false, nwmerrors.ErrInvalidDocument(
			fmt.Sprintf("response exceeds %d bytes", MaxDocumentBytes), nil)
	}
	values, err = output.CheckWaterML(data)
	if err != nil {
		return nil, 0, false, err
	}

	if c.cache != nil {
		if err := c.cache.Put(key, data); err != nil {
			c.logger.Warn("cache store failed", logging.F("error", err))
		}
	}
	return data, values, false, nil
}
