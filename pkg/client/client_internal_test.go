package client

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/saveenergy/nwm/pkg/cache"
	"github.com/saveenergy/nwm/pkg/catalog"
	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
	"github.com/saveenergy/nwm/pkg/source"
	"github.com/saveenergy/nwm/pkg/types"
)

const doc = `<?xml version="1.0"?>
<timeSeriesResponse><timeSeries><values>
<value>1.0</value><value>2.0</value>
</values></timeSeries></timeSeriesResponse>`

type stubFetcher struct {
	body  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, types.Request) (io.ReadCloser, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func newTestClient(t *testing.T, stub *stubFetcher, opts ...Option) *Client {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	base := []Option{
		WithSourceFactory(func(*catalog.Archive, source.Settings) (source.Fetcher, error) {
			return stub, nil
		}),
		WithClock(func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }),
	}
	return New(cat, append(base, opts...)...)
}

func resolve(t *testing.T, c *Client, raw types.RawOptions) types.Request {
	t.Helper()
	req, err := c.Resolve(raw)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return req
}

func TestNewGeneratesRequestID(t *testing.T) {
	c := newTestClient(t, &stubFetcher{})
	if c.RequestID() == "" {
		t.Fatal("request id should be generated")
	}
	other := newTestClient(t, &stubFetcher{})
	if other.RequestID() == c.RequestID() {
		t.Fatal("request ids should differ between clients")
	}

	fixed := newTestClient(t, &stubFetcher{}, WithSettings(source.Settings{RequestID: "abc"}))
	if fixed.RequestID() != "abc" {
		t.Fatalf("request id = %q, want abc", fixed.RequestID())
	}
	kept := newTestClient(t, &stubFetcher{}, WithSettings(source.Settings{ServiceURL: "http://localhost"}))
	if kept.RequestID() == "" {
		t.Fatal("WithSettings without id should keep the generated one")
	}
}

func TestDownloadWritesOutput(t *testing.T) {
	stub := &stubFetcher{body: doc}
	c := newTestClient(t, stub)
	out := filepath.Join(t.TempDir(), "flow.wml")
	req := resolve(t, c, types.RawOptions{Output: out})

	res, err := c.Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", stub.calls)
	}
	if res.Values != 2 || res.Bytes != len(doc) || res.Cached {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RequestID != c.RequestID() || res.SchemaVersion != SchemaVersion {
		t.Fatalf("result identity = %q/%q", res.RequestID, res.SchemaVersion)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != doc {
		t.Fatalf("output = %q", data)
	}
}

func TestDownloadRejectsInvalidDocument(t *testing.T) {
	stub := &stubFetcher{body: "<html><body>Service unavailable</body></html>"}
	c := newTestClient(t, stub)
	dir := t.TempDir()
	req := resolve(t, c, types.RawOptions{Output: filepath.Join(dir, "flow.wml")})

	_, err := c.Download(context.Background(), req)
	if nwmerrors.CodeOf(err) != nwmerrors.ErrCodeInvalidDocument {
		t.Fatalf("err = %v, want %s", err, nwmerrors.ErrCodeInvalidDocument)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("no file should be written, found %d", len(entries))
	}
}

func TestDownloadPassesFetchError(t *testing.T) {
	stub := &stubFetcher{err: nwmerrors.ErrNotFound("nothing there")}
	c := newTestClient(t, stub)
	req := resolve(t, c, types.RawOptions{Output: filepath.Join(t.TempDir(), "flow.wml")})

	_, err := c.Download(context.Background(), req)
	var fe *nwmerrors.FetchError
	if !errors.As(err, &fe) || fe.Code != nwmerrors.ErrCodeNotFound {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestFetchSourceFactoryError(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	c := New(cat, WithSourceFactory(func(*catalog.Archive, source.Settings) (source.Fetcher, error) {
		return nil, errors.New("no credentials")
	}))
	req := resolve(t, c, types.RawOptions{Output: filepath.Join(t.TempDir(), "x.wml")})
	if _, err := c.Fetch(context.Background(), req); nwmerrors.CodeOf(err) != nwmerrors.ErrCodeFetchFailed {
		t.Fatalf("err = %v, want FETCH_FAILED", err)
	}
}

func TestDownloadUsesCache(t *testing.T) {
	store, err := cache.New(filepath.Join(t.TempDir(), "cache.db"), 10, time.Hour)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer store.Close()

	stub := &stubFetcher{body: doc}
	c := newTestClient(t, stub, WithCache(store))
	dir := t.TempDir()

	first := resolve(t, c, types.RawOptions{Output: filepath.Join(dir, "a.wml")})
	if _, err := c.Download(context.Background(), first); err != nil {
		t.Fatalf("first Download: %v", err)
	}
	second := resolve(t, c, types.RawOptions{Output: filepath.Join(dir, "b.wml")})
	res, err := c.Download(context.Background(), second)
	if err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", stub.calls)
	}
	if !res.Cached {
		t.Fatal("second download should be served from cache")
	}
	if _, err := os.Stat(filepath.Join(dir, "b.wml")); err != nil {
		t.Fatalf("cached download should still write output: %v", err)
	}
}
