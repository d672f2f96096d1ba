package source_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/saveenergy/nwm/pkg/catalog"
	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
	"github.com/saveenergy/nwm/pkg/source"
	"github.com/saveenergy/nwm/pkg/types"
)

const sampleDoc = `<?xml version="1.0"?><timeSeriesResponse><timeSeries><values><value>1.5</value></values></timeSeries></timeSeriesResponse>`

func sampleRequest() types.Request {
	day := time.Date(2017, 8, 30, 0, 0, 0, 0, time.UTC)
	return types.Request{
		Archive:   types.ArchiveHarvey,
		Config:    types.ConfigShortRange,
		Geom:      types.GeomChannelRT,
		Variable:  types.VariableStreamflow,
		Comid:     []int64{5781915},
		InitTime:  6,
		TimeLag:   0,
		StartDate: day,
		EndDate:   day,
		Output:    "nwm.wml",
	}
}

func TestHTTPFetcherSendsQuery(t *testing.T) {
	var gotQuery map[string][]string
	var gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, sampleDoc)
	}))
	defer srv.Close()

	f := source.NewHTTPFetcher(srv.URL+"/api/GetWaterML/", source.WithRequestID("req-1"))
	body, err := f.Fetch(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != sampleDoc {
		t.Fatalf("body = %q", data)
	}

	want := map[string]string{
		"archive":   "harvey",
		"config":    "short_range",
		"geom":      "channel_rt",
		"variable":  "streamflow",
		"COMID":     "5781915",
		"time":      "06",
		"lag":       "t00z",
		"startDate": "2017-08-30",
		"endDate":   "2017-08-30",
	}
	for k, v := range want {
		if got := gotQuery[k]; len(got) != 1 || got[0] != v {
			t.Errorf("query %s = %v, want %q", k, got, v)
		}
	}
	if gotRequestID != "req-1" {
		t.Fatalf("X-Request-ID = %q, want req-1", gotRequestID)
	}
}

func TestHTTPFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := source.NewHTTPFetcher(srv.URL).Fetch(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if code := nwmerrors.CodeOf(err); code != nwmerrors.ErrCodeNotFound {
		t.Fatalf("code = %q, want %q", code, nwmerrors.ErrCodeNotFound)
	}
}

func TestHTTPFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	_, err := source.NewHTTPFetcher(srv.URL).Fetch(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if code := nwmerrors.CodeOf(err); code != nwmerrors.ErrCodeFetchFailed {
		t.Fatalf("code = %q, want %q", code, nwmerrors.ErrCodeFetchFailed)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error should mention status: %v", err)
	}
}

func TestHTTPFetcherCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sampleDoc)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := source.NewHTTPFetcher(srv.URL).Fetch(ctx, sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if code := nwmerrors.CodeOf(err); code != nwmerrors.ErrCodeCancelled {
		t.Fatalf("code = %q, want %q", code, nwmerrors.ErrCodeCancelled)
	}
}

func TestNewAppliesServiceURLOverride(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, sampleDoc)
	}))
	defer srv.Close()

	archive := &catalog.Archive{Source: catalog.Source{Type: catalog.SourceHTTP, URL: "http://127.0.0.1:1/unused"}}
	f, err := source.New(archive, source.Settings{ServiceURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	body, err := f.Fetch(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	body.Close()
	if hits != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}
}

func TestNewRejectsUnknownSource(t *testing.T) {
	archive := &catalog.Archive{Source: catalog.Source{Type: "ftp"}}
	if _, err := source.New(archive, source.Settings{}); err == nil {
		t.Fatal("expected error for unknown source type")
	}
	if _, err := source.New(nil, source.Settings{}); err == nil {
		t.Fatal("expected error for nil archive")
	}
}

func TestNewS3RequiresEndpoint(t *testing.T) {
	archive := &catalog.Archive{Source: catalog.Source{Type: catalog.SourceS3, Bucket: "nwm", KeyTemplate: "{date}.wml"}}
	if _, err := source.New(archive, source.Settings{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := source.New(archive, source.Settings{S3: source.S3Config{Endpoint: "https://s3.example.com"}}); err == nil {
		t.Fatal("expected error for endpoint with scheme")
	}
	if _, err := source.New(archive, source.Settings{S3: source.S3Config{Endpoint: "s3.example.com", UseSSL: true}}); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestRenderKey(t *testing.T) {
	req := sampleRequest()
	req.Geom = types.GeomForcing
	req.Variable = types.VariableRainRate
	req.Comid = []int64{1635, 2030}
	req.TimeLag = 12
	req.EndDate = req.StartDate.AddDate(0, 0, 2)

	got := source.RenderKey("{archive}/{config}/{geom}/{variable}/{comid}/{date}-{end_date}/t{init_time}z_lag{time_lag}.wml", req)
	want := "harvey/short_range/forcing/RAINRATE/1635_2030/20170830-20170901/t06z_lag12.wml"
	if got != want {
		t.Fatalf("RenderKey = %q, want %q", got, want)
	}
}

// fakeS3 serves one object at /<bucket>/<key> and answers NoSuchKey for
// anything else.
func fakeS3(t *testing.T, bucket, key, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+bucket+"/"+key {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
					`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			}
			return
		}
		w.Header().Set("Last-Modified", time.Date(2017, 9, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.Header().Set("Content-Type", "text/xml")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func s3Config(srv *httptest.Server) source.S3Config {
	return source.S3Config{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
	}
}

func TestS3FetcherReadsObject(t *testing.T) {
	const template = "{archive}/{config}/{geom}/{date}/t{init_time}z.wml"
	srv := fakeS3(t, "nwm", "harvey/short_range/channel_rt/20170830/t06z.wml", sampleDoc)

	f, err := source.NewS3Fetcher(s3Config(srv), "nwm", template)
	if err != nil {
		t.Fatalf("NewS3Fetcher: %v", err)
	}
	body, err := f.Fetch(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != sampleDoc {
		t.Fatalf("body = %q", data)
	}
}

func TestS3FetcherMissingKey(t *testing.T) {
	srv := fakeS3(t, "nwm", "other.wml", sampleDoc)

	f, err := source.NewS3Fetcher(s3Config(srv), "nwm", "{archive}/{date}.wml")
	if err != nil {
		t.Fatalf("NewS3Fetcher: %v", err)
	}
	_, err = f.Fetch(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if code := nwmerrors.CodeOf(err); code != nwmerrors.ErrCodeNotFound {
		t.Fatalf("code = %q, want %q (err: %v)", code, nwmerrors.ErrCodeNotFound, err)
	}
	if !strings.Contains(err.Error(), "s3://nwm/harvey/20170830.wml") {
		t.Fatalf("error should name the object: %v", err)
	}
}
