package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
	"github.com/saveenergy/nwm/pkg/types"
)

// maxErrorBody bounds how much of a failed response is quoted in an error.
const maxErrorBody = 512

// HTTPFetcher requests WaterML from a GetWaterML style data service.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
	requestID  string
}

type HTTPOption func(*HTTPFetcher)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(f *HTTPFetcher) { f.httpClient = hc }
}

// WithRequestID sends id as X-Request-ID.
func WithRequestID(id string) HTTPOption {
	return func(f *HTTPFetcher) { f.requestID = id }
}

func NewHTTPFetcher(baseURL string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// QueryURL builds the service URL for req.
func (f *HTTPFetcher) QueryURL(req types.Request) (string, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse service URL: %w", err)
	}
	q := u.Query()
	q.Set("archive", string(req.Archive))
	q.Set("config", string(req.Config))
	q.Set("geom", string(req.Geom))
	q.Set("variable", string(req.Variable))
	q.Set("COMID", req.ComidString())
	q.Set("time", pad2(req.InitTime))
	q.Set("lag", "t"+pad2(req.TimeLag)+"z")
	q.Set("startDate", req.StartDate.Format(types.DateLayout))
	q.Set("endDate", req.EndDate.Format(types.DateLayout))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req types.Request) (io.ReadCloser, error) {
	target, err := f.QueryURL(req)
	if err != nil {
		return nil, nwmerrors.ErrFetchFailed("build request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nwmerrors.ErrFetchFailed("build request", err)
	}
	httpReq.Header.Set("Accept", "application/xml, text/xml")
	if f.requestID != "" {
		httpReq.Header.Set("X-Request-ID", f.requestID)
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, nwmerrors.ErrFetchFailed("request "+f.baseURL, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nwmerrors.ErrNotFound(fmt.Sprintf("no data for %s/%s/%s on %s",
			req.Config, req.Geom, req.Variable, req.StartDate.Format(types.DateLayout)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, nwmerrors.ErrFetchFailed(fmt.Sprintf("service returned %d", resp.StatusCode),
			fmt.Errorf("%s", body))
	}
	return resp.Body, nil
}
