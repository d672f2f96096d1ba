// Package source retrieves time series documents from an archive backend.
// It is the only part of the tool that talks to the network.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/saveenergy/nwm/pkg/catalog"
	"github.com/saveenergy/nwm/pkg/types"
)

// Fetcher returns the document selected by a validated request. Callers
// close the returned reader.
type Fetcher interface {
	Fetch(ctx context.Context, req types.Request) (io.ReadCloser, error)
}

// Settings carries runtime overrides applied on top of a catalog source.
type Settings struct {
	// ServiceURL replaces the URL of every http source when set.
	ServiceURL string
	HTTPClient *http.Client
	RequestID  string
	S3         S3Config
}

// Factory builds the Fetcher for one archive.
type Factory func(archive *catalog.Archive, settings Settings) (Fetcher, error)

// New picks the backend named by the archive's source type.
func New(archive *catalog.Archive, settings Settings) (Fetcher, error) {
	if archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	switch archive.Source.Type {
	case catalog.SourceHTTP:
		baseURL := archive.Source.URL
		if settings.ServiceURL != "" {
			baseURL = settings.ServiceURL
		}
		var opts []HTTPOption
		if settings.HTTPClient != nil {
			opts = append(opts, WithHTTPClient(settings.HTTPClient))
		}
		if settings.RequestID != "" {
			opts = append(opts, WithRequestID(settings.RequestID))
		}
		return NewHTTPFetcher(baseURL, opts...), nil
	case catalog.SourceS3:
		return NewS3Fetcher(settings.S3, archive.Source.Bucket, archive.Source.KeyTemplate)
	default:
		return nil, fmt.Errorf("unsupported source type %q", archive.Source.Type)
	}
}

// RenderKey expands the placeholders of an object key template.
func RenderKey(template string, req types.Request) string {
	r := strings.NewReplacer(
		"{archive}", string(req.Archive),
		"{config}", string(req.Config),
		"{geom}", string(req.Geom),
		"{variable}", string(req.Variable),
		"{comid}", strings.ReplaceAll(req.ComidString(), ",", "_"),
		"{date}", req.StartDate.Format("20060102"),
		"{end_date}", req.EndDate.Format("20060102"),
		"{init_time}", pad2(req.InitTime),
		"{time_lag}", pad2(req.TimeLag),
	)
	return r.Replace(template)
}

func pad2(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
