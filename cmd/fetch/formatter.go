package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/saveenergy/nwm/pkg/client"
	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
	"github.com/saveenergy/nwm/pkg/types"
)

// OutputFormatter renders the outcome of one invocation.
type OutputFormatter interface {
	FormatRequest(req types.Request)
	FormatResult(res *client.Result)
	FormatError(err error)
}

type JSONFormatter struct {
	writer io.Writer
}

type PlainFormatter struct {
	writer    io.Writer
	errWriter io.Writer
	quiet     bool
}

type InteractiveFormatter struct {
	writer    io.Writer
	errWriter io.Writer
	quiet     bool
	noColor   bool
}

type errorDocument struct {
	SchemaVersion string   `json:"schema_version"`
	Error         bool     `json:"error"`
	Code          string   `json:"code"`
	Option        string   `json:"option,omitempty"`
	Valid         []string `json:"valid,omitempty"`
	Message       string   `json:"message"`
}

type requestDocument struct {
	SchemaVersion string        `json:"schema_version"`
	DryRun        bool          `json:"dry_run"`
	Request       types.Request `json:"request"`
}

func (f *JSONFormatter) FormatRequest(req types.Request) {
	f.encode(requestDocument{SchemaVersion: client.SchemaVersion, DryRun: true, Request: req})
}

func (f *JSONFormatter) FormatResult(res *client.Result) {
	f.encode(res)
}

func (f *JSONFormatter) FormatError(err error) {
	doc := errorDocument{
		SchemaVersion: client.SchemaVersion,
		Error:         true,
		Code:          errorCode(err),
		Message:       err.Error(),
	}
	var oe *nwmerrors.OptionError
	if errors.As(err, &oe) {
		doc.Option = oe.Option
		doc.Valid = oe.Valid
	}
	f.encode(doc)
}

func (f *JSONFormatter) encode(v any) {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(f.writer, `{"error":true,"code":"ENCODE_FAILED","message":%q}`+"\n", err.Error())
	}
}

func (f *PlainFormatter) FormatRequest(req types.Request) {
	writeRequestLines(f.writer, req)
}

func (f *PlainFormatter) FormatResult(res *client.Result) {
	if f.quiet {
		return
	}
	fmt.Fprintf(f.writer, "output=%s\n", res.Output)
	fmt.Fprintf(f.writer, "bytes=%d\n", res.Bytes)
	fmt.Fprintf(f.writer, "values=%d\n", res.Values)
	fmt.Fprintf(f.writer, "cached=%t\n", res.Cached)
	fmt.Fprintf(f.writer, "request_id=%s\n", res.RequestID)
	fmt.Fprintf(f.writer, "duration_ms=%d\n", res.DurationMs)
}

func (f *PlainFormatter) FormatError(err error) {
	writeError(f.errWriter, err)
}

func (f *InteractiveFormatter) FormatRequest(req types.Request) {
	fmt.Fprintln(f.writer, f.paint("1", "Request is valid:"))
	fmt.Fprintf(f.writer, "  %-11s %s\n", "archive", req.Archive)
	fmt.Fprintf(f.writer, "  %-11s %s\n", "config", req.Config)
	fmt.Fprintf(f.writer, "  %-11s %s\n", "geom", req.Geom)
	fmt.Fprintf(f.writer, "  %-11s %s\n", "variable", req.Variable)
	fmt.Fprintf(f.writer, "  %-11s %s\n", "comid", req.ComidString())
	fmt.Fprintf(f.writer, "  %-11s %d\n", "init_time", req.InitTime)
	fmt.Fprintf(f.writer, "  %-11s %d\n", "time_lag", req.TimeLag)
	fmt.Fprintf(f.writer, "  %-11s %s\n", "start_date", req.StartDate.Format(types.DateLayout))
	fmt.Fprintf(f.writer, "  %-11s %s\n", "end_date", req.EndDate.Format(types.DateLayout))
	fmt.Fprintf(f.writer, "  %-11s %s\n", "output", req.Output)
}

func (f *InteractiveFormatter) FormatResult(res *client.Result) {
	if f.quiet {
		return
	}
	source := ""
	if res.Cached {
		source = " (from cache)"
	}
	fmt.Fprintf(f.writer, "%s %s%s\n", f.paint("32", "Saved"), res.Output, source)
	fmt.Fprintf(f.writer, "  %d values, %s, %d ms\n", res.Values, formatBytes(int64(res.Bytes)), res.DurationMs)
}

func (f *InteractiveFormatter) FormatError(err error) {
	writeError(f.errWriter, err)
}

func (f *InteractiveFormatter) paint(code, s string) string {
	if f.noColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func writeRequestLines(w io.Writer, req types.Request) {
	fmt.Fprintf(w, "archive=%s\n", req.Archive)
	fmt.Fprintf(w, "config=%s\n", req.Config)
	fmt.Fprintf(w, "geom=%s\n", req.Geom)
	fmt.Fprintf(w, "variable=%s\n", req.Variable)
	fmt.Fprintf(w, "comid=%s\n", req.ComidString())
	fmt.Fprintf(w, "init_time=%d\n", req.InitTime)
	fmt.Fprintf(w, "time_lag=%d\n", req.TimeLag)
	fmt.Fprintf(w, "start_date=%s\n", req.StartDate.Format(types.DateLayout))
	fmt.Fprintf(w, "end_date=%s\n", req.EndDate.Format(types.DateLayout))
	fmt.Fprintf(w, "output=%s\n", req.Output)
}

func writeError(w io.Writer, err error) {
	fmt.Fprintf(w, "nwm: error: %v\n", err)
	if nwmerrors.IsOptionError(err) || errors.Is(err, errUsage) {
		fmt.Fprintln(w, "See: nwm --help")
	}
}

// errorCode names err for machine readers. Errors outside the option and
// fetch families are usage or settings problems.
func errorCode(err error) string {
	if code := nwmerrors.CodeOf(err); code != "" {
		return code
	}
	if errors.Is(err, errUsage) {
		return "USAGE"
	}
	return "SETTINGS"
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func createFormatter(opts *Options, interactive bool, stdout, stderr io.Writer) OutputFormatter {
	if opts.JSON {
		return &JSONFormatter{writer: stdout}
	}
	if !interactive {
		return &PlainFormatter{writer: stdout, errWriter: stderr, quiet: opts.Quiet}
	}
	return &InteractiveFormatter{writer: stdout, errWriter: stderr, quiet: opts.Quiet, noColor: opts.NoColor}
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
