// Package options turns raw option strings into a validated types.Request.
//
// Resolution runs in three phases and stops at the first failure:
// per-field syntax and membership, per-profile ranges (values the chosen
// config/geom/archive actually offers), then cross-field constraints. A
// Request only exists once all three pass.
package options

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/saveenergy/nwm/pkg/catalog"
	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
	"github.com/saveenergy/nwm/pkg/types"
)

// DefaultOutput is the output path used when --output is not given.
const DefaultOutput = "nwm.wml"

// Resolve validates raw against cat. now anchors rolling archive windows
// and is the only source of time, so Resolve is deterministic for a given now.
func Resolve(raw types.RawOptions, cat *catalog.Catalog, now time.Time) (types.Request, error) {
	var req types.Request

	// Phase 1: each field on its own.
	v, err := value(raw, "archive", string(cat.DefaultArchive))
	if err != nil {
		return types.Request{}, err
	}
	archiveName := types.Archive(v)
	archive, ok := cat.Archives[archiveName]
	if !ok {
		return types.Request{}, nwmerrors.ErrUnknownValue("archive", raw.Archive, "archive", cat.ArchiveNames())
	}
	req.Archive = archiveName

	if v, err = value(raw, "config", string(cat.DefaultConfig)); err != nil {
		return types.Request{}, err
	}
	configName := types.Config(v)
	profile, ok := cat.Configs[configName]
	if !ok {
		return types.Request{}, nwmerrors.ErrUnknownValue("config", raw.Config, "config", cat.ConfigNames())
	}
	req.Config = configName

	if v, err = value(raw, "geom", string(cat.DefaultGeom)); err != nil {
		return types.Request{}, err
	}
	geomName := types.Geom(v)
	geom, ok := cat.Geoms[geomName]
	if !ok {
		return types.Request{}, nwmerrors.ErrUnknownValue("geom", raw.Geom, "geom", cat.GeomNames())
	}
	req.Geom = geomName

	if v, err = value(raw, "variable", string(geom.Variables[0])); err != nil {
		return types.Request{}, err
	}
	variable := types.Variable(v)
	if !cat.HasVariable(variable) {
		return types.Request{}, nwmerrors.ErrUnknownValue("variable", raw.Variable, "variable", cat.VariableNames())
	}
	req.Variable = variable

	comidRaw, err := value(raw, "comid", geom.DefaultComid)
	if err != nil {
		return types.Request{}, err
	}
	comid, err := ParseComid(comidRaw)
	if err != nil {
		return types.Request{}, nwmerrors.ErrMalformedValue("comid", raw.Comid, err.Error())
	}
	req.Comid = comid

	initTime := profile.InitTimes[0]
	if v, err = value(raw, "init_time", ""); err != nil {
		return types.Request{}, err
	}
	if v != "" {
		if initTime, err = strconv.Atoi(v); err != nil {
			return types.Request{}, nwmerrors.ErrMalformedValue("init_time", raw.InitTime, "must be an integer hour")
		}
	}
	req.InitTime = initTime

	timeLag := profile.TimeLags[0]
	if v, err = value(raw, "time_lag", ""); err != nil {
		return types.Request{}, err
	}
	if v != "" {
		if timeLag, err = strconv.Atoi(v); err != nil {
			return types.Request{}, nwmerrors.ErrMalformedValue("time_lag", raw.TimeLag, "must be an integer number of hours")
		}
	}
	req.TimeLag = timeLag

	start := archive.DefaultStart(now)
	if v, err = value(raw, "start_date", ""); err != nil {
		return types.Request{}, err
	}
	if v != "" {
		if start, err = ParseDate(v); err != nil {
			return types.Request{}, nwmerrors.ErrMalformedValue("start_date", raw.StartDate, "must be a date in YYYY-MM-DD format")
		}
	}
	req.StartDate = start

	end := start
	if v, err = value(raw, "end_date", ""); err != nil {
		return types.Request{}, err
	}
	if v != "" {
		if end, err = ParseDate(v); err != nil {
			return types.Request{}, nwmerrors.ErrMalformedValue("end_date", raw.EndDate, "must be a date in YYYY-MM-DD format")
		}
	}
	req.EndDate = end

	output, err := value(raw, "output", DefaultOutput)
	if err != nil {
		return types.Request{}, err
	}
	if err := checkOutput(output); err != nil {
		return types.Request{}, nwmerrors.ErrMalformedValue("output", raw.Output, err.Error())
	}
	req.Output = output

	// Phase 2: values must be offered by the selected profile.
	if !geom.HasVariable(variable) {
		return types.Request{}, nwmerrors.ErrUnknownValue("variable", string(variable),
			fmt.Sprintf("variable for geom %s", geomName), variableStrings(geom.Variables))
	}
	if !profile.AllowsGeom(geomName) {
		return types.Request{}, nwmerrors.ErrInconsistent("geom", string(geomName),
			fmt.Sprintf("not available for config %s (available: %s)", configName, joinGeoms(profile.Geoms)))
	}
	if !slices.Contains(profile.InitTimes, initTime) {
		return types.Request{}, nwmerrors.ErrOutOfRange("init_time", strconv.Itoa(initTime),
			fmt.Sprintf("not an initialization hour of %s", configName), intStrings(profile.InitTimes))
	}
	if !slices.Contains(profile.TimeLags, timeLag) {
		return types.Request{}, nwmerrors.ErrOutOfRange("time_lag", strconv.Itoa(timeLag),
			fmt.Sprintf("not a time lag offered by %s", configName), intStrings(profile.TimeLags))
	}
	if geom.IDKind == catalog.IDKindGrid && len(comid) != 2 {
		return types.Request{}, nwmerrors.ErrMalformedValue("comid", comidRaw,
			fmt.Sprintf("geom %s is addressed by a grid cell: give exactly two integers x,y", geomName))
	}
	first, last := archive.Window(now)
	if start.Before(first) || start.After(last) {
		return types.Request{}, nwmerrors.ErrOutOfRange("start_date", start.Format(types.DateLayout),
			availability(archiveName, first, last), nil)
	}
	if end.Before(first) || end.After(last) {
		return types.Request{}, nwmerrors.ErrOutOfRange("end_date", end.Format(types.DateLayout),
			availability(archiveName, first, last), nil)
	}

	// Phase 3: cross-field constraints.
	if end.Before(start) {
		return types.Request{}, nwmerrors.ErrInconsistent("end_date", end.Format(types.DateLayout),
			fmt.Sprintf("must not precede --start_date %s", start.Format(types.DateLayout)))
	}
	span := int(end.Sub(start).Hours() / 24)
	if span > profile.MaxSpanDays {
		if profile.MaxSpanDays == 0 {
			return types.Request{}, nwmerrors.ErrInconsistent("end_date", end.Format(types.DateLayout),
				fmt.Sprintf("config %s retrieves a single date; --end_date must equal --start_date", configName))
		}
		return types.Request{}, nwmerrors.ErrInconsistent("end_date", end.Format(types.DateLayout),
			fmt.Sprintf("config %s allows at most %d days after --start_date", configName, profile.MaxSpanDays))
	}

	return req, nil
}

// ParseComid parses a single identifier or a comma separated list.
// Whitespace around entries is tolerated ("1635, 2030"); empty entries are not.
func ParseComid(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("at least one identifier is required")
	}
	var ids []int64
	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("entry %d of the list is empty", i+1)
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer identifier", part)
		}
		if id <= 0 {
			return nil, fmt.Errorf("identifier %d must be positive", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(types.DateLayout, strings.TrimSpace(s))
}

// checkOutput requires a file path whose directory already exists. The
// resolver never creates directories: a run produces one file or nothing.
func checkOutput(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("must not be empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("directory %s does not exist", dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func availability(archive types.Archive, first, last time.Time) string {
	return fmt.Sprintf("archive %s has data from %s to %s", archive,
		first.Format(types.DateLayout), last.Format(types.DateLayout))
}

// value returns the trimmed value of option name, or def when the option
// was not given. A given option that is blank is an error, never a default.
func value(raw types.RawOptions, name, def string) (string, error) {
	if !raw.IsSet(name) {
		return def, nil
	}
	v := strings.TrimSpace(raw.Get(name))
	if v == "" {
		return "", nwmerrors.ErrMalformedValue(name, raw.Get(name), "must not be empty")
	}
	return v, nil
}

func intStrings(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func variableStrings(values []types.Variable) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func joinGeoms(values []types.Geom) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return strings.Join(out, ", ")
}
