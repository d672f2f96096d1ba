package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted by --start_date and --end_date.
const DateLayout = "2006-01-02"

type Archive string

const (
	ArchiveHarvey  Archive = "harvey"
	ArchiveRolling Archive = "rolling"
)

type Config string

const (
	ConfigShortRange    Config = "short_range"
	ConfigMediumRange   Config = "medium_range"
	ConfigLongRange     Config = "long_range"
	ConfigAnalysisAssim Config = "analysis_assim"
)

type Geom string

const (
	GeomChannelRT Geom = "channel_rt"
	GeomLand      Geom = "land"
	GeomReservoir Geom = "reservoir"
	GeomForcing   Geom = "forcing"
)

type Variable string

const (
	VariableStreamflow Variable = "streamflow"
	VariableRainRate   Variable = "RAINRATE"
)

// OptionNames lists the retrieval options in command-line order.
var OptionNames = []string{
	"archive", "config", "geom", "variable", "comid",
	"init_time", "time_lag", "start_date", "end_date", "output",
}

// RawOptions holds option values exactly as supplied by a user, a config
// file or a tool call. An option is given when its value is non-empty or
// its name is in Blank; only options that were not given take defaults.
type RawOptions struct {
	Archive   string `yaml:"archive,omitempty" json:"archive,omitempty"`
	Config    string `yaml:"config,omitempty" json:"config,omitempty"`
	Geom      string `yaml:"geom,omitempty" json:"geom,omitempty"`
	Variable  string `yaml:"variable,omitempty" json:"variable,omitempty"`
	Comid     string `yaml:"comid,omitempty" json:"comid,omitempty"`
	InitTime  string `yaml:"init_time,omitempty" json:"init_time,omitempty"`
	TimeLag   string `yaml:"time_lag,omitempty" json:"time_lag,omitempty"`
	StartDate string `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate   string `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Output    string `yaml:"output,omitempty" json:"output,omitempty"`

	// Blank names the options that were given with an empty value.
	Blank map[string]bool `yaml:"-" json:"-"`
}

func (r *RawOptions) field(name string) *string {
	switch name {
	case "archive":
		return &r.Archive
	case "config":
		return &r.Config
	case "geom":
		return &r.Geom
	case "variable":
		return &r.Variable
	case "comid":
		return &r.Comid
	case "init_time":
		return &r.InitTime
	case "time_lag":
		return &r.TimeLag
	case "start_date":
		return &r.StartDate
	case "end_date":
		return &r.EndDate
	case "output":
		return &r.Output
	}
	return nil
}

// Set records value for the named option, marking it as given even when
// value is empty.
func (r *RawOptions) Set(name, value string) error {
	p := r.field(name)
	if p == nil {
		return fmt.Errorf("unknown option %q", name)
	}
	*p = value
	if value == "" {
		if r.Blank == nil {
			r.Blank = make(map[string]bool)
		}
		r.Blank[name] = true
	} else if r.Blank != nil {
		delete(r.Blank, name)
	}
	return nil
}

// Get returns the value of the named option, "" for unknown names.
func (r RawOptions) Get(name string) string {
	if p := r.field(name); p != nil {
		return *p
	}
	return ""
}

// IsSet reports whether the named option was given, blank or not.
func (r RawOptions) IsSet(name string) bool {
	return r.Get(name) != "" || r.Blank[name]
}

// Overlay returns r with every option given in over applied on top.
func (r RawOptions) Overlay(over RawOptions) RawOptions {
	var out RawOptions
	for _, name := range OptionNames {
		switch {
		case over.IsSet(name):
			_ = out.Set(name, over.Get(name))
		case r.IsSet(name):
			_ = out.Set(name, r.Get(name))
		}
	}
	return out
}

// Request is a fully validated retrieval request. Values are only produced
// by the option resolver and are passed by value; nothing mutates them.
type Request struct {
	Archive   Archive
	Config    Config
	Geom      Geom
	Variable  Variable
	Comid     []int64
	InitTime  int
	TimeLag   int
	StartDate time.Time
	EndDate   time.Time
	Output    string
}

// Days returns every date from StartDate to EndDate inclusive.
func (r Request) Days() []time.Time {
	var days []time.Time
	for d := r.StartDate; !d.After(r.EndDate); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ComidString renders the identifiers as a comma separated list.
func (r Request) ComidString() string {
	parts := make([]string, len(r.Comid))
	for i, id := range r.Comid {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Fingerprint identifies the data a request selects. Output is excluded.
func (r Request) Fingerprint() string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d|%s|%s",
		r.Archive, r.Config, r.Geom, r.Variable, r.ComidString(),
		r.InitTime, r.TimeLag,
		r.StartDate.Format(DateLayout), r.EndDate.Format(DateLayout))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

type requestJSON struct {
	Archive   Archive  `json:"archive"`
	Config    Config   `json:"config"`
	Geom      Geom     `json:"geom"`
	Variable  Variable `json:"variable"`
	Comid     []int64  `json:"comid"`
	InitTime  int      `json:"init_time"`
	TimeLag   int      `json:"time_lag"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Output    string   `json:"output,omitempty"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestJSON{
		Archive:   r.Archive,
		Config:    r.Config,
		Geom:      r.Geom,
		Variable:  r.Variable,
		Comid:     r.Comid,
		InitTime:  r.InitTime,
		TimeLag:   r.TimeLag,
		StartDate: r.StartDate.Format(DateLayout),
		EndDate:   r.EndDate.Format(DateLayout),
		Output:    r.Output,
	})
}
