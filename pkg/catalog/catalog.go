// Package catalog holds the option domains of the retrieval tool: which
// archives, configuration profiles, geometries and variables exist, and the
// dates each archive can serve. The data is configuration, not code.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saveenergy/nwm/pkg/types"
)

//go:embed default.yaml
var defaultCatalog []byte

const (
	SourceHTTP = "http"
	SourceS3   = "s3"

	IDKindFeature = "feature"
	IDKindGrid    = "grid"
)

type Source struct {
	Type        string `yaml:"type"`
	URL         string `yaml:"url,omitempty"`
	Bucket      string `yaml:"bucket,omitempty"`
	KeyTemplate string `yaml:"key_template,omitempty"`
}

type Archive struct {
	Description string `yaml:"description,omitempty"`
	FirstDate   string `yaml:"first_date,omitempty"`
	LastDate    string `yaml:"last_date,omitempty"`
	DaysBack    int    `yaml:"days_back,omitempty"`
	Source      Source `yaml:"source"`

	first time.Time
	last  time.Time
}

// Rolling reports whether the archive window moves with the current date.
func (a *Archive) Rolling() bool {
	return a.DaysBack > 0
}

// Window returns the first and last day (inclusive, UTC midnight) the
// archive can serve as of now.
func (a *Archive) Window(now time.Time) (time.Time, time.Time) {
	if a.Rolling() {
		today := Day(now)
		return today.AddDate(0, 0, -a.DaysBack), today
	}
	return a.first, a.last
}

// DefaultStart is the start date used when none is given: the first day of
// a fixed archive, or yesterday for a rolling one (today's runs may still
// be in flight).
func (a *Archive) DefaultStart(now time.Time) time.Time {
	if a.Rolling() {
		_, last := a.Window(now)
		return last.AddDate(0, 0, -1)
	}
	return a.first
}

// Profile is a forecast configuration profile (short_range, analysis_assim, ...).
type Profile struct {
	Description string       `yaml:"description,omitempty"`
	InitTimes   []int        `yaml:"init_times"`
	TimeLags    []int        `yaml:"time_lags"`
	Geoms       []types.Geom `yaml:"geoms"`
	MaxSpanDays int          `yaml:"max_span_days"`
}

func (p *Profile) AllowsGeom(g types.Geom) bool {
	return slices.Contains(p.Geoms, g)
}

type Geometry struct {
	Description  string           `yaml:"description,omitempty"`
	IDKind       string           `yaml:"id_kind"`
	DefaultComid string           `yaml:"default_comid"`
	Variables    []types.Variable `yaml:"variables"`
}

func (g *Geometry) HasVariable(v types.Variable) bool {
	return slices.Contains(g.Variables, v)
}

type Catalog struct {
	DefaultArchive types.Archive `yaml:"default_archive"`
	DefaultConfig  types.Config  `yaml:"default_config"`
	DefaultGeom    types.Geom    `yaml:"default_geom"`

	Archives map[types.Archive]*Archive `yaml:"archives"`
	Configs  map[types.Config]*Profile  `yaml:"configs"`
	Geoms    map[types.Geom]*Geometry   `yaml:"geoms"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &cat, nil
}

func (c *Catalog) Validate() error {
	if len(c.Archives) == 0 {
		return fmt.Errorf("no archives defined")
	}
	if len(c.Configs) == 0 {
		return fmt.Errorf("no configs defined")
	}
	if len(c.Geoms) == 0 {
		return fmt.Errorf("no geoms defined")
	}
	if _, ok := c.Archives[c.DefaultArchive]; !ok {
		return fmt.Errorf("default_archive %q is not a defined archive", c.DefaultArchive)
	}
	if _, ok := c.Configs[c.DefaultConfig]; !ok {
		return fmt.Errorf("default_config %q is not a defined config", c.DefaultConfig)
	}
	if _, ok := c.Geoms[c.DefaultGeom]; !ok {
		return fmt.Errorf("default_geom %q is not a defined geom", c.DefaultGeom)
	}

	for name, a := range c.Archives {
		if a == nil {
			return fmt.Errorf("archive %s: empty definition", name)
		}
		if err := a.validate(); err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
	}
	for name, p := range c.Configs {
		if p == nil {
			return fmt.Errorf("config %s: empty definition", name)
		}
		if len(p.InitTimes) == 0 {
			return fmt.Errorf("config %s: init_times must not be empty", name)
		}
		if len(p.TimeLags) == 0 {
			return fmt.Errorf("config %s: time_lags must not be empty", name)
		}
		if len(p.Geoms) == 0 {
			return fmt.Errorf("config %s: geoms must not be empty", name)
		}
		if p.MaxSpanDays < 0 {
			return fmt.Errorf("config %s: max_span_days must be >= 0", name)
		}
		for _, g := range p.Geoms {
			if _, ok := c.Geoms[g]; !ok {
				return fmt.Errorf("config %s: unknown geom %q", name, g)
			}
		}
	}
	for name, g := range c.Geoms {
		if g == nil {
			return fmt.Errorf("geom %s: empty definition", name)
		}
		if g.IDKind != IDKindFeature && g.IDKind != IDKindGrid {
			return fmt.Errorf("geom %s: id_kind must be %q or %q", name, IDKindFeature, IDKindGrid)
		}
		if len(g.Variables) == 0 {
			return fmt.Errorf("geom %s: variables must not be empty", name)
		}
		if strings.TrimSpace(g.DefaultComid) == "" {
			return fmt.Errorf("geom %s: default_comid is required", name)
		}
	}
	return nil
}

func (a *Archive) validate() error {
	switch {
	case a.DaysBack < 0:
		return fmt.Errorf("days_back must be >= 0")
	case a.DaysBack > 0:
		if a.FirstDate != "" || a.LastDate != "" {
			return fmt.Errorf("days_back cannot be combined with first_date/last_date")
		}
	default:
		first, err := time.Parse(types.DateLayout, a.FirstDate)
		if err != nil {
			return fmt.Errorf("first_date: %w", err)
		}
		last, err := time.Parse(types.DateLayout, a.LastDate)
		if err != nil {
			return fmt.Errorf("last_date: %w", err)
		}
		if last.Before(first) {
			return fmt.Errorf("last_date %s precedes first_date %s", a.LastDate, a.FirstDate)
		}
		a.first, a.last = first, last
	}

	switch a.Source.Type {
	case SourceHTTP:
		if a.Source.URL == "" {
			return fmt.Errorf("http source requires url")
		}
	case SourceS3:
		if a.Source.Bucket == "" || a.Source.KeyTemplate == "" {
			return fmt.Errorf("s3 source requires bucket and key_template")
		}
	default:
		return fmt.Errorf("source type must be %q or %q, got %q", SourceHTTP, SourceS3, a.Source.Type)
	}
	return nil
}

func (c *Catalog) ArchiveNames() []string {
	names := make([]string, 0, len(c.Archives))
	for name := range c.Archives {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) ConfigNames() []string {
	names := make([]string, 0, len(c.Configs))
	for name := range c.Configs {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) GeomNames() []string {
	names := make([]string, 0, len(c.Geoms))
	for name := range c.Geoms {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// VariableNames lists every variable of every geometry, sorted and de-duplicated.
func (c *Catalog) VariableNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, g := range c.Geoms {
		for _, v := range g.Variables {
			if !seen[string(v)] {
				seen[string(v)] = true
				names = append(names, string(v))
			}
		}
	}
	sort.Strings(names)
	return names
}

// HasVariable reports whether any geometry offers v.
func (c *Catalog) HasVariable(v types.Variable) bool {
	for _, g := range c.Geoms {
		if g.HasVariable(v) {
			return true
		}
	}
	return false
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
