package catalog

import (
	"time"

	"github.com/saveenergy/nwm/pkg/types"
)

// Summary is the catalog as reported to users and tools, with archive
// windows evaluated at a fixed instant.
type Summary struct {
	SchemaVersion  string                    `json:"schema_version"`
	DefaultArchive types.Archive             `json:"default_archive"`
	DefaultConfig  types.Config              `json:"default_config"`
	DefaultGeom    types.Geom                `json:"default_geom"`
	Archives       map[string]ArchiveSummary `json:"archives"`
	Configs        map[string]ConfigSummary  `json:"configs"`
	Geoms          map[string]GeomSummary    `json:"geoms"`
}

type ArchiveSummary struct {
	Description string `json:"description,omitempty"`
	FirstDate   string `json:"first_date"`
	LastDate    string `json:"last_date"`
	Rolling     bool   `json:"rolling"`
}

type ConfigSummary struct {
	Description string       `json:"description,omitempty"`
	InitTimes   []int        `json:"init_times"`
	TimeLags    []int        `json:"time_lags"`
	Geoms       []types.Geom `json:"geoms"`
	MaxSpanDays int          `json:"max_span_days"`
}

type GeomSummary struct {
	Description  string           `json:"description,omitempty"`
	IDKind       string           `json:"id_kind"`
	DefaultComid string           `json:"default_comid"`
	Variables    []types.Variable `json:"variables"`
}

func (c *Catalog) Summarize(at time.Time) Summary {
	s := Summary{
		SchemaVersion:  "1",
		DefaultArchive: c.DefaultArchive,
		DefaultConfig:  c.DefaultConfig,
		DefaultGeom:    c.DefaultGeom,
		Archives:       make(map[string]ArchiveSummary, len(c.Archives)),
		Configs:        make(map[string]ConfigSummary, len(c.Configs)),
		Geoms:          make(map[string]GeomSummary, len(c.Geoms)),
	}
	for name, a := range c.Archives {
		first, last := a.Window(at)
		s.Archives[string(name)] = ArchiveSummary{
			Description: a.Description,
			FirstDate:   first.Format(types.DateLayout),
			LastDate:    last.Format(types.DateLayout),
			Rolling:     a.Rolling(),
		}
	}
	for name, p := range c.Configs {
		s.Configs[string(name)] = ConfigSummary{
			Description: p.Description,
			InitTimes:   p.InitTimes,
			TimeLags:    p.TimeLags,
			Geoms:       p.Geoms,
			MaxSpanDays: p.MaxSpanDays,
		}
	}
	for name, g := range c.Geoms {
		s.Geoms[string(name)] = GeomSummary{
			Description:  g.Description,
			IDKind:       g.IDKind,
			DefaultComid: g.DefaultComid,
			Variables:    g.Variables,
		}
	}
	return s
}
