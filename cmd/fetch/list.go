package fetch

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/saveenergy/nwm/pkg/catalog"
	"github.com/saveenergy/nwm/pkg/types"
)

func printCatalog(w io.Writer, cat *catalog.Catalog, at time.Time) {
	fmt.Fprintln(w, "Archives:")
	for _, name := range cat.ArchiveNames() {
		a := cat.Archives[types.Archive(name)]
		first, last := a.Window(at)
		mark := ""
		if types.Archive(name) == cat.DefaultArchive {
			mark = " *"
		}
		fmt.Fprintf(w, "  %-16s %s to %s%s\n", name,
			first.Format(types.DateLayout), last.Format(types.DateLayout), mark)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configs:")
	for _, name := range cat.ConfigNames() {
		p := cat.Configs[types.Config(name)]
		mark := ""
		if types.Config(name) == cat.DefaultConfig {
			mark = " *"
		}
		fmt.Fprintf(w, "  %-16s init_time %s; time_lag %s; geoms %s%s\n", name,
			intList(p.InitTimes), intList(p.TimeLags), geomList(p.Geoms), mark)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Geoms:")
	for _, name := range cat.GeomNames() {
		g := cat.Geoms[types.Geom(name)]
		mark := ""
		if types.Geom(name) == cat.DefaultGeom {
			mark = " *"
		}
		vars := make([]string, len(g.Variables))
		for i, v := range g.Variables {
			vars[i] = string(v)
		}
		fmt.Fprintf(w, "  %-16s %s ids (default %s); variables %s%s\n", name,
			g.IDKind, g.DefaultComid, joinNames(vars), mark)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  * = default")
}

func printCatalogJSON(w io.Writer, cat *catalog.Catalog, at time.Time) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cat.Summarize(at)); err != nil {
		fmt.Fprintf(stderr, "nwm: json encode error: %v\n", err)
	}
}

// intList shortens runs of consecutive values: 0-23 instead of 24 numbers.
func intList(values []int) string {
	if len(values) == 0 {
		return "-"
	}
	out := ""
	for i := 0; i < len(values); {
		j := i
		for j+1 < len(values) && values[j+1] == values[j]+1 {
			j++
		}
		if out != "" {
			out += ","
		}
		if j-i >= 2 {
			out += strconv.Itoa(values[i]) + "-" + strconv.Itoa(values[j])
		} else {
			out += strconv.Itoa(values[i])
			for k := i + 1; k <= j; k++ {
				out += "," + strconv.Itoa(values[k])
			}
		}
		i = j + 1
	}
	return out
}

func geomList(values []types.Geom) string {
	names := make([]string, len(values))
	for i, g := range values {
		names[i] = string(g)
	}
	return joinNames(names)
}
