package types

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRawOptionsOverlay(t *testing.T) {
	base := RawOptions{Archive: "harvey", Geom: "land", Comid: "1635,2030"}
	got := base.Overlay(RawOptions{Geom: "forcing", Variable: "RAINRATE"})
	want := RawOptions{Archive: "harvey", Geom: "forcing", Variable: "RAINRATE", Comid: "1635,2030"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Overlay = %+v, want %+v", got, want)
	}
}

func TestRawOptionsBlankValues(t *testing.T) {
	var flags RawOptions
	if err := flags.Set("archive", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := flags.Set("comid", "5781915"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := flags.Set("nope", "x"); err == nil {
		t.Fatal("expected error for unknown option")
	}
	if !flags.IsSet("archive") || !flags.IsSet("comid") || flags.IsSet("geom") {
		t.Fatalf("IsSet mismatch: %+v", flags)
	}

	// A blank option given on top hides the value underneath.
	got := RawOptions{Archive: "rolling", Geom: "land"}.Overlay(flags)
	if got.Archive != "" || !got.IsSet("archive") {
		t.Fatalf("blank archive lost in overlay: %+v", got)
	}
	if got.Geom != "land" || got.Comid != "5781915" {
		t.Fatalf("Overlay = %+v", got)
	}

	// Setting a value later clears the blank mark.
	_ = got.Set("archive", "harvey")
	if got.Blank["archive"] {
		t.Fatal("archive still marked blank")
	}
}

func TestRequestDays(t *testing.T) {
	r := Request{StartDate: day("2017-08-30"), EndDate: day("2017-09-02")}
	days := r.Days()
	if len(days) != 4 {
		t.Fatalf("days = %d, want 4", len(days))
	}
	if days[3].Format(DateLayout) != "2017-09-02" {
		t.Fatalf("last day = %s", days[3].Format(DateLayout))
	}

	single := Request{StartDate: day("2017-08-30"), EndDate: day("2017-08-30")}
	if n := len(single.Days()); n != 1 {
		t.Fatalf("single-date days = %d, want 1", n)
	}
}

func TestFingerprintIgnoresOutput(t *testing.T) {
	a := Request{
		Archive: ArchiveHarvey, Config: ConfigShortRange, Geom: GeomChannelRT,
		Variable: VariableStreamflow, Comid: []int64{5781915},
		StartDate: day("2017-08-30"), EndDate: day("2017-08-30"), Output: "a.wml",
	}
	b := a
	b.Output = "b.wml"
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("output must not change the fingerprint")
	}
	c := a
	c.InitTime = 6
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("init_time must change the fingerprint")
	}
}

func TestRequestMarshalJSON(t *testing.T) {
	r := Request{
		Archive: ArchiveHarvey, Config: ConfigAnalysisAssim, Geom: GeomForcing,
		Variable: VariableRainRate, Comid: []int64{1635, 2030}, TimeLag: 6,
		StartDate: day("2017-09-05"), EndDate: day("2017-09-06"),
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"start_date":"2017-09-05"`, `"end_date":"2017-09-06"`, `"comid":[1635,2030]`, `"time_lag":6`} {
		if !strings.Contains(s, want) {
			t.Fatalf("json %s missing %s", s, want)
		}
	}
	if strings.Contains(s, `"output"`) {
		t.Fatalf("empty output should be omitted: %s", s)
	}
	if r.ComidString() != "1635,2030" {
		t.Fatalf("ComidString = %q", r.ComidString())
	}
}
