package logging_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/saveenergy/nwm/internal/logging"
)

type testStringer struct{}

func (testStringer) String() string {
	return "stringer-value"
}

func TestFormatValueTypes(t *testing.T) {
	now := time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{name: "string", input: "hello", want: "hello"},
		{name: "string with space", input: "short range", want: `"short range"`},
		{name: "bool", input: true, want: "true"},
		{name: "int", input: 42, want: "42"},
		{name: "int64", input: int64(5781915), want: "5781915"},
		{name: "uint", input: uint(9), want: "9"},
		{name: "float32", input: float32(1.5), want: "1.50"},
		{name: "float64", input: 2.25, want: "2.25"},
		{name: "duration", input: 1500 * time.Millisecond, want: "1.5s"},
		{name: "time", input: now, want: now.Format(time.RFC3339Nano)},
		{name: "stringer", input: testStringer{}, want: "stringer-value"},
		{name: "error", input: errors.New("no such key"), want: `"no such key"`},
		{name: "fallback", input: []int{1, 2}, want: fmt.Sprintf("%v", []int{1, 2})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := logging.FormatValue(tt.input); got != tt.want {
				t.Fatalf("FormatValue got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{in: "debug", want: logging.LevelDebug},
		{in: "INFO", want: logging.LevelInfo},
		{in: "warning", want: logging.LevelWarn},
		{in: " error ", want: logging.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNamedLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewLogger("fetch")
	l.SetOutput(&buf)
	l.SetLevel(logging.LevelInfo)

	l.Debug("hidden")
	l.Info("fetched", logging.F("bytes", 512), logging.F("archive", "harvey"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if !strings.Contains(out, "[fetch] ") || !strings.Contains(out, "[INFO] fetched bytes=512 archive=harvey") {
		t.Fatalf("unexpected log line: %q", out)
	}
}
