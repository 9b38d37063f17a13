package profiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
)

func TestTickReportsSourcesAtInterval(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { common.SetLogger(nil) })

	p := NewProfiler("render")
	start := time.Unix(100, 0)
	now := start
	p.now = func() time.Time { return now }
	p.lastTime = start
	p.AddSource("readback", func() []any { return []any{"completed", 7, 3, "bad key"} })

	now = start.Add(500 * time.Millisecond)
	if p.Tick() {
		t.Fatal("Tick() reported before the interval elapsed")
	}
	now = start.Add(time.Second)
	if !p.Tick() {
		t.Fatal("Tick() did not report after the interval")
	}

	out := buf.String()
	for _, want := range []string{"loop=render", "fps=2", "readback.completed=7"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestAddSourceReplaces(t *testing.T) {
	p := NewProfiler("tick")
	p.AddSource("a", func() []any { return nil })
	p.AddSource("a", func() []any { return nil })
	if len(p.order) != 1 {
		t.Errorf("order = %v, want one entry", p.order)
	}
}
