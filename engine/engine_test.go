package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakePlugin struct {
	name    string
	ticks   atomic.Uint64
	renders atomic.Uint64
	closed  atomic.Int32
	err     error
	panicAt uint64

	closes *[]string
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Tick(tick uint64, dt float32) {
	p.ticks.Store(tick)
}

func (p *fakePlugin) Render(frame uint64, dt float32) {
	if p.panicAt != 0 && frame == p.panicAt {
		panic("render failure")
	}
	p.renders.Store(frame)
}

func (p *fakePlugin) Close() error {
	p.closed.Add(1)
	if p.closes != nil {
		*p.closes = append(*p.closes, p.name)
	}
	return p.err
}

func (p *fakePlugin) Stats() []any {
	return []any{"ticks", p.ticks.Load()}
}

// runAsync starts Run and returns a channel receiving its result.
func runAsync(e Engine) <-chan error {
	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	return done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunDrivesPlugins(t *testing.T) {
	var order []string
	a := &fakePlugin{name: "a", closes: &order}
	b := &fakePlugin{name: "b", closes: &order}

	var ticks atomic.Uint64
	e := NewEngine(WithTickRate(500), WithPlugin(a), WithPlugin(b), WithRenderFrameLimit(1000))
	e.SetTickCallback(func(tick uint64, dt float32) { ticks.Store(tick) })

	done := runAsync(e)
	waitFor(t, "ticks and frames", func() bool {
		return a.ticks.Load() >= 3 && b.renders.Load() >= 3 && ticks.Load() >= 3
	})
	e.Quit()
	e.Quit()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Quit")
	}

	if a.closed.Load() != 1 || b.closed.Load() != 1 {
		t.Errorf("close counts a=%d b=%d, want 1 each", a.closed.Load(), b.closed.Load())
	}
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("close order = %v, want [b a]", order)
	}
	if e.Ticks() < 3 || e.Frames() < 3 {
		t.Errorf("Ticks() = %d, Frames() = %d, want at least 3 each", e.Ticks(), e.Frames())
	}
}

func TestRunJoinsCloseErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	e := NewEngine(
		WithPlugin(&fakePlugin{name: "a", err: errA}),
		WithPlugin(&fakePlugin{name: "b", err: errB}),
	)
	done := runAsync(e)
	e.Quit()

	err := <-done
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Run() error = %v, want both close errors", err)
	}
}

func TestRenderPanicStopsEngine(t *testing.T) {
	p := &fakePlugin{name: "faulty", panicAt: 2}
	e := NewEngine(WithPlugin(p))

	select {
	case <-runAsync(e):
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after a render panic")
	}
	if p.closed.Load() != 1 {
		t.Errorf("plugin closed %d times, want 1", p.closed.Load())
	}
}

func TestHeadlessEngineHasGraph(t *testing.T) {
	e := NewEngine()
	if e.Graph() == nil {
		t.Fatal("Graph() is nil")
	}
	if e.Window() != nil || e.Renderer() != nil || e.Camera() != nil {
		t.Error("headless engine reports a window, renderer or camera")
	}
}

func TestSetTickRateWhileRunning(t *testing.T) {
	p := &fakePlugin{name: "p"}
	e := NewEngine(WithTickRate(1), WithPlugin(p))
	done := runAsync(e)
	waitFor(t, "first frame", func() bool { return e.Frames() > 0 })

	e.SetTickRate(1000)
	e.SetTickRate(500)
	waitFor(t, "faster ticks", func() bool { return p.ticks.Load() >= 5 })
	e.Quit()
	<-done
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{60, time.Second / 60},
		{0, time.Second / 60},
		{-5, time.Second / 60},
		{1000, time.Millisecond},
		{0.5, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := tickInterval(tt.fps); got != tt.want {
			t.Errorf("tickInterval(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}

func TestAddPluginRejectsNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AddPlugin(nil) did not panic")
		}
	}()
	NewEngine().AddPlugin(nil)
}
