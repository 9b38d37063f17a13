package window

import (
	"sync"
	"testing"
)

func TestSetTitleIsAppliedOnce(t *testing.T) {
	w := &engineWindow{mu: &sync.Mutex{}, title: "start"}

	if _, ok := w.takeTitle(); ok {
		t.Fatal("takeTitle() reported a title before SetTitle")
	}
	w.SetTitle("one")
	w.SetTitle("two")

	got, ok := w.takeTitle()
	if !ok || got != "two" {
		t.Errorf("takeTitle() = %q, %v, want latest title", got, ok)
	}
	if _, ok := w.takeTitle(); ok {
		t.Error("takeTitle() returned the same title twice")
	}
	if w.title != "two" {
		t.Errorf("title = %q, want two", w.title)
	}
}

func TestBuilderOptions(t *testing.T) {
	w := &engineWindow{mu: &sync.Mutex{}}
	for _, opt := range []WindowBuilderOption{
		WithTitle("viewer"),
		WithSize(800, 600),
		WithSizeLimits(100, 100, 1000, 900),
	} {
		opt(w)
	}
	if w.title != "viewer" || w.Width() != 800 || w.Height() != 600 {
		t.Errorf("window = %q %dx%d, want viewer 800x600", w.title, w.Width(), w.Height())
	}
	if w.minWidth != 100 || w.maxHeight != 900 {
		t.Errorf("limits = %d..%d, want 100..900", w.minWidth, w.maxHeight)
	}
}
