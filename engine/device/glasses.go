package device

import "sync/atomic"

// Glasses owns one native glasses handle. Values are only constructed by Session.CreateGlasses
// and refuse every operation once released.
type Glasses struct {
	id       string
	handle   GlassesHandle
	owner    *session
	released atomic.Bool
	wand     bool
	graphics GraphicsContext
}

// ID returns the identifier the glasses were created with.
func (g *Glasses) ID() string {
	return g.id
}

// Released reports whether the handle has been released. Safe for concurrent use.
func (g *Glasses) Released() bool {
	return g.released.Load()
}

// Graphics returns the graphics context bound by InitGraphics, or nil.
func (g *Glasses) Graphics() GraphicsContext {
	return g.graphics
}
