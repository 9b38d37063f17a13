package simdriver

import (
	"bytes"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/spatial"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func TestOrbitFacesBoardCenter(t *testing.T) {
	o := Orbit{Radius: 0.6, Height: 0.45, Period: 8 * time.Second, Board: device.GameboardLE}
	for _, elapsed := range []time.Duration{0, time.Second, 3 * time.Second, 7 * time.Second} {
		raw, _, ok := o.Pose("SIM-A", elapsed)
		if !ok {
			t.Fatalf("Pose(%v) not available", elapsed)
		}
		if !raw.Orientation.IsUnit() {
			t.Fatalf("Pose(%v) orientation %v is not unit", elapsed, raw.Orientation)
		}

		anchor, _ := spatial.ConvertPose(raw)
		if h := anchor.Position.Y; h < 0.449 || h > 0.451 {
			t.Errorf("Pose(%v) height = %v, want 0.45", elapsed, h)
		}
		flat := common.Vec3{X: anchor.Position.X, Z: anchor.Position.Z}
		if r := flat.Length(); r < 0.599 || r > 0.601 {
			t.Errorf("Pose(%v) radius = %v, want 0.6", elapsed, r)
		}

		forward := anchor.Rotation.Rotate(common.Vec3{Z: -1})
		toCenter := anchor.Position.Neg()
		toCenter = toCenter.Scale(1 / toCenter.Length())
		if dot := forward.Dot(toCenter); dot < 0.999 {
			t.Errorf("Pose(%v) forward %v does not face the board (dot %v)", elapsed, forward, dot)
		}
	}
}

func TestOrbitPhaseDiffersPerGlasses(t *testing.T) {
	o := Orbit{Radius: 0.6, Height: 0.45, Period: 8 * time.Second}
	a, _, _ := o.Pose("SIM-A", 0)
	b, _, _ := o.Pose("SIM-B", 0)
	if phase("SIM-A") != phase("SIM-B") && a.Position.ApproxEqual(b.Position, 1e-4) {
		t.Error("different glasses share a starting position")
	}
}

func TestDriverLifecycle(t *testing.T) {
	clock := newClock()
	d := NewDriver(WithGlasses("SIM-A", "SIM-B"), WithClock(clock.Now), WithIPD(61))

	if _, res := d.ListGlasses(0); res != device.ResultNoContext {
		t.Fatalf("ListGlasses() before context = %v, want no context", res)
	}
	ctx, res := d.CreateContext("app", "1")
	if res != device.ResultSuccess {
		t.Fatalf("CreateContext() = %v", res)
	}
	ids, _ := d.ListGlasses(ctx)
	if len(ids) != 2 || ids[0] != "SIM-A" || ids[1] != "SIM-B" {
		t.Fatalf("ListGlasses() = %v", ids)
	}
	if _, res := d.CreateGlasses(ctx, "SIM-Z"); res != device.ResultNotConnected {
		t.Errorf("CreateGlasses(unlisted) = %v, want not connected", res)
	}

	h, _ := d.CreateGlasses(ctx, "SIM-A")
	if res := d.ReserveGlasses(h, "app - SIM-A"); res != device.ResultSuccess {
		t.Fatalf("ReserveGlasses() = %v", res)
	}
	other, _ := d.CreateGlasses(ctx, "SIM-A")
	if res := d.ReserveGlasses(other, "other"); res != device.ResultUnavailable {
		t.Errorf("second ReserveGlasses() = %v, want unavailable", res)
	}
	d.DestroyGlasses(other)

	if ipd, _ := d.GlassesIPD(h); ipd != 61 {
		t.Errorf("GlassesIPD() = %v, want 61", ipd)
	}
	if _, res := d.GlassesPose(h); res != device.ResultSuccess {
		t.Errorf("GlassesPose() = %v", res)
	}

	frame := device.NewFrameInfo(1, 2, 64, 32, 48, device.EyePose{}, device.EyePose{})
	if res := d.SendFrame(h, frame); res != device.ResultNotConnected {
		t.Errorf("SendFrame() before graphics init = %v, want not connected", res)
	}
	if res := d.InitGraphicsContext(h, device.GraphicsAPID3D11, 7); res != device.ResultInvalidArgs {
		t.Errorf("InitGraphicsContext(d3d11) = %v, want invalid args", res)
	}
	d.InitGraphicsContext(h, device.GraphicsAPINone, 0)
	if res := d.SendFrame(h, frame); res != device.ResultSuccess {
		t.Fatalf("SendFrame() = %v", res)
	}
	if got := d.Frames("SIM-A"); got != 1 {
		t.Errorf("Frames() = %d, want 1", got)
	}
	if last, ok := d.LastFrame("SIM-A"); !ok || last.Width != 64 {
		t.Errorf("LastFrame() = %+v, %v", last, ok)
	}

	d.SetVisible("SIM-B")
	if _, res := d.GlassesPose(h); res != device.ResultDeviceLost {
		t.Errorf("GlassesPose() after unplug = %v, want device lost", res)
	}
}

func TestSessionOverSimulatedDriver(t *testing.T) {
	d := NewDriver(WithGlasses("SIM-A"))
	s, err := device.Open(d, "app", "1.0", device.WithRetryDelay(0))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	g, err := s.CreateGlasses("SIM-A")
	if err != nil {
		t.Fatalf("CreateGlasses() error = %v", err)
	}
	if err := s.InitGraphics(g, device.NewHostGraphics()); err != nil {
		t.Fatalf("InitGraphics() error = %v", err)
	}
	if _, err := s.GetPose(g); err != nil {
		t.Fatalf("GetPose() error = %v", err)
	}
	frame := device.NewFrameInfo(1, 2, 16, 16, 48, device.EyePose{}, device.EyePose{})
	if err := s.SubmitFrame(g, frame); err != nil {
		t.Fatalf("SubmitFrame() error = %v", err)
	}
	if d.Frames("SIM-A") != 1 {
		t.Errorf("Frames() = %d, want 1", d.Frames("SIM-A"))
	}
}

func TestRecordAndReplay(t *testing.T) {
	clock := newClock()
	src := NewDriver(WithGlasses("SIM-A"), WithClock(clock.Now), WithIPD(60))

	var buf bytes.Buffer
	rec := NewRecorder(src, &buf)
	rec.now = clock.Now
	rec.start = clock.Now()

	ctx, _ := rec.CreateContext("app", "1")
	h, _ := rec.CreateGlasses(ctx, "SIM-A")
	rec.GlassesIPD(h)

	var recorded []device.NativePose
	for i := 0; i < 3; i++ {
		p, res := rec.GlassesPose(h)
		if res != device.ResultSuccess {
			t.Fatalf("GlassesPose() = %v", res)
		}
		recorded = append(recorded, p)
		clock.Advance(100 * time.Millisecond)
	}
	if rec.Written() != 3 {
		t.Fatalf("Written() = %d, want 3", rec.Written())
	}

	rp, err := LoadReplay(&buf)
	if err != nil {
		t.Fatalf("LoadReplay() error = %v", err)
	}
	if ids := rp.IDs(); len(ids) != 1 || ids[0] != "SIM-A" {
		t.Fatalf("IDs() = %v", ids)
	}

	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{150 * time.Millisecond, 1},
		{200 * time.Millisecond, 2},
		// Wraps past the end of the recording.
		{250 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		got, ipd, ok := rp.Pose("SIM-A", tt.elapsed)
		if !ok {
			t.Fatalf("Pose(%v) not available", tt.elapsed)
		}
		if got != recorded[tt.want] {
			t.Errorf("Pose(%v) = %+v, want sample %d", tt.elapsed, got, tt.want)
		}
		if ipd != 60 {
			t.Errorf("Pose(%v) ipd = %v, want 60", tt.elapsed, ipd)
		}
	}
	if _, _, ok := rp.Pose("SIM-B", 0); ok {
		t.Error("Pose() for unrecorded glasses succeeded")
	}
}

func TestLoadReplayEmpty(t *testing.T) {
	if _, err := LoadReplay(bytes.NewReader(nil)); err == nil {
		t.Error("LoadReplay(empty) succeeded")
	}
}
