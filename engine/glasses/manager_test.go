package glasses

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/bridge"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/device/devicetest"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-t5/engine/readback"
)

type managerFixture struct {
	m   Manager
	b   *bridge.Bridge
	drv *devicetest.Driver
	dev *gputest.Device
	gc  *device.HostGraphics
}

func newManagerFixture(t *testing.T, visible ...string) *managerFixture {
	t.Helper()
	drv := devicetest.NewDriver(visible...)
	s, err := device.Open(drv, "test-app", "1", device.WithRetryDelay(0))
	if err != nil {
		t.Fatalf("device.Open() error = %v", err)
	}
	dev := gputest.NewDevice()
	gc := device.NewHostGraphics()
	b := bridge.New()
	m := NewManager(s, b.Render(), readback.NewPipeline(dev, readback.WithMapTimeout(50*time.Millisecond)),
		WithGraphicsFactory(func() device.GraphicsContext { return gc }),
	)
	t.Cleanup(func() { m.Close() })
	return &managerFixture{m: m, b: b, drv: drv, dev: dev, gc: gc}
}

// connect connects id and hands it a pair of eye targets of the given size.
func (f *managerFixture) connect(t *testing.T, id string, width, height uint32) (*gputest.Target, *gputest.Target) {
	t.Helper()
	f.b.Main().Send(bridge.Connect{ID: id})
	f.m.Update(0)
	left, _ := f.dev.CreateRenderTarget(id+"/left", width, height)
	right, _ := f.dev.CreateRenderTarget(id+"/right", width, height)
	f.b.Main().Send(bridge.SetRenderTargets{ID: id, Left: left, Right: right})
	f.b.Main().Events()
	return left.(*gputest.Target), right.(*gputest.Target)
}

func countEvents[T bridge.Event](events []bridge.Event, match func(T) bool) int {
	n := 0
	for _, ev := range events {
		if e, ok := ev.(T); ok && match(e) {
			n++
		}
	}
	return n
}

func TestDuplicateConnectAndDisconnect(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	main := f.b.Main()
	main.Send(bridge.Connect{ID: "T5-A"})
	main.Send(bridge.Connect{ID: "T5-A"})
	main.Send(bridge.Disconnect{ID: "T5-A"})
	main.Send(bridge.Disconnect{ID: "T5-A"})
	f.m.Update(1)

	events := main.Events()
	connected := countEvents(events, func(e bridge.Connected) bool { return e.ID == "T5-A" })
	disconnected := countEvents(events, func(e bridge.Disconnected) bool { return e.ID == "T5-A" })
	if connected != 1 || disconnected != 1 {
		t.Fatalf("got %d Connected and %d Disconnected, want one each: %#v", connected, disconnected, events)
	}
	if _, ok := events[0].(bridge.Connected); !ok {
		t.Errorf("first event = %#v, want Connected", events[0])
	}
	if _, ok := events[1].(bridge.Disconnected); !ok {
		t.Errorf("second event = %#v, want Disconnected", events[1])
	}
	if n := f.drv.CallCount(devicetest.OpCreate); n != 1 {
		t.Errorf("driver CreateGlasses called %d times, want 1", n)
	}
	if f.drv.Handles() != 0 {
		t.Errorf("driver holds %d handles, want 0", f.drv.Handles())
	}
	if _, ok := f.m.State("T5-A"); ok {
		t.Error("record for T5-A survived the disconnect")
	}
}

func TestDisconnectUnknownIsNoop(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	f.b.Main().Send(bridge.Disconnect{ID: "T5-Z"})
	f.m.Update(1)
	if events := f.b.Main().Events(); len(events) != 0 {
		t.Errorf("events = %#v, want none", events)
	}
}

func TestRefreshWithNoGlasses(t *testing.T) {
	f := newManagerFixture(t)
	f.b.Main().Send(bridge.RefreshList{})
	f.m.Update(1)

	events := f.b.Main().Events()
	if len(events) != 1 {
		t.Fatalf("events = %#v, want one ListRefreshed", events)
	}
	list, ok := events[0].(bridge.ListRefreshed)
	if !ok || list.IDs == nil || len(list.IDs) != 0 {
		t.Errorf("event = %#v, want empty non-nil list", events[0])
	}
}

func TestConnectFailureLeavesNoRecord(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	f.drv.Fail(devicetest.OpReserve, device.ResultUnavailable)
	f.b.Main().Send(bridge.Connect{ID: "T5-A"})
	f.m.Update(1)

	events := f.b.Main().Events()
	if n := countEvents(events, func(e bridge.ConnectFailed) bool { return e.ID == "T5-A" && e.Reason != "" }); n != 1 {
		t.Fatalf("events = %#v, want one ConnectFailed", events)
	}
	if _, ok := f.m.State("T5-A"); ok {
		t.Error("failed connect left a record")
	}

	f.drv.Fail(devicetest.OpReserve, device.ResultSuccess)
	f.b.Main().Send(bridge.Connect{ID: "T5-A"})
	f.m.Update(2)
	if st, ok := f.m.State("T5-A"); !ok || st != StateConnected {
		t.Errorf("State() after retry = %v, %v, want connected", st, ok)
	}
}

func TestGameboardQuery(t *testing.T) {
	f := newManagerFixture(t)
	f.b.Main().Send(bridge.QueryGameboard{Board: device.GameboardXE})
	f.m.Update(1)
	events := f.b.Main().Events()
	if n := countEvents(events, func(e bridge.GameboardSized) bool {
		return e.Board == device.GameboardXE && e.Size.PositiveY > 0
	}); n != 1 {
		t.Errorf("events = %#v, want one GameboardSized for xe", events)
	}
}

func TestPoseUpdatedEveryTick(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	f.drv.SetIPD("T5-A", 60)
	f.b.Main().Send(bridge.Connect{ID: "T5-A"})
	f.m.Update(7)

	events := f.b.Main().Events()
	var pose *bridge.PoseUpdated
	for _, ev := range events {
		if p, ok := ev.(bridge.PoseUpdated); ok {
			pose = &p
		}
	}
	if pose == nil {
		t.Fatalf("events = %#v, want a PoseUpdated", events)
	}
	if pose.Tick != 7 || pose.IPD != 60 {
		t.Errorf("PoseUpdated = %+v, want tick 7 and IPD 60", *pose)
	}
	// The fake reports one meter above the board; board up is simulation +y.
	if !pose.Transform.Position.ApproxEqual(common.Vec3{Y: 1}, 1e-5) {
		t.Errorf("anchor position = %v, want (0, 1, 0)", pose.Transform.Position)
	}

	f.drv.Fail(devicetest.OpPose, device.ResultTryAgain)
	f.m.Update(8)
	if n := countEvents(f.b.Main().Events(), func(bridge.PoseUpdated) bool { return true }); n != 0 {
		t.Errorf("got %d PoseUpdated while the pose query fails, want 0", n)
	}
	if got := f.m.Stats().PoseFailures; got != 1 {
		t.Errorf("PoseFailures = %d, want 1", got)
	}
}

func TestSubmitFrame(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	left, right := f.connect(t, "T5-A", 10, 4)
	left.SetFill(0x11)
	right.SetFill(0x22)

	f.m.Update(1)
	f.m.Submit(1)

	frames := f.drv.Frames("T5-A")
	if len(frames) != 1 {
		t.Fatalf("driver received %d frames, want 1", len(frames))
	}
	fr := frames[0]
	if fr.Width != 10 || fr.Height != 4 {
		t.Errorf("frame size = %dx%d, want 10x4", fr.Width, fr.Height)
	}
	if want := device.NewViewCone(device.DefaultFOVDegrees, 10, 4); fr.ViewCone != want {
		t.Errorf("view cone = %+v, want %+v", fr.ViewCone, want)
	}
	if !fr.LeftPosition.ApproxEqual(common.Vec3{X: -0.032, Z: 1}, 1e-6) {
		t.Errorf("left eye = %v, want (-0.032, 0, 1)", fr.LeftPosition)
	}
	if !fr.RightPosition.ApproxEqual(common.Vec3{X: 0.032, Z: 1}, 1e-6) {
		t.Errorf("right eye = %v, want (0.032, 0, 1)", fr.RightPosition)
	}

	for handle, want := range map[uintptr]byte{fr.LeftTexture: 0x11, fr.RightTexture: 0x22} {
		tex, ok := f.gc.Texture(handle)
		if !ok {
			t.Fatalf("texture %d not live", handle)
		}
		if len(tex.Pixels) != 10*4*4 {
			t.Fatalf("texture holds %d bytes, want tightly packed %d", len(tex.Pixels), 10*4*4)
		}
		for i, b := range tex.Pixels {
			if b != want {
				t.Fatalf("texture %d byte %d = %#x, want %#x", handle, i, b, want)
			}
		}
	}
}

func TestSubmitSkipsStalePose(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	f.connect(t, "T5-A", 8, 8)

	f.m.Update(1)
	f.m.Submit(2)
	if n := len(f.drv.Frames("T5-A")); n != 0 {
		t.Errorf("driver received %d frames for a stale pose, want 0", n)
	}
	if got := f.m.Stats().StalePoses; got != 1 {
		t.Errorf("StalePoses = %d, want 1", got)
	}
}

func TestNativeTexturesDoubleBuffered(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	f.connect(t, "T5-A", 8, 8)

	for tick := uint64(1); tick <= 5; tick++ {
		f.m.Update(tick)
		f.m.Submit(tick)
	}
	if n := len(f.drv.Frames("T5-A")); n != 5 {
		t.Fatalf("driver received %d frames, want 5", n)
	}
	if live := f.gc.Live(); live != 4 {
		t.Errorf("live native textures = %d, want 4 (two sets of two eyes)", live)
	}

	frames := f.drv.Frames("T5-A")
	last := frames[len(frames)-1]
	prev := frames[len(frames)-2]
	for _, h := range []uintptr{last.LeftTexture, last.RightTexture, prev.LeftTexture, prev.RightTexture} {
		if _, ok := f.gc.Texture(h); !ok {
			t.Errorf("texture %d of one of the last two frames was released", h)
		}
	}

	f.b.Main().Send(bridge.Disconnect{ID: "T5-A"})
	f.m.Update(6)
	if live := f.gc.Live(); live != 0 {
		t.Errorf("live native textures after disconnect = %d, want 0", live)
	}
	if bufs := f.dev.LiveBuffers("T5-A/"); len(bufs) != 0 {
		t.Errorf("readback buffers after disconnect = %d, want 0", len(bufs))
	}
}

func TestRenderTargetsSetOnce(t *testing.T) {
	f := newManagerFixture(t, "T5-A")
	first, _ := f.connect(t, "T5-A", 8, 8)
	first.SetFill(0x11)

	other, _ := f.dev.CreateRenderTarget("other/left", 8, 8)
	otherRight, _ := f.dev.CreateRenderTarget("other/right", 8, 8)
	other.(*gputest.Target).SetFill(0x99)
	f.b.Main().Send(bridge.SetRenderTargets{ID: "T5-A", Left: other, Right: otherRight})

	f.m.Update(1)
	f.m.Submit(1)
	frames := f.drv.Frames("T5-A")
	if len(frames) != 1 {
		t.Fatalf("driver received %d frames, want 1", len(frames))
	}
	tex, _ := f.gc.Texture(frames[0].LeftTexture)
	if tex.Pixels[0] != 0x11 {
		t.Errorf("left eye pixel = %#x, want the first target's fill", tex.Pixels[0])
	}
}

func TestStalledMapDoesNotBlockOtherGlasses(t *testing.T) {
	f := newManagerFixture(t, "T5-A", "T5-B")
	f.connect(t, "T5-A", 8, 8)
	f.connect(t, "T5-B", 8, 8)
	f.dev.HangMaps("T5-B/", true)

	start := time.Now()
	f.m.Update(1)
	f.m.Submit(1)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Submit() took %v with one stalled device", elapsed)
	}
	if a, b := len(f.drv.Frames("T5-A")), len(f.drv.Frames("T5-B")); a != 1 || b != 0 {
		t.Fatalf("frames A=%d B=%d, want A=1 B=0", a, b)
	}

	f.dev.HangMaps("T5-B/", false)
	f.m.Update(2)
	f.m.Submit(2)
	if a, b := len(f.drv.Frames("T5-A")), len(f.drv.Frames("T5-B")); a != 2 || b != 1 {
		t.Errorf("frames after recovery A=%d B=%d, want A=2 B=1", a, b)
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	drv := devicetest.NewDriver("T5-A", "T5-B")
	s, err := device.Open(drv, "test-app", "1", device.WithRetryDelay(0))
	if err != nil {
		t.Fatalf("device.Open() error = %v", err)
	}
	dev := gputest.NewDevice()
	b := bridge.New()
	m := NewManager(s, b.Render(), readback.NewPipeline(dev))
	b.Main().Send(bridge.Connect{ID: "T5-A"})
	b.Main().Send(bridge.Connect{ID: "T5-B"})
	m.Update(1)

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if drv.Handles() != 0 || drv.ContextOpen() {
		t.Errorf("after Close: %d handles, context open %v", drv.Handles(), drv.ContextOpen())
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	// A new session can be opened once the old one is closed.
	s2, err := device.Open(drv, "test-app", "1")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	s2.Close()
}
