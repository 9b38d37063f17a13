package device_test

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/device/devicetest"
)

func openSession(t *testing.T, drv *devicetest.Driver, options ...device.SessionBuilderOption) device.Session {
	t.Helper()
	options = append([]device.SessionBuilderOption{device.WithRetryDelay(0)}, options...)
	s, err := device.Open(drv, "oxy", "1.0", options...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsMalformedIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		appID   string
		version string
	}{
		{"empty app id", "", "1.0"},
		{"nul in app id", "ox\x00y", "1.0"},
		{"empty version", "oxy", ""},
		{"nul in version", "oxy", "1\x00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := devicetest.NewDriver()
			_, err := device.Open(drv, tt.appID, tt.version)
			if !errors.Is(err, device.ErrInvalidIdentifier) {
				t.Fatalf("Open() error = %v, want ErrInvalidIdentifier", err)
			}
			if n := drv.CallCount(devicetest.OpCreateContext); n != 0 {
				t.Errorf("CreateContext called %d times, want 0", n)
			}
		})
	}
}

func TestOpenRetriesNoService(t *testing.T) {
	drv := devicetest.NewDriver()
	drv.NoService(devicetest.OpCreateContext, 5)
	openSession(t, drv)

	if n := drv.CallCount(devicetest.OpCreateContext); n != 6 {
		t.Errorf("CreateContext called %d times, want 6", n)
	}
	if !drv.ContextOpen() {
		t.Error("context not open")
	}
}

func TestOpenGivesUpAfterRetryLimit(t *testing.T) {
	drv := devicetest.NewDriver()
	drv.NoService(devicetest.OpCreateContext, 1000)
	policy := device.DefaultRetryPolicy()
	policy.Context = 3
	policy.Delay = 0

	_, err := device.Open(drv, "oxy", "1.0", device.WithRetryPolicy(policy))
	if !errors.Is(err, device.ErrNoService) {
		t.Fatalf("Open() error = %v, want ErrNoService", err)
	}
	if n := drv.CallCount(devicetest.OpCreateContext); n != 4 {
		t.Errorf("CreateContext called %d times, want 4", n)
	}

	// A failed open frees the process slot.
	s, err := device.Open(devicetest.NewDriver(), "oxy", "1.0")
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	s.Close()
}

func TestOpenTerminalResultIsNotRetried(t *testing.T) {
	drv := devicetest.NewDriver()
	drv.Fail(devicetest.OpCreateContext, device.ResultInternal)

	_, err := device.Open(drv, "oxy", "1.0", device.WithRetryDelay(0))
	if res, ok := device.ResultOf(err); !ok || res != device.ResultInternal {
		t.Fatalf("Open() error = %v, want ResultInternal", err)
	}
	if n := drv.CallCount(devicetest.OpCreateContext); n != 1 {
		t.Errorf("CreateContext called %d times, want 1", n)
	}
}

func TestSingleSessionPerProcess(t *testing.T) {
	openSession(t, devicetest.NewDriver())

	if _, err := device.Open(devicetest.NewDriver(), "other", "1.0"); !errors.Is(err, device.ErrSessionOpen) {
		t.Fatalf("second Open() error = %v, want ErrSessionOpen", err)
	}
}

func TestOpenNilDriver(t *testing.T) {
	if _, err := device.Open(nil, "oxy", "1.0"); !errors.Is(err, device.ErrDriverUnavailable) {
		t.Fatalf("Open(nil) error = %v, want ErrDriverUnavailable", err)
	}
}

func TestListGlasses(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := openSession(t, devicetest.NewDriver())
		ids, err := s.ListGlasses()
		if err != nil {
			t.Fatalf("ListGlasses() error = %v", err)
		}
		if ids == nil || len(ids) != 0 {
			t.Errorf("ListGlasses() = %#v, want empty non-nil slice", ids)
		}
	})

	t.Run("visible", func(t *testing.T) {
		s := openSession(t, devicetest.NewDriver("A", "B"))
		ids, err := s.ListGlasses()
		if err != nil {
			t.Fatalf("ListGlasses() error = %v", err)
		}
		if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
			t.Errorf("ListGlasses() = %v, want [A B]", ids)
		}
	})

	t.Run("one retry", func(t *testing.T) {
		drv := devicetest.NewDriver("A")
		s := openSession(t, drv)
		drv.NoService(devicetest.OpList, 2)
		if _, err := s.ListGlasses(); !errors.Is(err, device.ErrNoService) {
			t.Fatalf("ListGlasses() error = %v, want ErrNoService", err)
		}
		if n := drv.CallCount(devicetest.OpList); n != 2 {
			t.Errorf("ListGlasses called %d times, want 2", n)
		}
	})
}

func TestCreateGlasses(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)

	g, err := s.CreateGlasses("A")
	if err != nil {
		t.Fatalf("CreateGlasses() error = %v", err)
	}
	if g.ID() != "A" {
		t.Errorf("ID() = %q, want A", g.ID())
	}
	if !drv.Reserved("A") {
		t.Error("glasses not reserved")
	}
	if !drv.WandStreaming("A") {
		t.Error("wand streaming not enabled")
	}
	if live := s.Live(); len(live) != 1 || live[0] != "A" {
		t.Errorf("Live() = %v, want [A]", live)
	}

	if _, err := s.CreateGlasses("A"); !errors.Is(err, device.ErrGlassesInUse) {
		t.Errorf("duplicate CreateGlasses() error = %v, want ErrGlassesInUse", err)
	}
	if _, err := s.CreateGlasses("bad\x00id"); !errors.Is(err, device.ErrInvalidIdentifier) {
		t.Errorf("CreateGlasses(nul) error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestCreateGlassesReserveFailureLeavesNoHandle(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)
	drv.Fail(devicetest.OpReserve, device.ResultUnavailable)

	if _, err := s.CreateGlasses("A"); err == nil {
		t.Fatal("CreateGlasses() succeeded, want error")
	}
	if n := drv.Handles(); n != 0 {
		t.Errorf("live native handles = %d, want 0", n)
	}
	if live := s.Live(); len(live) != 0 {
		t.Errorf("Live() = %v, want empty", live)
	}
}

func TestReleaseGlassesIsIdempotent(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)
	g, err := s.CreateGlasses("A")
	if err != nil {
		t.Fatalf("CreateGlasses() error = %v", err)
	}

	if err := s.ReleaseGlasses(g); err != nil {
		t.Fatalf("ReleaseGlasses() error = %v", err)
	}
	if err := s.ReleaseGlasses(g); err != nil {
		t.Errorf("second ReleaseGlasses() error = %v", err)
	}
	if err := s.ReleaseGlasses(nil); err != nil {
		t.Errorf("ReleaseGlasses(nil) error = %v", err)
	}

	if n := drv.CallCount(devicetest.OpRelease); n != 1 {
		t.Errorf("ReleaseGlasses called %d times, want 1", n)
	}
	if n := drv.Handles(); n != 0 {
		t.Errorf("live native handles = %d, want 0", n)
	}
	if !g.Released() {
		t.Error("Released() = false")
	}
}

func TestReleaseDisablesWandFirst(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)
	g, _ := s.CreateGlasses("A")
	s.ReleaseGlasses(g)

	var order []string
	for _, c := range drv.Calls() {
		switch c.Op {
		case devicetest.OpWand, devicetest.OpRelease, devicetest.OpDestroy:
			order = append(order, c.Op)
		}
	}
	want := []string{devicetest.OpWand, devicetest.OpWand, devicetest.OpRelease, devicetest.OpDestroy}
	if len(order) != len(want) {
		t.Fatalf("call order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("call order = %v, want %v", order, want)
		}
	}
}

func TestReleasedGlassesRefuseOperations(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)
	g, _ := s.CreateGlasses("A")
	s.ReleaseGlasses(g)

	if _, err := s.GetPose(g); !errors.Is(err, device.ErrGlassesReleased) {
		t.Errorf("GetPose() error = %v, want ErrGlassesReleased", err)
	}
	if _, err := s.GetIPD(g); !errors.Is(err, device.ErrGlassesReleased) {
		t.Errorf("GetIPD() error = %v, want ErrGlassesReleased", err)
	}
	if err := s.InitGraphics(g, device.NewHostGraphics()); !errors.Is(err, device.ErrGlassesReleased) {
		t.Errorf("InitGraphics() error = %v, want ErrGlassesReleased", err)
	}
	if err := s.SubmitFrame(g, &device.FrameInfo{}); !errors.Is(err, device.ErrGlassesReleased) {
		t.Errorf("SubmitFrame() error = %v, want ErrGlassesReleased", err)
	}
	if n := drv.CallCount(devicetest.OpPose); n != 0 {
		t.Errorf("GlassesPose called %d times after release", n)
	}
}

func TestGetPose(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)
	g, _ := s.CreateGlasses("A")

	tests := []struct {
		name    string
		pose    device.NativePose
		wantErr bool
		want    common.Quat
	}{
		{
			name: "unit",
			pose: device.NativePose{Orientation: common.IdentityQuat()},
			want: common.IdentityQuat(),
		},
		{
			name: "renormalized",
			pose: device.NativePose{Orientation: common.Quat{W: 2}},
			want: common.IdentityQuat(),
		},
		{
			name:    "zero",
			pose:    device.NativePose{Orientation: common.Quat{}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv.SetPose("A", tt.pose)
			got, err := s.GetPose(g)
			if tt.wantErr {
				if !errors.Is(err, device.ErrInvalidPose) {
					t.Fatalf("GetPose() error = %v, want ErrInvalidPose", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetPose() error = %v", err)
			}
			if !got.Orientation.ApproxEqual(tt.want, 1e-6) {
				t.Errorf("orientation = %v, want %v", got.Orientation, tt.want)
			}
		})
	}
}

func TestGetPoseIsSingleAttempt(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)
	g, _ := s.CreateGlasses("A")
	drv.NoService(devicetest.OpPose, 1)

	if _, err := s.GetPose(g); !errors.Is(err, device.ErrNoService) {
		t.Fatalf("GetPose() error = %v, want ErrNoService", err)
	}
	if n := drv.CallCount(devicetest.OpPose); n != 1 {
		t.Errorf("GlassesPose called %d times, want 1", n)
	}
	if _, err := s.GetPose(g); err != nil {
		t.Errorf("GetPose() on next tick error = %v", err)
	}
}

func TestSubmitFrameRequiresGraphics(t *testing.T) {
	drv := devicetest.NewDriver("A")
	s := openSession(t, drv)
	g, _ := s.CreateGlasses("A")
	frame := &device.FrameInfo{Width: 4, Height: 2}

	if err := s.SubmitFrame(g, frame); !errors.Is(err, device.ErrGraphicsNotInitialized) {
		t.Fatalf("SubmitFrame() error = %v, want ErrGraphicsNotInitialized", err)
	}
	if err := s.InitGraphics(g, device.NewHostGraphics()); err != nil {
		t.Fatalf("InitGraphics() error = %v", err)
	}
	if err := s.SubmitFrame(g, frame); err != nil {
		t.Fatalf("SubmitFrame() error = %v", err)
	}

	stats := s.Stats()
	if stats.FramesSent != 1 || stats.FramesFailed != 1 {
		t.Errorf("Stats() = %+v, want 1 sent 1 failed", stats)
	}
	if n := len(drv.Frames("A")); n != 1 {
		t.Errorf("driver received %d frames, want 1", n)
	}
}

func TestGameboardSize(t *testing.T) {
	s := openSession(t, devicetest.NewDriver())
	size, err := s.GameboardSize(device.GameboardXERaised)
	if err != nil {
		t.Fatalf("GameboardSize() error = %v", err)
	}
	if size.PositiveZ <= 0 {
		t.Errorf("raised board PositiveZ = %v, want > 0", size.PositiveZ)
	}
}

func TestCloseReleasesEverythingOnce(t *testing.T) {
	drv := devicetest.NewDriver("A", "B")
	s, err := device.Open(drv, "oxy", "1.0", device.WithRetryDelay(0))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	a, _ := s.CreateGlasses("A")
	s.CreateGlasses("B")

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if drv.Handles() != 0 {
		t.Errorf("live native handles = %d, want 0", drv.Handles())
	}
	if drv.ContextOpen() {
		t.Error("context still open")
	}
	if n := drv.CallCount(devicetest.OpDestroyContext); n != 1 {
		t.Errorf("DestroyContext called %d times, want 1", n)
	}
	calls := drv.Calls()
	if last := calls[len(calls)-1]; last.Op != devicetest.OpDestroyContext {
		t.Errorf("last call = %v, want DestroyContext", last)
	}
	if !a.Released() {
		t.Error("glasses A not released")
	}
	if _, err := s.ListGlasses(); !errors.Is(err, device.ErrSessionClosed) {
		t.Errorf("ListGlasses() after Close error = %v, want ErrSessionClosed", err)
	}
}
