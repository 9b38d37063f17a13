package glasses

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/device/devicetest"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
)

func newTestPlugin(t *testing.T, drv device.Driver) (*Plugin, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice()
	p, err := NewPlugin(drv, dev, node.NewGraph(),
		WithApp("plugin-test", "1"),
		WithSessionOptions(device.WithRetryDelay(0)),
		WithEyeTexture(16, 8, 48),
	)
	if err != nil {
		t.Fatalf("NewPlugin() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, dev
}

// step runs one simulation tick followed by one render frame.
func step(p *Plugin, n uint64) {
	p.Tick(n, 1.0/60)
	p.Render(n, 1.0/60)
}

func TestPluginTwoGlassesOneConnected(t *testing.T) {
	drv := devicetest.NewDriver("T5-A", "T5-B")
	p, dev := newTestPlugin(t, drv)

	step(p, 1)
	step(p, 2)
	if got := p.Registry().Glasses(); len(got) != 2 {
		t.Fatalf("registry lists %d glasses, want 2", len(got))
	}
	if _, ok := p.Registry().GameboardSize(); !ok {
		t.Error("gameboard size not known after the first frames")
	}

	p.Registry().Connect("T5-A")
	for n := uint64(3); n <= 6; n++ {
		step(p, n)
	}

	if st, _ := p.Registry().Status("T5-A"); st.State != StateConnected || !st.HasTargets {
		t.Fatalf("T5-A status = %+v, want connected with targets", st)
	}
	if st, _ := p.Registry().Status("T5-B"); st.State != StateListed {
		t.Errorf("T5-B status = %+v, want listed", st)
	}
	if n := len(dev.LiveTargets("T5-A/")); n != 2 {
		t.Errorf("T5-A eye targets = %d, want 2", n)
	}
	if n := len(dev.LiveTargets("T5-B/")); n != 0 {
		t.Errorf("T5-B eye targets = %d, want 0", n)
	}
	if n := len(drv.Frames("T5-A")); n == 0 {
		t.Error("no frames submitted for T5-A")
	}
	if n := len(drv.Frames("T5-B")); n != 0 {
		t.Errorf("%d frames submitted for T5-B", n)
	}
	if !drv.Reserved("T5-A") || drv.Reserved("T5-B") {
		t.Error("only T5-A should be reserved")
	}

	p.Registry().Disconnect("T5-A")
	for n := uint64(7); n <= 9; n++ {
		step(p, n)
	}

	if n := len(dev.LiveTargets("T5-A/")); n != 0 {
		t.Errorf("T5-A eye targets after disconnect = %d, want 0", n)
	}
	if n := len(dev.LiveBuffers("T5-A/")); n != 0 {
		t.Errorf("T5-A readback buffers after disconnect = %d, want 0", n)
	}
	if _, ok := p.Manager().State("T5-A"); ok {
		t.Error("manager still tracks T5-A")
	}
	if drv.Handles() != 0 {
		t.Errorf("driver holds %d handles, want 0", drv.Handles())
	}
	if st, _ := p.Registry().Status("T5-A"); st.State != StateListed {
		t.Errorf("T5-A status after disconnect = %+v, want listed", st)
	}
}

func TestPluginAutoConnect(t *testing.T) {
	drv := devicetest.NewDriver("T5-A")
	dev := gputest.NewDevice()
	p, err := NewPlugin(drv, dev, node.NewGraph(),
		WithSessionOptions(device.WithRetryDelay(0)),
		WithEyeTexture(8, 8, 48),
		WithAutoConnectIDs("T5-A"),
	)
	if err != nil {
		t.Fatalf("NewPlugin() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })

	for n := uint64(1); n <= 5; n++ {
		step(p, n)
	}
	if st, _ := p.Registry().Status("T5-A"); st.State != StateConnected {
		t.Errorf("T5-A status = %+v, want connected", st)
	}
}

func TestPluginWithoutDriver(t *testing.T) {
	_, err := NewPlugin(nil, gputest.NewDevice(), node.NewGraph())
	if !errors.Is(err, device.ErrDriverUnavailable) {
		t.Errorf("NewPlugin(nil) error = %v, want ErrDriverUnavailable", err)
	}
}

func TestPluginWithoutService(t *testing.T) {
	drv := devicetest.NewDriver("T5-A")
	drv.Fail(devicetest.OpCreateContext, device.ResultNoService)
	_, err := NewPlugin(drv, gputest.NewDevice(), node.NewGraph(),
		WithSessionOptions(device.WithRetryDelay(0)),
	)
	if err == nil {
		t.Fatal("NewPlugin() succeeded without a service")
	}
	// The failed attempt must not hold the process-wide session.
	p, _ := newTestPlugin(t, devicetest.NewDriver())
	if p == nil {
		t.Fatal("plugin could not be created after a failed attempt")
	}
}

func TestPluginStats(t *testing.T) {
	p, _ := newTestPlugin(t, devicetest.NewDriver())
	stats := p.Stats()
	if len(stats)%2 != 0 {
		t.Fatalf("Stats() has odd length %d", len(stats))
	}
	keys := make(map[string]bool)
	for i := 0; i < len(stats); i += 2 {
		keys[stats[i].(string)] = true
	}
	for _, k := range []string{"connected", "frames_sent", "readback_completed", "dropped_timeout", "stale_poses"} {
		if !keys[k] {
			t.Errorf("Stats() missing %q", k)
		}
	}
}
