// t5viewer renders a small tabletop scene into connected Tilt Five glasses and shows the same scene
// from an orbiting camera in a desktop window.
//
// Without hardware the simulated driver is used: its glasses orbit the board, and their poses can
// be recorded to or replayed from a CBOR stream. With --headless no window is opened and the eye
// views are still rendered off-screen and submitted to the glasses.
//
// Keys: R refreshes the glasses list, 1-9 select a listed pair, C connects and D disconnects the
// selection. Escape closes the window.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine"
	"github.com/Carmen-Shannon/oxy-t5/engine/camera"
	"github.com/Carmen-Shannon/oxy-t5/engine/config"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/device/simdriver"
	"github.com/Carmen-Shannon/oxy-t5/engine/glasses"
	"github.com/Carmen-Shannon/oxy-t5/engine/node"
	"github.com/Carmen-Shannon/oxy-t5/engine/renderer"
	"github.com/Carmen-Shannon/oxy-t5/engine/window"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	logLevel   string
	driver     string
	replay     string
	record     string
	headless   bool
	software   bool
	profile    bool
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("t5viewer", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (watched for auto-connect changes)")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.StringVar(&opts.driver, "driver", "", "override device.driver: native or simulated")
	flagSet.StringVar(&opts.replay, "replay", "", "replay a recorded pose stream with the simulated driver")
	flagSet.StringVar(&opts.record, "record", "", "record glasses poses to this file")
	flagSet.BoolVar(&opts.headless, "headless", false, "render the glasses only, without a desktop window")
	flagSet.BoolVar(&opts.software, "software", false, "force the software GPU adapter")
	flagSet.BoolVar(&opts.profile, "profile", false, "log frame rate and readback statistics")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	level, err := parseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	logger := common.Logger()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	drv, closeDriver, err := openDriver(cfg)
	if err != nil {
		return err
	}
	defer closeDriver()

	var win window.Window
	if !opts.headless {
		win = window.NewWindow(
			window.WithTitle("oxy-t5"),
			window.WithSize(1280, 720),
		)
	}
	r := renderer.NewRenderer(renderer.BackendTypeWGPU, win,
		renderer.WithForceSoftwareRenderer(opts.software),
	)

	graph := node.NewGraph()
	controller := camera.NewOrbitController(
		camera.WithRadius(1.2),
		camera.WithElevation(0.6),
		camera.WithAzimuth(0.4),
	)
	aspect := float32(16.0 / 9.0)
	if win != nil && win.Height() > 0 {
		aspect = float32(win.Width()) / float32(win.Height())
	}
	cam := camera.NewCamera("viewer",
		camera.WithFov(float32(45*math.Pi/180)),
		camera.WithAspect(aspect),
		camera.WithClip(0.01, 100),
		camera.WithController(controller),
	)

	eng := engine.NewEngine(
		engine.WithTickRate(float64(cfg.Engine.TickRate)),
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithGraph(graph),
		engine.WithCamera(cam),
		engine.WithProfiling(opts.profile || cfg.ProfileInterval() > 0),
		engine.WithProfileInterval(cfg.ProfileInterval()),
	)

	plugin, err := glasses.NewPlugin(drv, r, graph,
		glasses.WithApp(cfg.App.ID, cfg.App.Version),
		glasses.WithSessionOptions(cfg.SessionOptions()...),
		glasses.WithEyeTexture(cfg.Glasses.Width, cfg.Glasses.Height, cfg.Glasses.FOV),
		glasses.WithDefaultIPD(cfg.Glasses.DefaultIPD),
		glasses.WithMapTimeout(cfg.MapTimeout()),
		glasses.WithGameboard(cfg.Gameboard()),
		glasses.WithAutoConnectIDs(cfg.Glasses.AutoConnect...),
		glasses.WithRefreshInterval(uint64(cfg.Engine.TickRate)),
	)
	if err != nil {
		// The viewer still runs without glasses.
		logger.Error("glasses unavailable", "err", err)
	} else {
		eng.AddPlugin(plugin)
	}

	spawnScene(graph)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		eng.Quit()
	}()

	if plugin != nil {
		reg := plugin.Registry()
		if opts.configPath != "" {
			go func() {
				err := config.Watch(ctx, opts.configPath, func(c *config.Config) {
					reg.SetAutoConnect(c.Glasses.AutoConnect)
				})
				if err != nil {
					logger.Warn("config watch stopped", "err", err)
				}
			}()
		}
		if win != nil {
			bindKeys(win, reg)
			eng.SetTickCallback(func(tick uint64, dt float32) {
				if tick%30 == 0 {
					win.SetTitle(statusTitle(reg.Glasses()))
				}
			})
		}
	}
	if win != nil {
		win.SetScrollCallback(func(delta float32) {
			controller.Zoom(delta)
		})
		win.SetDragCallback(func(dx, dy float32) {
			controller.Orbit(dx, dy)
		})
	}

	logger.Info("viewer running", "driver", cfg.Device.Driver, "headless", opts.headless)
	return eng.Run()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}

// loadConfig reads the configuration file, if any, and applies the command line overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadFile(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Device.Driver = common.Coalesce(opts.driver, cfg.Device.Driver)
	cfg.Simulated.Replay = common.Coalesce(opts.replay, cfg.Simulated.Replay)
	cfg.Simulated.Record = common.Coalesce(opts.record, cfg.Simulated.Record)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openDriver builds the configured driver, wrapped in a pose recorder when recording is enabled.
// The returned function closes the recording.
func openDriver(cfg *config.Config) (device.Driver, func(), error) {
	var drv device.Driver
	switch cfg.Device.Driver {
	case config.DriverNative:
		native, err := device.NewNativeDriver()
		if err != nil {
			return nil, nil, err
		}
		drv = native
	default:
		simOpts := []simdriver.DriverBuilderOption{
			simdriver.WithGlasses(cfg.Simulated.Glasses...),
			simdriver.WithIPD(cfg.Simulated.IPD),
			simdriver.WithGameboard(cfg.Gameboard()),
		}
		if cfg.Simulated.Replay != "" {
			rp, err := simdriver.OpenReplay(cfg.Simulated.Replay)
			if err != nil {
				return nil, nil, err
			}
			simOpts = append(simOpts, simdriver.WithGlasses(rp.IDs()...), simdriver.WithPoseSource(rp))
		} else {
			simOpts = append(simOpts, simdriver.WithPoseSource(simdriver.Orbit{
				Radius: cfg.Simulated.OrbitRadius,
				Height: cfg.Simulated.Height,
				Period: cfg.OrbitPeriod(),
				Board:  cfg.Gameboard(),
			}))
		}
		drv = simdriver.NewDriver(simOpts...)
	}

	if cfg.Simulated.Record == "" {
		return drv, func() {}, nil
	}
	f, err := os.Create(cfg.Simulated.Record)
	if err != nil {
		return nil, nil, fmt.Errorf("create recording: %w", err)
	}
	rec := simdriver.NewRecorder(drv, f)
	return rec, func() {
		closeRecording(f, rec)
	}, nil
}

func closeRecording(c io.Closer, rec *simdriver.Recorder) {
	if err := c.Close(); err != nil {
		common.Logger().Warn("closing recording failed", "err", err)
		return
	}
	common.Logger().Info("recording closed", "samples", rec.Written())
}

// spawnScene adds a few boxes on the board for the glasses to look at.
func spawnScene(graph node.Graph) {
	colors := [][4]float32{
		{0.9, 0.6, 0.1, 1},
		{0.2, 0.6, 0.9, 1},
		{0.3, 0.8, 0.3, 1},
	}
	for i, c := range colors {
		angle := float64(i) * 2 * math.Pi / float64(len(colors))
		pos := common.Vec3{
			X: float32(0.15 * math.Cos(angle)),
			Y: 0.04,
			Z: float32(0.15 * math.Sin(angle)),
		}
		graph.Spawn(fmt.Sprintf("block %d", i), nil,
			node.WithTransform(common.Transform{Position: pos, Rotation: common.IdentityQuat()}),
			node.WithBox(common.Vec3{X: 0.08, Y: 0.08, Z: 0.08}, c),
		)
	}
	graph.Spawn("tower", nil,
		node.WithTransform(common.Transform{Position: common.Vec3{Y: 0.1}, Rotation: common.IdentityQuat()}),
		node.WithBox(common.Vec3{X: 0.05, Y: 0.2, Z: 0.05}, [4]float32{0.85, 0.85, 0.9, 1}),
	)
}

// bindKeys maps the keyboard to registry commands. The selection indexes the sorted glasses list.
func bindKeys(win window.Window, reg glasses.Registry) {
	var selected atomic.Int32
	win.SetKeyDownCallback(func(key uint32) {
		if i, ok := common.DigitIndex(key); ok {
			selected.Store(int32(i))
			return
		}
		switch key {
		case common.KeyR:
			reg.Refresh()
		case common.KeyC, common.KeyD:
			list := reg.Glasses()
			i := int(selected.Load())
			if i >= len(list) {
				common.Logger().Info("no glasses at selection", "index", i+1)
				return
			}
			if key == common.KeyC {
				reg.Connect(list[i].ID)
			} else {
				reg.Disconnect(list[i].ID)
			}
		}
	})
}

// statusTitle summarizes the glasses list for the window title.
func statusTitle(list []glasses.Status) string {
	if len(list) == 0 {
		return "oxy-t5 - no glasses"
	}
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = fmt.Sprintf("%d:%s %s", i+1, s.ID, s.State)
	}
	return "oxy-t5 - " + strings.Join(parts, ", ")
}
