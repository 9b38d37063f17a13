package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
)

// StatsSource reports extra key/value pairs to include in each profiler line.
type StatsSource func() []any

// Profiler tracks frame rate, memory statistics and registered pipeline counters.
// Outputs stats to the engine logger at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	name           string
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	sources        map[string]StatsSource
	order          []string
	now            func() time.Time
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - name: the loop being profiled, e.g. "render"
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(name string) *Profiler {
	return &Profiler{
		name:           name,
		lastTime:       time.Now(),
		updateInterval: time.Second,
		sources:        make(map[string]StatsSource),
		now:            time.Now,
	}
}

// SetInterval changes how often stats are logged.
//
// Parameters:
//   - d: the interval, ignored if not positive
func (p *Profiler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateInterval = d
}

// AddSource registers extra counters under a group name. A later call with the same name replaces
// the earlier source.
//
// Parameters:
//   - name: the group name used in the log line
//   - src: the source to query at each report
func (p *Profiler) AddSource(name string, src StatsSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sources[name]; !ok {
		p.order = append(p.order, name)
	}
	p.sources[name] = src
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var maxPauseUs uint64
	startIdx := p.lastGCCount
	if gcCount-startIdx > 256 {
		startIdx = gcCount - 256
	}
	for i := startIdx; i < gcCount; i++ {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
			maxPauseUs = pause
		}
	}

	attrs := []any{
		"loop", p.name,
		"fps", fps,
		"heap_mb", allocMB,
		"alloc_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_max_pause_us", maxPauseUs,
	}
	for _, name := range p.order {
		attrs = append(attrs, groupAttrs(name, p.sources[name]())...)
	}
	common.Logger().Info("profiler", attrs...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// groupAttrs prefixes every key in kv with the group name.
func groupAttrs(group string, kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, group+"."+key, kv[i+1])
	}
	return out
}
