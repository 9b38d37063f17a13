// Package readback copies rendered eye textures back to CPU memory every tick so they can be handed
// to the glasses driver.
//
// Each device owns two buffer sets selected by tick parity. Maps are waited on concurrently by a
// worker pool with a bounded deadline while the render goroutine keeps polling the GPU, so one
// device's stalled map never delays another device. Worker pools are shared by every pipeline with
// the same worker count and live for the rest of the process.
package readback

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
)

const (
	// DefaultMapTimeout is one frame period at 60Hz.
	DefaultMapTimeout = 16 * time.Millisecond

	defaultWorkers      = 4
	defaultPollInterval = 250 * time.Microsecond
)

var (
	poolsMu sync.Mutex
	pools   = make(map[int]worker.DynamicWorkerPool)
)

// sharedPool returns the pool with n workers, starting it on first use. Stopping an automation pool
// does not reliably end all of its workers, so pools are never stopped and never duplicated.
func sharedPool(n int) worker.DynamicWorkerPool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	pool, ok := pools[n]
	if !ok {
		pool = worker.NewDynamicWorkerPool(n, 256, 1*time.Second)
		pools[n] = pool
	}
	return pool
}

var (
	// ErrMapTimeout marks a frame dropped because its maps did not complete before the deadline.
	ErrMapTimeout = errors.New("readback map timed out")

	// ErrSizeMismatch marks a request whose eye targets differ in size.
	ErrSizeMismatch = errors.New("eye render targets differ in size")
)

// Request asks for one device's eye targets to be read back this tick.
type Request struct {
	ID    string
	Left  gpu.RenderTarget
	Right gpu.RenderTarget
}

// Frame is the result of one Request. Left and Right hold Height rows of RowPitch bytes each;
// only the first Width*4 bytes of every row are pixels.
type Frame struct {
	ID       string
	Tick     uint64
	Width    uint32
	Height   uint32
	RowPitch uint32
	Left     []byte
	Right    []byte
	Err      error
}

// Stats counts frame outcomes since the pipeline was created.
type Stats struct {
	Completed      uint64
	DroppedTimeout uint64
	DroppedError   uint64
}

// Pipeline reads back stereo eye targets. All methods are called from the render goroutine.
type Pipeline interface {
	// Process copies every requested target pair into this tick's buffer set, maps the buffers and
	// waits for them with a bounded deadline. Devices that miss the deadline get ErrMapTimeout and
	// their buffer set is reallocated on its next use.
	//
	// Parameters:
	//   - tick: the tick number; its parity selects the buffer set
	//   - requests: one entry per device
	//
	// Returns:
	//   - []Frame: one frame per request, in request order
	Process(tick uint64, requests []Request) []Frame

	// Forget releases every buffer owned by the device. Unknown ids are ignored.
	//
	// Parameters:
	//   - id: the device identifier
	Forget(id string)

	// Stats returns the outcome counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Close releases every buffer. The shared worker pool keeps running for other pipelines.
	Close()
}

type bufferSet struct {
	left  gpu.ReadbackBuffer
	right gpu.ReadbackBuffer
}

func (s *bufferSet) release() {
	s.left.Release()
	s.right.Release()
}

type deviceBuffers struct {
	width  uint32
	height uint32
	sets   [2]*bufferSet
}

type job struct {
	index     int
	id        string
	set       int
	bufs      *bufferSet
	leftDone  chan error
	rightDone chan error
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	mu *sync.Mutex

	dev          gpu.Device
	pool         worker.DynamicWorkerPool
	workers      int
	timeout      time.Duration
	pollInterval time.Duration

	devices map[string]*deviceBuffers
	taskID  int

	completed      atomic.Uint64
	droppedTimeout atomic.Uint64
	droppedError   atomic.Uint64
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a readback pipeline on the given device.
//
// Parameters:
//   - dev: the GPU device the eye targets live on
//   - options: variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the pipeline
func NewPipeline(dev gpu.Device, options ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:           &sync.Mutex{},
		dev:          dev,
		workers:      defaultWorkers,
		timeout:      DefaultMapTimeout,
		pollInterval: defaultPollInterval,
		devices:      make(map[string]*deviceBuffers),
	}
	for _, option := range options {
		option(p)
	}

	p.pool = sharedPool(p.workers)
	return p
}

func (p *pipeline) Process(tick uint64, requests []Request) []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := int(tick % 2)
	frames := make([]Frame, len(requests))
	jobs := make([]*job, 0, len(requests))
	copies := make([]gpu.Copy, 0, 2*len(requests))

	for i, req := range requests {
		frames[i] = Frame{ID: req.ID, Tick: tick}
		bufs, err := p.buffersFor(req, set)
		if err != nil {
			frames[i].Err = err
			p.droppedError.Add(1)
			common.Logger().Warn("readback buffers unavailable", "glasses", req.ID, "error", err)
			continue
		}
		frames[i].Width = req.Left.Width()
		frames[i].Height = req.Left.Height()
		frames[i].RowPitch = gpu.PaddedBytesPerRow(req.Left.Width())

		jobs = append(jobs, &job{index: i, id: req.ID, set: set, bufs: bufs})
		copies = append(copies,
			gpu.Copy{Source: req.Left, Destination: bufs.left},
			gpu.Copy{Source: req.Right, Destination: bufs.right},
		)
	}
	if len(jobs) == 0 {
		return frames
	}

	if err := p.dev.CopyToBuffers(copies...); err != nil {
		for _, j := range jobs {
			frames[j.index].Err = fmt.Errorf("copy eye targets: %w", err)
			p.droppedError.Add(1)
			p.discard(j.id, j.set)
		}
		common.Logger().Warn("readback copy failed", "tick", tick, "error", err)
		return frames
	}

	deadline := time.Now().Add(p.timeout)
	var wg sync.WaitGroup
	for _, j := range jobs {
		j.leftDone = make(chan error, 1)
		j.rightDone = make(chan error, 1)
		left, right := j.leftDone, j.rightDone
		j.bufs.left.MapRead(func(err error) { left <- err })
		j.bufs.right.MapRead(func(err error) { right <- err })

		wg.Add(1)
		jCap := j
		p.taskID++
		p.pool.SubmitTask(worker.Task{
			ID: p.taskID,
			Do: func() (any, error) {
				defer wg.Done()
				collect(jCap, deadline, &frames[jCap.index])
				return nil, nil
			},
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	p.dev.Poll(false)
	for waiting := true; waiting; {
		select {
		case <-done:
			waiting = false
		case <-ticker.C:
			p.dev.Poll(false)
		}
	}

	for _, j := range jobs {
		err := frames[j.index].Err
		switch {
		case err == nil:
			p.completed.Add(1)
		case errors.Is(err, ErrMapTimeout):
			p.droppedTimeout.Add(1)
			p.discard(j.id, j.set)
			common.Logger().Debug("readback frame dropped", "glasses", j.id, "tick", tick, "error", err)
		default:
			p.droppedError.Add(1)
			p.discard(j.id, j.set)
			common.Logger().Warn("readback frame dropped", "glasses", j.id, "tick", tick, "error", err)
		}
	}
	return frames
}

// collect waits for both eye maps of j until deadline, then copies the mapped bytes into f.
// Runs on a pool worker.
func collect(j *job, deadline time.Time, f *Frame) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var leftErr, rightErr error
	var gotLeft, gotRight bool
	for !gotLeft || !gotRight {
		select {
		case leftErr = <-j.leftDone:
			gotLeft = true
		case rightErr = <-j.rightDone:
			gotRight = true
		case <-timer.C:
			// A job that waited in the queue past the deadline still takes maps that already finished.
			if !gotLeft {
				select {
				case leftErr = <-j.leftDone:
					gotLeft = true
				default:
				}
			}
			if !gotRight {
				select {
				case rightErr = <-j.rightDone:
					gotRight = true
				default:
				}
			}
			if !gotLeft || !gotRight {
				f.Err = ErrMapTimeout
				return
			}
		}
	}
	if err := errors.Join(leftErr, rightErr); err != nil {
		f.Err = fmt.Errorf("map eye buffers: %w", err)
		return
	}

	var err error
	if f.Left, err = copyMapped(j.bufs.left); err != nil {
		f.Err = err
		return
	}
	if f.Right, err = copyMapped(j.bufs.right); err != nil {
		f.Err = err
	}
}

func copyMapped(b gpu.ReadbackBuffer) ([]byte, error) {
	data, err := b.Mapped()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	b.Unmap()
	return out, nil
}

// buffersFor returns the device's buffer set for this tick, allocating it if needed. Callers hold p.mu.
func (p *pipeline) buffersFor(req Request, set int) (*bufferSet, error) {
	if req.Left == nil || req.Right == nil {
		return nil, fmt.Errorf("glasses %s: missing eye render target", req.ID)
	}
	w, h := req.Left.Width(), req.Left.Height()
	if req.Right.Width() != w || req.Right.Height() != h {
		return nil, fmt.Errorf("glasses %s: %w", req.ID, ErrSizeMismatch)
	}

	st := p.devices[req.ID]
	if st != nil && (st.width != w || st.height != h) {
		p.forgetLocked(req.ID)
		st = nil
	}
	if st == nil {
		st = &deviceBuffers{width: w, height: h}
		p.devices[req.ID] = st
	}
	if st.sets[set] != nil {
		return st.sets[set], nil
	}

	size := gpu.ReadbackSize(w, h)
	left, err := p.dev.CreateReadbackBuffer(fmt.Sprintf("%s/left/set%d", req.ID, set), size)
	if err != nil {
		return nil, err
	}
	right, err := p.dev.CreateReadbackBuffer(fmt.Sprintf("%s/right/set%d", req.ID, set), size)
	if err != nil {
		left.Release()
		return nil, err
	}
	st.sets[set] = &bufferSet{left: left, right: right}
	return st.sets[set], nil
}

// discard releases one buffer set so it is reallocated on next use. Callers hold p.mu.
func (p *pipeline) discard(id string, set int) {
	st := p.devices[id]
	if st == nil || st.sets[set] == nil {
		return
	}
	st.sets[set].release()
	st.sets[set] = nil
}

func (p *pipeline) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forgetLocked(id)
}

func (p *pipeline) forgetLocked(id string) {
	st := p.devices[id]
	if st == nil {
		return
	}
	for i, s := range st.sets {
		if s != nil {
			s.release()
			st.sets[i] = nil
		}
	}
	delete(p.devices, id)
}

func (p *pipeline) Stats() Stats {
	return Stats{
		Completed:      p.completed.Load(),
		DroppedTimeout: p.droppedTimeout.Load(),
		DroppedError:   p.droppedError.Load(),
	}
}

func (p *pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.devices {
		p.forgetLocked(id)
	}
}
