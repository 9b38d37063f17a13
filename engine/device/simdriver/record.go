package simdriver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/fxamacker/cbor/v2"
)

// Sample is one recorded pose. A recording is a CBOR sequence of samples in capture order.
type Sample struct {
	Elapsed int64             `cbor:"t"`
	ID      string            `cbor:"id"`
	Pose    device.NativePose `cbor:"pose"`
	IPD     float32           `cbor:"ipd,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("simdriver: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("simdriver: CBOR decoder initialization failed: " + err.Error())
	}
}

// Replay plays back a recording, looping when it reaches the end.
type Replay struct {
	samples  map[string][]Sample
	duration time.Duration
}

var _ PoseSource = &Replay{}

// LoadReplay decodes a recording.
//
// Parameters:
//   - r: the CBOR sequence
//
// Returns:
//   - *Replay: the replay
//   - error: an error if decoding failed or the recording is empty
func LoadReplay(r io.Reader) (*Replay, error) {
	dec := decMode.NewDecoder(r)
	rp := &Replay{samples: make(map[string][]Sample)}
	for {
		var s Sample
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decoding pose sample: %w", err)
		}
		rp.samples[s.ID] = append(rp.samples[s.ID], s)
		if d := time.Duration(s.Elapsed); d > rp.duration {
			rp.duration = d
		}
	}
	if len(rp.samples) == 0 {
		return nil, errors.New("recording holds no pose samples")
	}
	for _, list := range rp.samples {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Elapsed < list[j].Elapsed })
	}
	return rp, nil
}

// OpenReplay loads a recording from a file.
//
// Parameters:
//   - path: the recording file
//
// Returns:
//   - *Replay: the replay
//   - error: an error if the file cannot be read or decoded
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay: %w", err)
	}
	defer f.Close()
	return LoadReplay(f)
}

// IDs returns the recorded identifiers, sorted.
func (rp *Replay) IDs() []string {
	ids := make([]string, 0, len(rp.samples))
	for id := range rp.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Pose returns the latest sample for id at or before elapsed, wrapping at the end of the recording.
func (rp *Replay) Pose(id string, elapsed time.Duration) (device.NativePose, float32, bool) {
	list := rp.samples[id]
	if len(list) == 0 {
		return device.NativePose{}, 0, false
	}
	t := int64(elapsed)
	if rp.duration > 0 {
		t = int64(elapsed % (rp.duration + 1))
	}
	i := sort.Search(len(list), func(i int) bool { return list[i].Elapsed > t })
	if i == 0 {
		return device.NativePose{}, 0, false
	}
	s := list[i-1]
	return s.Pose, s.IPD, true
}

// Recorder wraps a driver and writes every successful pose query to a CBOR sequence.
// Recording stops at the first write error; the wrapped driver keeps working.
type Recorder struct {
	device.Driver

	mu      sync.Mutex
	enc     *cbor.Encoder
	ids     map[device.GlassesHandle]string
	ipds    map[device.GlassesHandle]float32
	start   time.Time
	now     func() time.Time
	failed  bool
	written int
}

// NewRecorder wraps d, writing samples to w.
//
// Parameters:
//   - d: the driver to record
//   - w: the destination of the CBOR sequence
//
// Returns:
//   - *Recorder: the recording driver
func NewRecorder(d device.Driver, w io.Writer) *Recorder {
	return &Recorder{
		Driver: d,
		enc:    encMode.NewEncoder(w),
		ids:    make(map[device.GlassesHandle]string),
		ipds:   make(map[device.GlassesHandle]float32),
		start:  time.Now(),
		now:    time.Now,
	}
}

// Written returns the number of samples recorded so far.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func (r *Recorder) CreateGlasses(ctx device.ContextHandle, id string) (device.GlassesHandle, device.Result) {
	h, res := r.Driver.CreateGlasses(ctx, id)
	if res == device.ResultSuccess {
		r.mu.Lock()
		r.ids[h] = id
		r.mu.Unlock()
	}
	return h, res
}

func (r *Recorder) DestroyGlasses(g device.GlassesHandle) {
	r.Driver.DestroyGlasses(g)
	r.mu.Lock()
	delete(r.ids, g)
	delete(r.ipds, g)
	r.mu.Unlock()
}

func (r *Recorder) GlassesIPD(g device.GlassesHandle) (float32, device.Result) {
	ipd, res := r.Driver.GlassesIPD(g)
	if res == device.ResultSuccess {
		r.mu.Lock()
		r.ipds[g] = ipd
		r.mu.Unlock()
	}
	return ipd, res
}

func (r *Recorder) GlassesPose(g device.GlassesHandle) (device.NativePose, device.Result) {
	pose, res := r.Driver.GlassesPose(g)
	if res != device.ResultSuccess {
		return pose, res
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return pose, res
	}
	s := Sample{
		Elapsed: int64(r.now().Sub(r.start)),
		ID:      r.ids[g],
		Pose:    pose,
		IPD:     r.ipds[g],
	}
	if err := r.enc.Encode(s); err != nil {
		r.failed = true
		common.Logger().Warn("pose recording stopped", "err", err)
		return pose, res
	}
	r.written++
	return pose, res
}
