package audio

import (
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
)

const (
	sampleRate      = 48000
	channelNum      = 2
	bitDepthInBytes = 2
	samplesPerCycle = 1024
	quantum         = 128  // frames per render block
	fftSize         = 2048 // multiple of quantum
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const secPerSample = 1.0 / sampleRate
const nyquist = sampleRate / 2

// ----- Utility ----- //

func positiveMod(a float64, b float64) float64 {
	a = math.Mod(a, b)
	if a < 0 {
		a += b
	}
	return a
}

// NoteToFrequency converts a MIDI note number to Hz (A4 = 69 = 440 Hz).
func NoteToFrequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// ----- Renderer ----- //

// renderer is the render clock. Read is called from a single goroutine
// (the output device's pump); everything else it touches is either owned by
// that goroutine or exchanged atomically.
type renderer struct {
	topology  *atomic.Pointer[topology]
	queue     chan paramBatch
	frames    atomic.Int64
	suspended atomic.Bool
	closed    atomic.Bool
	last      *topology
	out       stereo
	pos       int
	tap       *analyser
}

var _ io.Reader = (*renderer)(nil)

func newRenderer(t *atomic.Pointer[topology], queue chan paramBatch) *renderer {
	return &renderer{
		topology: t,
		queue:    queue,
		out:      newStereo(),
		pos:      quantum,
		tap:      newAnalyser(),
	}
}

func (r *renderer) currentTime() float64 {
	return float64(r.frames.Load()) * secPerSample
}

// Read fills buf with interleaved 16-bit little-endian frames.
func (r *renderer) Read(buf []byte) (int, error) {
	if r.closed.Load() {
		return 0, io.EOF
	}
	frames := len(buf) / bytesPerSample
	for i := 0; i < frames; i++ {
		if r.pos >= quantum {
			r.renderBlock()
			r.pos = 0
		}
		for ch := 0; ch < channelNum; ch++ {
			writeSample(buf, i, ch, r.out[ch][r.pos])
		}
		r.pos++
	}
	return frames * bytesPerSample, nil
}

func writeSample(buf []byte, i int, ch int, value float64) {
	const max = 32767
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	b := int16(value * max)
	buf[bytesPerSample*i+2*ch] = byte(b)
	buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
}

func (r *renderer) drain() {
	for {
		select {
		case b := <-r.queue:
			for _, ev := range b.events {
				b.p.apply(ev)
			}
		default:
			return
		}
	}
}

// renderBlock renders one quantum into r.out. While suspended it drains the
// queue and emits silence without advancing the clock.
func (r *renderer) renderBlock() {
	r.drain()
	r.out.clear()
	if r.suspended.Load() {
		return
	}
	frame := r.frames.Load()
	b := &block{frame: frame, time: float64(frame) * secPerSample}
	if t := r.topology.Load(); t != nil {
		if t != r.last {
			resetEntering(r.last, t)
			r.last = t
		}
		t.render(b)
		copy(r.out[0], t.steps[t.sink].out[0])
		copy(r.out[1], t.steps[t.sink].out[1])
	}
	r.tap.write(r.out)
	r.frames.Add(quantum)
}

func resetEntering(prev *topology, next *topology) {
	for i := range next.steps {
		n := next.steps[i].n
		if prev != nil && prev.contains(n) {
			continue
		}
		if rs, ok := n.(resetter); ok {
			rs.reset()
		}
	}
}

func (t *topology) render(b *block) {
	for i := range t.steps {
		s := &t.steps[i]
		s.in.clear()
		if _, late := s.n.(feedbackNode); !late {
			for _, src := range s.inputs {
				s.in.add(t.steps[src].out)
			}
		}
		for _, m := range s.mods {
			m.param.addModulation(t.steps[m.src].out[0])
		}
		s.n.process(b, s.in, s.out)
	}
	for _, i := range t.writes {
		s := &t.steps[i]
		s.in.clear()
		for _, src := range s.inputs {
			s.in.add(t.steps[src].out)
		}
		s.n.(feedbackNode).write(b, s.in)
	}
}

// ----- Analyser ----- //

type analyser struct {
	sync.Mutex
	out    []float64
	pos    int
	window []float64
	plan   *algofft.Plan[complex128]
}

func newAnalyser() *analyser {
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		log.Printf("analyser disabled: %v\n", err)
	}
	return &analyser{
		out:    make([]float64, fftSize),
		window: window.Generate(window.TypeHann, fftSize, window.WithPeriodic()),
		plan:   plan,
	}
}

func (a *analyser) write(s stereo) {
	a.Lock()
	for i := 0; i < quantum; i++ {
		a.out[a.pos] = (s[0][i] + s[1][i]) / 2
		a.pos = (a.pos + 1) % fftSize
	}
	a.Unlock()
}

// spectrum returns the magnitude of the last fftSize mixed-down samples.
func (a *analyser) spectrum() []float64 {
	if a.plan == nil {
		return nil
	}
	data := make([]float64, fftSize)
	a.Lock()
	// out:  | 4 | 1 | 2 | 3 |
	// pos:      ^
	// data: | 1 | 2 | 3 | 4 |
	copy(data, a.out[a.pos:])
	copy(data[fftSize-a.pos:], a.out[:a.pos])
	a.Unlock()
	vecmath.MulBlockInPlace(data, a.window)
	x := make([]complex128, fftSize)
	for i, v := range data {
		x[i] = complex(v, 0)
	}
	bins := make([]complex128, fftSize)
	if err := a.plan.Forward(bins, x); err != nil {
		log.Printf("analyser: %v\n", err)
		return nil
	}
	re := make([]float64, fftSize/2)
	im := make([]float64, fftSize/2)
	for i := range re {
		re[i] = real(bins[i])
		im[i] = imag(bins[i])
	}
	result := make([]float64, fftSize/2)
	vecmath.Magnitude(result, re, im)
	for i, value := range result {
		result[i] = value * 2 / fftSize
	}
	return result
}
