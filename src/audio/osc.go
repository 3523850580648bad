package audio

import (
	"fmt"
	"math"
	"sync/atomic"
)

// ----- Waveform ----- //

// Waveform is the shape of a generator's periodic signal.
type Waveform int

// Waveforms
const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSaw
	WaveTriangle
)

func (w Waveform) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveSquare:
		return "square"
	case WaveSaw:
		return "saw"
	case WaveTriangle:
		return "triangle"
	}
	return fmt.Sprintf("waveform(%d)", int(w))
}

// ParseWaveform ...
func ParseWaveform(s string) (Waveform, error) {
	switch s {
	case "sine":
		return WaveSine, nil
	case "square":
		return WaveSquare, nil
	case "saw", "sawtooth":
		return WaveSaw, nil
	case "triangle":
		return WaveTriangle, nil
	}
	return 0, fmt.Errorf("%w: unknown waveform %q", ErrInvalidParameter, s)
}

func (w Waveform) valid() bool {
	return w >= WaveSine && w <= WaveTriangle
}

// MarshalText ...
func (w Waveform) MarshalText() ([]byte, error) {
	if !w.valid() {
		return nil, fmt.Errorf("%w: unknown waveform %d", ErrInvalidParameter, int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText ...
func (w *Waveform) UnmarshalText(text []byte) error {
	parsed, err := ParseWaveform(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ----- OSC ----- //

// oscillator is used both for generators and for modulators. Its output is
// written identically to both channels.
type oscillator struct {
	wave      atomic.Int32
	frequency *param
	detune    *param // cents
	phase     float64
	tables    map[Waveform]*wavetableSet
	table     *wavetable
	tableWave Waveform
	tableFreq float64
}

func newOscillator(wave Waveform, freq float64) *oscillator {
	o := &oscillator{
		frequency: newParam(freq, -nyquist, nyquist),
		detune:    newParam(0, -2400, 2400),
		tables:    loadWavetables(),
	}
	o.wave.Store(int32(wave))
	return o
}

func (o *oscillator) setWaveform(w Waveform) {
	o.wave.Store(int32(w))
}

func (o *oscillator) param(name string) *param {
	switch name {
	case "frequency":
		return o.frequency
	case "detune":
		return o.detune
	}
	return nil
}

func (o *oscillator) process(b *block, _ stereo, out stereo) {
	freq := o.frequency.compute(b)
	detune := o.detune.compute(b)
	wave := Waveform(o.wave.Load())
	for i := 0; i < quantum; i++ {
		f := freq[i]
		if detune[i] != 0 {
			f *= math.Pow(2, detune[i]/1200)
		}
		v := o.step(wave, f)
		out[0][i] = v
		out[1][i] = v
	}
}

func (o *oscillator) step(wave Waveform, freq float64) float64 {
	var v float64
	if wave == WaveSine {
		v = math.Sin(2 * math.Pi * o.phase)
	} else {
		if o.table == nil || wave != o.tableWave || freq != o.tableFreq {
			o.table = o.tables[wave].forFrequency(freq)
			o.tableWave = wave
			o.tableFreq = freq
		}
		v = o.table.at(o.phase)
	}
	o.phase = positiveMod(o.phase+freq*secPerSample, 1)
	return v
}
