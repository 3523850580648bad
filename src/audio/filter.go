package audio

import (
	"math"
)

func makeBiquadLowpassH(fc float64, q float64) ([]float64, []float64) {
	// from RBJ's cookbook
	w0 := 2 * math.Pi * fc
	alpha := math.Sin(w0) / (2 * q)
	b0 := (1 - math.Cos(w0)) / 2
	b1 := (1 - math.Cos(w0))
	b2 := (1 - math.Cos(w0)) / 2
	a0 := 1 + alpha
	a1 := -2 * math.Cos(w0)
	a2 := 1 - alpha
	return []float64{b0 / a0, b1 / a0, b2 / a0}, []float64{a1 / a0, a2 / a0}
}

// ----- Filter ----- //

const (
	filterMinFreq = 10.0
	filterMaxFreq = 22000.0
)

// biquadFilter is a resonant low-pass. Q is the resonance peak in dB.
type biquadFilter struct {
	frequency *param
	q         *param
	b         []float64
	a         []float64
	lastFreq  float64
	lastQ     float64
	past      [channelNum][4]float64 // x1, x2, y1, y2
}

func newBiquadFilter(freq float64, q float64) *biquadFilter {
	return &biquadFilter{
		frequency: newParam(freq, filterMinFreq, filterMaxFreq),
		q:         newParam(q, 0.0001, 1000),
		lastFreq:  -1,
	}
}

func (f *biquadFilter) param(name string) *param {
	switch name {
	case "frequency":
		return f.frequency
	case "q":
		return f.q
	}
	return nil
}

func (f *biquadFilter) reset() {
	f.past = [channelNum][4]float64{}
}

func (f *biquadFilter) updateCoefficients(freq float64, q float64) {
	if freq == f.lastFreq && q == f.lastQ {
		return
	}
	f.b, f.a = makeBiquadLowpassH(freq/sampleRate, math.Pow(10, q/20))
	f.lastFreq = freq
	f.lastQ = q
}

func (f *biquadFilter) process(b *block, in stereo, out stereo) {
	freq := f.frequency.compute(b)
	q := f.q.compute(b)
	for i := 0; i < quantum; i++ {
		f.updateCoefficients(freq[i], q[i])
		for ch := 0; ch < channelNum; ch++ {
			out[ch][i] = processFilterEach(in[ch][i], f.a, f.b, &f.past[ch])
		}
	}
}

func processFilterEach(in float64, a []float64, b []float64, past *[4]float64) float64 {
	out := b[0]*in + b[1]*past[0] + b[2]*past[1] - a[0]*past[2] - a[1]*past[3]
	past[1] = past[0]
	past[0] = in
	past[3] = past[2]
	past[2] = out
	return out
}
