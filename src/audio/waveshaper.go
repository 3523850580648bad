package audio

import (
	"math"
	"sync/atomic"
)

// ----- Distortion Curve ----- //

const curveSamples = 44100

const (
	softClipLimit  = 33.0
	cubicClipLimit = 66.0
	cubicKnee      = 0.08905
	cubicCeiling   = 0.75
)

// makeDistortionCurve maps input x = i*2/n-1 to the shaped output. A disabled
// stage gets the identity curve.
func makeDistortionCurve(amount float64, enabled bool) []float64 {
	curve := make([]float64, curveSamples)
	k := amount / 100
	for i := range curve {
		x := float64(i)*2/curveSamples - 1
		switch {
		case !enabled:
			curve[i] = x
		case amount < softClipLimit:
			curve[i] = math.Tanh(x * (1 + k*10))
		case amount < cubicClipLimit:
			gain := 1 + k*15
			if x < -cubicKnee {
				curve[i] = -cubicCeiling
			} else if x > cubicKnee {
				curve[i] = cubicCeiling
			} else {
				curve[i] = gain*x - gain*x*x*x
			}
		default:
			gain := 1 + k*30
			sign := 0.0
			if x > 0 {
				sign = 1
			} else if x < 0 {
				sign = -1
			}
			curve[i] = sign * (1 - math.Exp(-math.Abs(gain*x)))
		}
	}
	return curve
}

// ----- Waveshaper ----- //

type waveshaperNode struct {
	curve atomic.Pointer[[]float64]
}

func newWaveshaperNode(curve []float64) *waveshaperNode {
	w := &waveshaperNode{}
	w.setCurve(curve)
	return w
}

// setCurve swaps the whole table; the render side picks it up at its next
// block.
func (w *waveshaperNode) setCurve(curve []float64) {
	w.curve.Store(&curve)
}

func (w *waveshaperNode) param(string) *param {
	return nil
}

func (w *waveshaperNode) process(_ *block, in stereo, out stereo) {
	curve := *w.curve.Load()
	for ch := 0; ch < channelNum; ch++ {
		for i, x := range in[ch] {
			out[ch][i] = shape(curve, x)
		}
	}
}

func shape(curve []float64, x float64) float64 {
	n := len(curve)
	pos := (x + 1) * float64(n-1) / 2
	if pos <= 0 {
		return curve[0]
	}
	if pos >= float64(n-1) {
		return curve[n-1]
	}
	index := int(pos)
	mod := pos - float64(index)
	return curve[index]*(1-mod) + curve[index+1]*mod
}
