package audio

import (
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// ----- Gain ----- //

type gainNode struct {
	gain *param
}

func newGainNode(gain float64) *gainNode {
	return &gainNode{gain: newParam(gain, -math.MaxFloat64, math.MaxFloat64)}
}

func (g *gainNode) param(name string) *param {
	if name == "gain" {
		return g.gain
	}
	return nil
}

func (g *gainNode) process(b *block, in stereo, out stereo) {
	gain := g.gain.compute(b)
	for ch := range out {
		vecmath.MulBlock(out[ch], in[ch], gain)
	}
}
