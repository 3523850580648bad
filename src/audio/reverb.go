package audio

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-dsp/dsp/conv"
)

// ----- Impulse Response ----- //

const reverbDuration = 3.0 // sec

var earlyReflections = []float64{0.03, 0.05, 0.07, 0.09}

// makeReverbImpulse synthesizes a stereo room response: a 100 ms ramp-in,
// a quadratic decay to zero at duration, a few discrete early reflections
// and two noise channels cross-mixed 80/20.
func makeReverbImpulse(rnd *rand.Rand, duration float64) [channelNum][]float64 {
	length := int(sampleRate * duration)
	var ir [channelNum][]float64
	for ch := range ir {
		ir[ch] = make([]float64, length)
	}
	for i := 0; i < length; i++ {
		t := float64(i) / sampleRate
		var decay float64
		if t < 0.1 {
			decay = t / 0.1
		} else {
			decay = math.Pow(1-((t-0.1)/(duration-0.1)), 2)
		}
		earlyReflection := 0.0
		if t < 0.1 {
			for _, at := range earlyReflections {
				if math.Abs(t-at) < 0.001 {
					earlyReflection = 0.5
				}
			}
		}
		r := rnd.Float64()*2 - 1
		rc := rnd.Float64()*2 - 1
		ir[0][i] = (r*0.8+rc*0.2)*decay + earlyReflection*decay
		ir[1][i] = (r*0.2+rc*0.8)*decay + earlyReflection*decay
	}
	return ir
}

// normalizeImpulse scales ir to the loudness the host engine's convolver
// gives a normalized kernel.
func normalizeImpulse(ir [channelNum][]float64) {
	const gainCalibration = 0.00125
	const gainCalibrationSampleRate = 44100
	const minPower = 0.000125
	power := 0.0
	length := 0
	for ch := range ir {
		for _, v := range ir[ch] {
			power += v * v
		}
		length += len(ir[ch])
	}
	if length == 0 {
		return
	}
	power = math.Sqrt(power / float64(length))
	if math.IsNaN(power) || math.IsInf(power, 0) || power < minPower {
		power = minPower
	}
	scale := 1 / power * gainCalibration * gainCalibrationSampleRate / sampleRate
	for ch := range ir {
		for i := range ir[ch] {
			ir[ch][i] *= scale
		}
	}
}

// ----- Convolver ----- //

const (
	convolverMinBlockOrder = 7 // one quantum per partition
	convolverMaxBlockOrder = 13
)

// convolverNode runs one partitioned convolution per channel. The wet
// signal comes out one quantum late.
type convolverNode struct {
	engines [channelNum]*conv.PartitionedConvolution
}

func newConvolverNode(ir [channelNum][]float64) (*convolverNode, error) {
	c := &convolverNode{}
	for ch := range ir {
		engine, err := conv.NewPartitionedConvolution(ir[ch], convolverMinBlockOrder, convolverMaxBlockOrder)
		if err != nil {
			return nil, fmt.Errorf("convolver channel %d: %w", ch, err)
		}
		c.engines[ch] = engine
	}
	return c, nil
}

func (c *convolverNode) param(string) *param {
	return nil
}

func (c *convolverNode) reset() {
	for _, engine := range c.engines {
		engine.Reset()
	}
}

func (c *convolverNode) process(_ *block, in stereo, out stereo) {
	for ch, engine := range c.engines {
		if err := engine.ProcessBlock(in[ch], out[ch]); err != nil {
			log.Printf("convolver: %v\n", err)
			clear(out[ch])
		}
	}
}
