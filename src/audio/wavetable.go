package audio

import (
	"math"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

const wavetableSize = 2048
const wavetableMinFreq = 20.0
const wavetableBands = 11

// ----- Wavetable ----- //

type wavetable struct {
	values []float64
}

func (wt *wavetable) at(phase float64) float64 {
	pos := phase * float64(len(wt.values))
	index := int(pos)
	mod := pos - float64(index)
	index %= len(wt.values)
	nextIndex := (index + 1) % len(wt.values)
	return wt.values[index]*(1-mod) + wt.values[nextIndex]*mod
}

// makeBandLimitedTable sums the sine partials n = 1..partials with
// amplitudes given by coefficient. Each partial is placed as a conjugate
// pair so that the forward transform comes out real.
func makeBandLimitedTable(plan *algofft.Plan[complex128], partials int, coefficient func(n int) float64) *wavetable {
	if partials > wavetableSize/2-1 {
		partials = wavetableSize/2 - 1
	}
	x := make([]complex128, wavetableSize)
	for n := 1; n <= partials; n++ {
		b := coefficient(n)
		x[n] = complex(0, b/2)
		x[wavetableSize-n] = complex(0, -b/2)
	}
	y := make([]complex128, wavetableSize)
	if err := plan.Forward(y, x); err != nil {
		panic(err)
	}
	values := make([]float64, wavetableSize)
	for i := range values {
		values[i] = real(y[i])
	}
	return &wavetable{values: values}
}

// ----- Wavetable Set ----- //

// wavetableSet holds one table per octave band so that no partial of the
// played frequency exceeds nyquist.
type wavetableSet struct {
	tables []*wavetable
}

func newWavetableSet(plan *algofft.Plan[complex128], coefficient func(n int) float64) *wavetableSet {
	tables := make([]*wavetable, wavetableBands)
	for i := range tables {
		top := wavetableMinFreq * math.Pow(2, float64(i+1))
		tables[i] = makeBandLimitedTable(plan, int(nyquist/top), coefficient)
	}
	return &wavetableSet{tables: tables}
}

func (wts *wavetableSet) forFrequency(freq float64) *wavetable {
	freq = math.Abs(freq)
	band := 0
	if freq > wavetableMinFreq {
		band = int(math.Log2(freq / wavetableMinFreq))
	}
	if band >= len(wts.tables) {
		band = len(wts.tables) - 1
	}
	return wts.tables[band]
}

var (
	wavetablesOnce sync.Once
	wavetables     map[Waveform]*wavetableSet
)

func loadWavetables() map[Waveform]*wavetableSet {
	wavetablesOnce.Do(func() {
		plan, err := algofft.NewPlan64(wavetableSize)
		if err != nil {
			panic(err)
		}
		wavetables = map[Waveform]*wavetableSet{
			WaveSquare: newWavetableSet(plan, func(n int) float64 {
				if n%2 == 0 {
					return 0
				}
				return 4 / (math.Pi * float64(n))
			}),
			WaveSaw: newWavetableSet(plan, func(n int) float64 {
				return -2 / (math.Pi * float64(n))
			}),
			WaveTriangle: newWavetableSet(plan, func(n int) float64 {
				if n%2 == 0 {
					return 0
				}
				sign := 1.0
				if (n-1)/2%2 == 1 {
					sign = -1
				}
				return sign * 8 / (math.Pi * math.Pi * float64(n*n))
			}),
		}
	})
	return wavetables
}
