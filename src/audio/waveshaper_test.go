package audio

import (
	"math"
	"testing"
)

func curveInput(i int) float64 {
	return float64(i)*2/curveSamples - 1
}

func TestSoftDistortionCurve(t *testing.T) {
	curve := makeDistortionCurve(10, true)
	expectEqual(t, len(curve), curveSamples)
	zero := curveSamples / 2
	expectEqual(t, curveInput(zero), 0.0)
	expectEqual(t, curve[zero], 0.0)
	for i := zero - 100; i < zero+100; i++ {
		if curve[i+1] <= curve[i] {
			t.Errorf("curve not increasing at %v", curveInput(i))
		}
	}
}

func TestCubicDistortionCurve(t *testing.T) {
	curve := makeDistortionCurve(50, true)
	for i, v := range curve {
		x := curveInput(i)
		switch {
		case x > cubicKnee:
			expectEqual(t, v, 0.75)
		case x < -cubicKnee:
			expectEqual(t, v, -0.75)
		}
	}
}

func TestHardDistortionCurve(t *testing.T) {
	curve := makeDistortionCurve(90, true)
	for i, v := range curve {
		x := curveInput(i)
		if x == 0 {
			continue
		}
		if math.Signbit(x) != math.Signbit(v) || v == 0 {
			t.Errorf("sign mismatch at %v: %v", x, v)
		}
		if math.Abs(v) >= 1 {
			t.Errorf("curve out of range at %v: %v", x, v)
		}
	}
}

func TestDistortionThresholds(t *testing.T) {
	// only the cubic branch flattens out at the ceiling
	if v := shape(makeDistortionCurve(32.9, true), 0.5); math.Abs(v-cubicCeiling) < 0.01 {
		t.Errorf("amount 32.9 must use the soft branch, got %v", v)
	}
	expectNearlyEqual(t, shape(makeDistortionCurve(33, true), 0.5), cubicCeiling)
	expectNearlyEqual(t, shape(makeDistortionCurve(65.9, true), 0.5), cubicCeiling)
	if v := shape(makeDistortionCurve(66, true), 0.5); math.Abs(v-cubicCeiling) < 0.01 {
		t.Errorf("amount 66 must use the hard branch, got %v", v)
	}
}

func TestDisabledDistortionIsIdentity(t *testing.T) {
	for _, amount := range []float64{0, 20, 50, 100} {
		curve := makeDistortionCurve(amount, false)
		for _, x := range []float64{-1, -0.5, 0, 0.5, 1} {
			expectNearlyEqual(t, shape(curve, x), x)
		}
	}
}

func TestShapeClampsInput(t *testing.T) {
	curve := makeDistortionCurve(50, true)
	expectEqual(t, shape(curve, 2), curve[len(curve)-1])
	expectEqual(t, shape(curve, -3), curve[0])
}

func TestWaveshaperNode(t *testing.T) {
	w := newWaveshaperNode(makeDistortionCurve(50, true))
	in := newStereo()
	out := newStereo()
	for i := range in[0] {
		in[0][i] = 0.9
		in[1][i] = -0.9
	}
	w.process(&block{}, in, out)
	expectNearlyEqual(t, out[0][0], 0.75)
	expectNearlyEqual(t, out[1][quantum-1], -0.75)

	w.setCurve(makeDistortionCurve(0, false))
	w.process(&block{}, in, out)
	expectNearlyEqual(t, out[0][0], 0.9)
}
