package audio

import (
	"sync/atomic"
	"testing"
)

func newTestScheduler(size int) (*scheduler, *renderer) {
	queue := make(chan paramBatch, size)
	r := newRenderer(new(atomic.Pointer[topology]), queue)
	return newScheduler(r, queue), r
}

func TestLinearRamp(t *testing.T) {
	p := newParam(0, -10, 10)
	p.apply(paramEvent{kind: eventAnchor, time: 0})
	p.apply(paramEvent{kind: eventLinear, value: 1, time: 64 * secPerSample})
	values := p.compute(&block{})
	expectNearlyEqual(t, values[0], 0)
	expectNearlyEqual(t, values[32], 0.5)
	expectNearlyEqual(t, values[64], 1)
	expectEqual(t, values[65], 1.0)
	expectEqual(t, values[quantum-1], 1.0)
}

func TestExponentialRamp(t *testing.T) {
	p := newParam(1, 0, 10)
	p.apply(paramEvent{kind: eventAnchor, time: 0})
	p.apply(paramEvent{kind: eventExponential, value: 4, time: quantum * secPerSample})
	values := p.compute(&block{})
	expectNearlyEqual(t, values[quantum/2], 2)
	values = p.compute(&block{frame: quantum, time: quantum * secPerSample})
	expectEqual(t, values[0], 4.0)
}

func TestExponentialRampFromZeroSteps(t *testing.T) {
	p := newParam(0, -10, 10)
	p.apply(paramEvent{kind: eventAnchor, time: 0})
	p.apply(paramEvent{kind: eventExponential, value: 1, time: 64 * secPerSample})
	values := p.compute(&block{})
	expectEqual(t, values[10], 0.0)
	expectEqual(t, values[63], 0.0)
	expectEqual(t, values[65], 1.0)
}

func TestEventsApplyInTimeOrder(t *testing.T) {
	p := newParam(0, -10, 10)
	p.apply(paramEvent{kind: eventSet, value: 2, time: 100 * secPerSample})
	p.apply(paramEvent{kind: eventSet, value: 1, time: 50 * secPerSample})
	values := p.compute(&block{})
	expectEqual(t, values[49], 0.0)
	expectEqual(t, values[51], 1.0)
	expectEqual(t, values[99], 1.0)
	expectEqual(t, values[101], 2.0)
}

func TestCancelHoldsCurrentValue(t *testing.T) {
	p := newParam(0, -10, 10)
	p.apply(paramEvent{kind: eventAnchor, time: 0})
	p.apply(paramEvent{kind: eventLinear, value: 1, time: 2 * quantum * secPerSample})
	p.compute(&block{})
	held := p.value
	p.apply(paramEvent{kind: eventCancel, time: quantum * secPerSample})
	values := p.compute(&block{frame: quantum, time: quantum * secPerSample})
	expectNearlyEqual(t, held, 127.0/256)
	expectEqual(t, values[0], held)
	expectEqual(t, values[quantum-1], held)
}

func TestCancelFoldsUnrenderedEvents(t *testing.T) {
	p := newParam(0, -1000, 1000)
	for k := 1; k <= 100; k++ {
		now := float64(k) * 0.01
		p.apply(paramEvent{kind: eventCancel, time: now})
		p.apply(paramEvent{kind: eventAnchor, time: now})
		p.apply(paramEvent{kind: eventLinear, value: float64(k), time: now + 0.005})
		if len(p.events) > 2 {
			t.Fatalf("%d events pending after %d batches", len(p.events), k)
		}
	}
	expectEqual(t, p.value, 99.0)
	values := p.compute(&block{frame: sampleRate * 11 / 10, time: 1.1})
	expectEqual(t, values[0], 100.0)
}

func TestParamClampAndModulation(t *testing.T) {
	p := newParam(0.5, 0, 1)
	mod := make([]float64, quantum)
	for i := range mod {
		mod[i] = 0.25
	}
	p.addModulation(mod)
	p.addModulation(mod)
	values := p.compute(&block{})
	expectEqual(t, values[0], 1.0)
	expectEqual(t, p.value, 0.5)

	p.addModulation(mod)
	values = p.compute(&block{})
	expectEqual(t, values[0], 0.75)
	values = p.compute(&block{})
	expectEqual(t, values[0], 0.5)

	p.apply(paramEvent{kind: eventSet, value: 5, time: 0})
	values = p.compute(&block{})
	expectEqual(t, values[0], 1.0)
}

func TestOverrideReplacesTimeline(t *testing.T) {
	p := newParam(0, -10, 10)
	p.apply(paramEvent{kind: eventAnchor, time: 0})
	p.apply(paramEvent{kind: eventLinear, value: 1, time: 1})
	p.setOverride(3)
	values := p.compute(&block{})
	expectEqual(t, values[0], 3.0)
	expectEqual(t, len(p.events), 0)
	values = p.compute(&block{frame: quantum, time: quantum * secPerSample})
	expectEqual(t, values[quantum-1], 3.0)
}

func TestSchedulerFallback(t *testing.T) {
	s, r := newTestScheduler(1)
	p := newParam(0, -10, 10)
	expectEqual(t, s.set(p, 1), automationOK)
	expectEqual(t, s.ramp(p, eventLinear, 2, 0.1), automationFallback)
	r.drain()
	values := p.compute(&block{})
	expectEqual(t, values[0], 2.0)
	expectEqual(t, values[quantum-1], 2.0)
	expectEqual(t, automationFallback.String(), "fallback")
}

func TestSchedulerSupersedes(t *testing.T) {
	s, r := newTestScheduler(8)
	p := newParam(0, -10, 10)
	s.ramp(p, eventLinear, 5, 1)
	s.ramp(p, eventLinear, 1, 64*secPerSample)
	r.drain()
	values := p.compute(&block{})
	expectNearlyEqual(t, values[32], 0.5)
	expectEqual(t, values[quantum-1], 1.0)
}

func TestSchedulerFadeOut(t *testing.T) {
	s, r := newTestScheduler(8)
	p := newParam(0.33, -10, 10)
	s.fadeOut(p, 0.001, 64*secPerSample)
	r.drain()
	values := p.compute(&block{})
	if values[32] >= 0.33 || values[32] <= 0.001 {
		t.Errorf("unexpected value mid fade: %v", values[32])
	}
	expectNearlyEqual(t, values[64], 0.001)
	values = p.compute(&block{frame: quantum, time: quantum * secPerSample})
	expectEqual(t, values[0], 0.0)
}

func TestSchedulerExcursion(t *testing.T) {
	s, r := newTestScheduler(8)
	p := newParam(100, 10, 22000)
	s.excursion(p, 400, 100, 64*secPerSample)
	r.drain()
	values := p.compute(&block{})
	expectEqual(t, values[0], 400.0)
	expectNearlyEqual(t, values[32], 200)
	expectEqual(t, values[65], 100.0)
}
