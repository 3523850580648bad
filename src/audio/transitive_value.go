package audio

import (
	"math"
	"sync/atomic"
)

// ----- Transition Kind ----- //

type eventKind int

const (
	eventSet eventKind = iota
	eventLinear
	eventExponential
	eventCancel
	eventAnchor
)

type paramEvent struct {
	kind  eventKind
	value float64
	time  float64 // sec on the render clock
}

// ----- Transitive Value ----- //

// transitiveValue is the ramp segment currently being rendered.
type transitiveValue struct {
	kind         eventKind
	startTime    float64
	endTime      float64
	initialValue float64
	targetValue  float64
}

func (tv *transitiveValue) at(t float64) float64 {
	if t >= tv.endTime {
		return tv.targetValue
	}
	pos := 0.0
	if tv.endTime > tv.startTime {
		pos = (t - tv.startTime) / (tv.endTime - tv.startTime)
	}
	if pos < 0 {
		pos = 0
	}
	switch tv.kind {
	case eventLinear:
		return tv.initialValue + (tv.targetValue-tv.initialValue)*pos
	case eventExponential:
		return tv.initialValue * math.Pow(tv.targetValue/tv.initialValue, pos)
	}
	return tv.initialValue
}

// ----- Param ----- //

// param is an automatable value owned by the render goroutine. The control
// path reaches it only through the scheduler queue or the override slot.
type param struct {
	value         float64
	min           float64
	max           float64
	events        []paramEvent
	ramp          transitiveValue
	ramping       bool
	lastEventTime float64
	modulation    []float64
	modulated     bool
	values        []float64

	override   atomic.Uint64
	overridden atomic.Bool
}

func newParam(value, min, max float64) *param {
	return &param{
		value:      value,
		min:        min,
		max:        max,
		modulation: make([]float64, quantum),
		values:     make([]float64, quantum),
	}
}

func (p *param) clamp(v float64) float64 {
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}

// setOverride replaces the whole timeline with v at the next block. It is
// the only entry point that is safe from the control path.
func (p *param) setOverride(v float64) {
	p.override.Store(math.Float64bits(v))
	p.overridden.Store(true)
}

func (p *param) apply(ev paramEvent) {
	if ev.kind == eventCancel {
		// events before the cancel are left only when the param was not
		// rendered since they were queued; fold them into the value
		if len(p.events) > 0 && p.events[0].time < ev.time {
			p.advance(ev.time)
		}
		p.events = p.events[:0]
		p.ramping = false
		return
	}
	i := len(p.events)
	for i > 0 && p.events[i-1].time > ev.time {
		i--
	}
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

func (p *param) addModulation(src []float64) {
	for i, v := range src {
		p.modulation[i] += v
	}
	p.modulated = true
}

func (p *param) advance(t float64) {
	for {
		if p.ramping {
			if t < p.ramp.endTime {
				p.value = p.ramp.at(t)
				return
			}
			p.value = p.ramp.targetValue
			p.lastEventTime = p.ramp.endTime
			p.ramping = false
		}
		if len(p.events) == 0 {
			return
		}
		ev := p.events[0]
		switch ev.kind {
		case eventSet, eventAnchor:
			if ev.time > t {
				return
			}
			if ev.kind == eventSet {
				p.value = ev.value
			}
			p.lastEventTime = ev.time
		case eventLinear, eventExponential:
			kind := ev.kind
			if kind == eventExponential && !(p.value*ev.value > 0) {
				kind = eventSet
			}
			p.ramp = transitiveValue{
				kind:         kind,
				startTime:    p.lastEventTime,
				endTime:      ev.time,
				initialValue: p.value,
				targetValue:  ev.value,
			}
			p.ramping = true
		}
		p.events = p.events[1:]
	}
}

// compute fills and returns the per-sample values for the block: the
// intrinsic timeline plus any modulation accumulated since the last call.
func (p *param) compute(b *block) []float64 {
	if p.overridden.Swap(false) {
		p.events = p.events[:0]
		p.ramping = false
		p.value = math.Float64frombits(p.override.Load())
		p.lastEventTime = b.time
	}
	if !p.ramping && len(p.events) == 0 {
		v := p.value
		for i := range p.values {
			p.values[i] = v
		}
	} else {
		for i := range p.values {
			p.advance(b.timeAt(i))
			p.values[i] = p.value
		}
	}
	if p.modulated {
		for i, m := range p.modulation {
			p.values[i] += m
			p.modulation[i] = 0
		}
		p.modulated = false
	}
	for i, v := range p.values {
		p.values[i] = p.clamp(v)
	}
	return p.values
}
