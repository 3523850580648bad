package audio

import (
	"log"
)

// ----- Automation ----- //

type automationResult int

const (
	automationOK automationResult = iota
	automationFallback
)

func (r automationResult) String() string {
	if r == automationFallback {
		return "fallback"
	}
	return "ok"
}

type paramBatch struct {
	p      *param
	events []paramEvent
	final  float64
}

// scheduler is the control side of the parameter-update queue. It never
// blocks: when the queue is full the final value is assigned directly.
type scheduler struct {
	clock *renderer
	queue chan paramBatch
}

func newScheduler(clock *renderer, queue chan paramBatch) *scheduler {
	return &scheduler{clock: clock, queue: queue}
}

func (s *scheduler) push(b paramBatch) automationResult {
	if b.p == nil {
		return automationOK
	}
	select {
	case s.queue <- b:
		return automationOK
	default:
		log.Printf("automation %v: queue full, assigning %v directly\n", automationFallback, b.final)
		b.p.setOverride(b.final)
		return automationFallback
	}
}

// set cancels pending automation and jumps to v now.
func (s *scheduler) set(p *param, v float64) automationResult {
	now := s.clock.currentTime()
	return s.push(paramBatch{
		p: p,
		events: []paramEvent{
			{kind: eventCancel, time: now},
			{kind: eventSet, value: v, time: now},
		},
		final: v,
	})
}

// ramp cancels pending automation and moves from the current value to
// target over duration seconds.
func (s *scheduler) ramp(p *param, kind eventKind, target float64, duration float64) automationResult {
	now := s.clock.currentTime()
	return s.push(paramBatch{
		p: p,
		events: []paramEvent{
			{kind: eventCancel, time: now},
			{kind: eventAnchor, time: now},
			{kind: kind, value: target, time: now + duration},
		},
		final: target,
	})
}

// excursion jumps to from and returns to target over duration seconds.
func (s *scheduler) excursion(p *param, from float64, target float64, duration float64) automationResult {
	now := s.clock.currentTime()
	return s.push(paramBatch{
		p: p,
		events: []paramEvent{
			{kind: eventCancel, time: now},
			{kind: eventSet, value: from, time: now},
			{kind: eventExponential, value: target, time: now + duration},
		},
		final: target,
	})
}

// fadeOut ramps exponentially to floor and lands on zero shortly after.
func (s *scheduler) fadeOut(p *param, floor float64, duration float64) automationResult {
	now := s.clock.currentTime()
	return s.push(paramBatch{
		p: p,
		events: []paramEvent{
			{kind: eventCancel, time: now},
			{kind: eventAnchor, time: now},
			{kind: eventExponential, value: floor, time: now + duration},
			{kind: eventSet, value: 0, time: now + duration + gateSettle},
		},
		final: 0,
	})
}
