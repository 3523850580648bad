package audio

import (
	"context"
	"fmt"
	"time"
)

const (
	chaosDetuneCents        = 5.0
	chaosExcursionThreshold = 0.2
	chaosExcursionHz        = 2000.0
	chaosExcursionTime      = 0.2 // sec
)

// ----- Chaos ----- //

// ApplyChaosCell toggles one cell of the chaos grid and applies a fresh
// perturbation derived from the grid density.
func (e *Engine) ApplyChaosCell(index int, on bool) error {
	if index < 0 || index >= chaosCells {
		return invalid("chaos cell %d out of range", index)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.ChaosGrid[index] = on
	e.applyChaos()
	e.Changes.Add(stateChangeSignal)
	return nil
}

// applyChaos detunes every generator by up to ±5 cents scaled by the active
// fraction and, above the threshold, kicks the filter cutoff upwards and
// lets it fall back. Only transient automation is issued.
func (e *Engine) applyChaos() {
	if e.nodes == nil {
		return
	}
	fraction := e.state.ChaosGrid.ActiveFraction()
	for _, id := range e.nodes.generators {
		detune := (e.rnd.Float64()*2 - 1) * fraction * chaosDetuneCents
		e.scheduler.set(e.nodes.oscillator(id).detune, detune)
	}
	if fraction > chaosExcursionThreshold {
		nominal, _ := filterTarget(e.state.Effects.Filter)
		jump := nominal + e.rnd.Float64()*fraction*chaosExcursionHz
		e.scheduler.excursion(e.nodes.filterNode().frequency, jump, nominal, chaosExcursionTime)
	}
}

// ----- Randomize ----- //

// RandomizeAll rolls new generator, modulator, filter and chaos settings.
func (e *Engine) RandomizeAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	waves := []Waveform{WaveSine, WaveSquare, WaveSaw, WaveTriangle}
	for i := range e.state.Generators {
		g := &e.state.Generators[i]
		g.FrequencyHz = 20 + e.rnd.Float64()*860
		g.Waveform = waves[e.rnd.Intn(len(waves))]
		g.TargetsModulator1 = e.rnd.Float64() > 0.6
		g.TargetsModulator2 = e.rnd.Float64() > 0.7
	}
	for i := range e.state.Modulators {
		m := &e.state.Modulators[i]
		m.FrequencyHz = 0.1 + e.rnd.Float64()*19.9
		m.DepthPercent = float64(10 + e.rnd.Intn(90))
	}
	e.state.Effects.Filter.CutoffHz = 100 + e.rnd.Float64()*10000
	for i := range e.state.ChaosGrid {
		e.state.ChaosGrid[i] = e.rnd.Float64() > 0.7
	}
	if e.nodes != nil {
		for i, g := range e.state.Generators {
			osc := e.nodes.oscillator(e.nodes.generators[i])
			osc.setWaveform(g.Waveform)
			e.scheduler.set(osc.frequency, g.FrequencyHz)
		}
		for i, m := range e.state.Modulators {
			e.scheduler.set(e.nodes.oscillator(e.nodes.modulators[i]).frequency, m.FrequencyHz)
		}
		e.applyFilter()
		e.modulation.rebuildModulation()
		e.applyChaos()
	}
	e.Changes.Add(stateChangeSignal)
	return nil
}

// ----- Glitch ----- //

const (
	glitchDuration = time.Second
	glitchInterval = 50 * time.Millisecond
)

// Glitch throws the filter, the generator tuning and the distortion curve
// around for a second and then puts them back. The patch is not modified.
// It blocks until the burst is over or ctx is done.
func (e *Engine) Glitch(ctx context.Context) error {
	return e.glitch(ctx, glitchDuration, glitchInterval)
}

func (e *Engine) glitch(ctx context.Context, duration time.Duration, interval time.Duration) error {
	if !e.glitchStep() {
		return fmt.Errorf("%w: glitch needs a running engine", ErrNotInitialized)
	}
	defer e.restoreAfterGlitch()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timer := time.NewTimer(duration)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			e.glitchStep()
		}
	}
}

func (e *Engine) glitchStep() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nodes == nil {
		return false
	}
	e.scheduler.set(e.nodes.filterNode().frequency, 200+e.rnd.Float64()*5000)
	for _, id := range e.nodes.generators {
		e.scheduler.set(e.nodes.oscillator(id).detune, e.rnd.Float64()*200-100)
	}
	e.nodes.waveshaper().setCurve(makeDistortionCurve(e.rnd.Float64()*100, e.state.Effects.Distortion.Enabled))
	return true
}

func (e *Engine) restoreAfterGlitch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nodes == nil {
		return
	}
	e.applyFilter()
	for _, id := range e.nodes.generators {
		e.scheduler.set(e.nodes.oscillator(id).detune, 0)
	}
	e.applyDistortion()
}
