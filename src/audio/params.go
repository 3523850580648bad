package audio

import (
	"fmt"
	"strings"
)

const (
	generatorCount = 3
	modulatorCount = 2
	chaosCells     = 64
)

// ----- Effect Kind ----- //

// EffectKind names one of the four effect stages.
type EffectKind int

// Effect kinds, in chain order.
const (
	EffectFilter EffectKind = iota
	EffectDelay
	EffectDistortion
	EffectReverb
)

func (k EffectKind) String() string {
	switch k {
	case EffectFilter:
		return "filter"
	case EffectDelay:
		return "delay"
	case EffectDistortion:
		return "distortion"
	case EffectReverb:
		return "reverb"
	}
	return fmt.Sprintf("effect(%d)", int(k))
}

// ParseEffectKind ...
func ParseEffectKind(s string) (EffectKind, error) {
	switch strings.ToLower(s) {
	case "filter":
		return EffectFilter, nil
	case "delay":
		return EffectDelay, nil
	case "distortion", "waveshaper":
		return EffectDistortion, nil
	case "reverb":
		return EffectReverb, nil
	}
	return 0, fmt.Errorf("%w: unknown effect %q", ErrInvalidParameter, s)
}

// ----- State ----- //

// GeneratorState ...
type GeneratorState struct {
	ID                int      `json:"id"`
	FrequencyHz       float64  `json:"frequencyHz"`
	Waveform          Waveform `json:"waveform"`
	Enabled           bool     `json:"enabled"`
	TargetsModulator1 bool     `json:"targetsModulator1"`
	TargetsModulator2 bool     `json:"targetsModulator2"`
}

// Targets reports whether the generator is routed from modulator modID.
func (g *GeneratorState) Targets(modID int) bool {
	switch modID {
	case 1:
		return g.TargetsModulator1
	case 2:
		return g.TargetsModulator2
	}
	return false
}

func (g *GeneratorState) setTarget(modID int, on bool) {
	switch modID {
	case 1:
		g.TargetsModulator1 = on
	case 2:
		g.TargetsModulator2 = on
	}
}

// ModulatorState ...
type ModulatorState struct {
	ID           int     `json:"id"`
	FrequencyHz  float64 `json:"frequencyHz"`
	DepthPercent float64 `json:"depthPercent"`
	Enabled      bool    `json:"enabled"`
}

// FilterState ...
type FilterState struct {
	Enabled  bool    `json:"enabled"`
	CutoffHz float64 `json:"cutoffHz"`
	Q        float64 `json:"q"`
}

// DelayState ...
type DelayState struct {
	Enabled  bool    `json:"enabled"`
	TimeSec  float64 `json:"timeSec"`
	Feedback float64 `json:"feedback"`
}

// DistortionState ...
type DistortionState struct {
	Enabled bool    `json:"enabled"`
	Amount  float64 `json:"amount"`
}

// ReverbState ...
type ReverbState struct {
	Enabled bool    `json:"enabled"`
	Wet     float64 `json:"wet"`
}

// EffectsState ...
type EffectsState struct {
	Filter     FilterState     `json:"filter"`
	Delay      DelayState      `json:"delay"`
	Distortion DistortionState `json:"distortion"`
	Reverb     ReverbState     `json:"reverb"`
}

func (e *EffectsState) enabled(kind EffectKind) bool {
	switch kind {
	case EffectFilter:
		return e.Filter.Enabled
	case EffectDelay:
		return e.Delay.Enabled
	case EffectDistortion:
		return e.Distortion.Enabled
	case EffectReverb:
		return e.Reverb.Enabled
	}
	return false
}

// MasterState ...
type MasterState struct {
	Volume float64 `json:"volume"`
}

// ChaosGrid is the 8x8 chaos control surface.
type ChaosGrid [chaosCells]bool

// ActiveFraction returns the share of cells switched on.
func (g ChaosGrid) ActiveFraction() float64 {
	active := 0
	for _, on := range g {
		if on {
			active++
		}
	}
	return float64(active) / chaosCells
}

// Patch is the complete set of user-facing settings. It contains only
// values, so copying a Patch deep-copies it.
type Patch struct {
	Generators [generatorCount]GeneratorState `json:"generators"`
	Modulators [modulatorCount]ModulatorState `json:"modulators"`
	Effects    EffectsState                   `json:"effects"`
	Master     MasterState                    `json:"master"`
	ChaosGrid  ChaosGrid                      `json:"chaosGrid"`
}

// DefaultPatch returns the settings the engine starts from and returns to
// after Close.
func DefaultPatch() Patch {
	return Patch{
		Generators: [generatorCount]GeneratorState{
			{ID: 1, FrequencyHz: 110, Waveform: WaveSine, Enabled: true, TargetsModulator1: true},
			{ID: 2, FrequencyHz: 220, Waveform: WaveSine, Enabled: true},
			{ID: 3, FrequencyHz: 440, Waveform: WaveSine, Enabled: true},
		},
		Modulators: [modulatorCount]ModulatorState{
			{ID: 1, FrequencyHz: 1, DepthPercent: 50, Enabled: true},
			{ID: 2, FrequencyHz: 0.5, DepthPercent: 30, Enabled: true},
		},
		Effects: EffectsState{
			Filter:     FilterState{Enabled: true, CutoffHz: 2000, Q: 5},
			Delay:      DelayState{Enabled: true, TimeSec: 0.3, Feedback: 0.4},
			Distortion: DistortionState{Enabled: false, Amount: 20},
			Reverb:     ReverbState{Enabled: true, Wet: 0.3},
		},
		Master: MasterState{Volume: 0.7},
	}
}

// ----- Validation ----- //

const (
	maxGeneratorFreq = 20000.0
	maxModulatorFreq = 100.0
	maxFilterCutoff  = 20000.0
	maxFilterQ       = 50.0
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func validateGeneratorID(id int) error {
	if id < 1 || id > generatorCount {
		return invalid("generator id %d out of range", id)
	}
	return nil
}

func validateModulatorID(id int) error {
	if id < 1 || id > modulatorCount {
		return invalid("modulator id %d out of range", id)
	}
	return nil
}

func validateRange(name string, v float64, min float64, max float64, minInclusive bool, maxInclusive bool) error {
	lowOK := v > min || (minInclusive && v == min)
	highOK := v < max || (maxInclusive && v == max)
	if !lowOK || !highOK {
		return invalid("%s %v out of range", name, v)
	}
	return nil
}

func validateGeneratorFrequency(hz float64) error {
	return validateRange("generator frequency", hz, 0, maxGeneratorFreq, false, true)
}

func validateModulatorFrequency(hz float64) error {
	return validateRange("modulator frequency", hz, 0, maxModulatorFreq, false, true)
}

func validateDepth(pct float64) error {
	return validateRange("depth", pct, 0, 100, true, true)
}

func validateVolume(v float64) error {
	return validateRange("volume", v, 0, 1, true, true)
}

// validateEffectParam checks a single effect parameter by name.
func validateEffectParam(kind EffectKind, name string, v float64) error {
	switch kind {
	case EffectFilter:
		switch name {
		case "cutoff":
			return validateRange("filter cutoff", v, 0, maxFilterCutoff, false, true)
		case "q":
			return validateRange("filter q", v, 0, maxFilterQ, false, true)
		}
	case EffectDelay:
		switch name {
		case "time":
			return validateRange("delay time", v, 0, maxDelayTime, false, true)
		case "feedback":
			return validateRange("delay feedback", v, 0, 1, true, false)
		}
	case EffectDistortion:
		if name == "amount" {
			return validateRange("distortion amount", v, 0, 100, true, true)
		}
	case EffectReverb:
		if name == "wet" {
			return validateRange("reverb wet", v, 0, 1, true, false)
		}
	default:
		return invalid("unknown effect %v", kind)
	}
	return invalid("unknown %v parameter %q", kind, name)
}

func (e *EffectsState) setParam(kind EffectKind, name string, v float64) {
	switch kind {
	case EffectFilter:
		if name == "cutoff" {
			e.Filter.CutoffHz = v
		} else {
			e.Filter.Q = v
		}
	case EffectDelay:
		if name == "time" {
			e.Delay.TimeSec = v
		} else {
			e.Delay.Feedback = v
		}
	case EffectDistortion:
		e.Distortion.Amount = v
	case EffectReverb:
		e.Reverb.Wet = v
	}
}

func (e *EffectsState) setEnabled(kind EffectKind, on bool) {
	switch kind {
	case EffectFilter:
		e.Filter.Enabled = on
	case EffectDelay:
		e.Delay.Enabled = on
	case EffectDistortion:
		e.Distortion.Enabled = on
	case EffectReverb:
		e.Reverb.Enabled = on
	}
}

// validate checks every value of a patch, e.g. one decoded from a preset.
func (p *Patch) validate() error {
	for i, g := range p.Generators {
		if g.ID != i+1 {
			return invalid("generator at %d has id %d", i, g.ID)
		}
		if err := validateGeneratorFrequency(g.FrequencyHz); err != nil {
			return err
		}
		if !g.Waveform.valid() {
			return invalid("generator %d waveform %d", g.ID, int(g.Waveform))
		}
	}
	for i, m := range p.Modulators {
		if m.ID != i+1 {
			return invalid("modulator at %d has id %d", i, m.ID)
		}
		if err := validateModulatorFrequency(m.FrequencyHz); err != nil {
			return err
		}
		if err := validateDepth(m.DepthPercent); err != nil {
			return err
		}
	}
	checks := []struct {
		kind  EffectKind
		name  string
		value float64
	}{
		{EffectFilter, "cutoff", p.Effects.Filter.CutoffHz},
		{EffectFilter, "q", p.Effects.Filter.Q},
		{EffectDelay, "time", p.Effects.Delay.TimeSec},
		{EffectDelay, "feedback", p.Effects.Delay.Feedback},
		{EffectDistortion, "amount", p.Effects.Distortion.Amount},
		{EffectReverb, "wet", p.Effects.Reverb.Wet},
	}
	for _, c := range checks {
		if err := validateEffectParam(c.kind, c.name, c.value); err != nil {
			return err
		}
	}
	return validateVolume(p.Master.Volume)
}
