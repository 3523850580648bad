package audio

import (
	"encoding/json"
	"fmt"
)

// ----- Preset ----- //

// presetJSON is the interchange document. Every section is a pointer or a
// slice so that a missing section can be told apart from a zero one.
type presetJSON struct {
	Generators []GeneratorState   `json:"generators"`
	Modulators []ModulatorState   `json:"modulators"`
	Effects    *presetEffectsJSON `json:"effects"`
	Master     *MasterState       `json:"master"`
	ChaosGrid  []bool             `json:"chaosGrid"`
}

type presetEffectsJSON struct {
	Filter     *FilterState     `json:"filter"`
	Delay      *DelayState      `json:"delay"`
	Distortion *DistortionState `json:"distortion"`
	Reverb     *ReverbState     `json:"reverb"`
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPreset, fmt.Sprintf(format, args...))
}

func encodePreset(p Patch) ([]byte, error) {
	effects := p.Effects
	j := presetJSON{
		Generators: p.Generators[:],
		Modulators: p.Modulators[:],
		Effects: &presetEffectsJSON{
			Filter:     &effects.Filter,
			Delay:      &effects.Delay,
			Distortion: &effects.Distortion,
			Reverb:     &effects.Reverb,
		},
		Master:    &p.Master,
		ChaosGrid: p.ChaosGrid[:],
	}
	return json.MarshalIndent(&j, "", "  ")
}

// decodePreset parses and validates a whole document. Nothing is returned
// unless every section is present and every value is in range.
func decodePreset(data []byte) (Patch, error) {
	var j presetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Patch{}, malformed("%v", err)
	}
	switch {
	case j.Generators == nil:
		return Patch{}, malformed("missing generators")
	case j.Modulators == nil:
		return Patch{}, malformed("missing modulators")
	case j.Effects == nil:
		return Patch{}, malformed("missing effects")
	case j.Master == nil:
		return Patch{}, malformed("missing master")
	case j.ChaosGrid == nil:
		return Patch{}, malformed("missing chaosGrid")
	case j.Effects.Filter == nil || j.Effects.Delay == nil || j.Effects.Distortion == nil || j.Effects.Reverb == nil:
		return Patch{}, malformed("incomplete effects")
	}
	if len(j.Generators) != generatorCount {
		return Patch{}, malformed("expected %d generators, got %d", generatorCount, len(j.Generators))
	}
	if len(j.Modulators) != modulatorCount {
		return Patch{}, malformed("expected %d modulators, got %d", modulatorCount, len(j.Modulators))
	}
	if len(j.ChaosGrid) != chaosCells {
		return Patch{}, malformed("expected %d chaos cells, got %d", chaosCells, len(j.ChaosGrid))
	}
	var p Patch
	copy(p.Generators[:], j.Generators)
	copy(p.Modulators[:], j.Modulators)
	p.Effects = EffectsState{
		Filter:     *j.Effects.Filter,
		Delay:      *j.Effects.Delay,
		Distortion: *j.Effects.Distortion,
		Reverb:     *j.Effects.Reverb,
	}
	p.Master = *j.Master
	copy(p.ChaosGrid[:], j.ChaosGrid)
	if err := p.validate(); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrMalformedPreset, err)
	}
	return p, nil
}

// MarshalPreset serializes the current patch.
func (e *Engine) MarshalPreset() ([]byte, error) {
	return encodePreset(e.Snapshot())
}

// LoadPreset replaces the whole patch with the document's. On any error the
// current patch is kept as it is.
func (e *Engine) LoadPreset(data []byte) error {
	p, err := decodePreset(data)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = p
	e.applyAll()
	e.Changes.Add(stateChangeSignal)
	return nil
}
