package audio

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPresetRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	expectNoError(t, e.SetGeneratorFrequency(2, 333))
	expectNoError(t, e.SetGeneratorWaveform(3, WaveSquare))
	expectNoError(t, e.ToggleModulationTarget(3, 2, true))
	expectNoError(t, e.SetModulatorDepth(1, 75))
	expectNoError(t, e.SetEffectEnabled(EffectDelay, false))
	expectNoError(t, e.SetEffectParam(EffectReverb, "wet", 0.6))
	expectNoError(t, e.SetMasterVolume(0.5))
	expectNoError(t, e.ApplyChaosCell(63, true))
	data, err := e.MarshalPreset()
	expectNoError(t, err)
	if !strings.Contains(string(data), `"waveform": "square"`) {
		t.Errorf("waveform should be written by name:\n%s", data)
	}

	other := newTestEngine(t)
	expectNoError(t, other.LoadPreset(data))
	expectEqual(t, other.Snapshot(), e.Snapshot())

	// the loaded patch reaches the nodes and the chain
	render(t, other, 1)
	expectEqual(t, other.nodes.oscillator(other.nodes.generators[1]).frequency.value, 333.0)
	expectEqual(t, len(outputsOf(other.nodes.graph, other.nodes.delay)), 0)
	expectEqual(t, other.Changes.Has(stateChangeSignal), true)
}

func TestPresetLoadWithoutEngine(t *testing.T) {
	src := DefaultPatch()
	src.Master.Volume = 0.1
	data, err := encodePreset(src)
	expectNoError(t, err)
	e := NewEngine(WithHeadlessOutput())
	expectNoError(t, e.LoadPreset(data))
	expectEqual(t, e.Snapshot(), src)
}

func TestMalformedPresetIsRejected(t *testing.T) {
	e := newTestEngine(t)
	expectNoError(t, e.SetMasterVolume(0.33))
	before := e.Snapshot()
	valid, err := e.MarshalPreset()
	expectNoError(t, err)

	edit := func(f func(doc map[string]interface{})) []byte {
		var doc map[string]interface{}
		expectNoError(t, json.Unmarshal(valid, &doc))
		f(doc)
		data, err := json.Marshal(doc)
		expectNoError(t, err)
		return data
	}
	cases := map[string][]byte{
		"not json":         []byte("{"),
		"empty":            []byte("{}"),
		"no generators":    edit(func(doc map[string]interface{}) { delete(doc, "generators") }),
		"no modulators":    edit(func(doc map[string]interface{}) { delete(doc, "modulators") }),
		"no effects":       edit(func(doc map[string]interface{}) { delete(doc, "effects") }),
		"no master":        edit(func(doc map[string]interface{}) { delete(doc, "master") }),
		"no chaos grid":    edit(func(doc map[string]interface{}) { delete(doc, "chaosGrid") }),
		"null master":      edit(func(doc map[string]interface{}) { doc["master"] = nil }),
		"no reverb":        edit(func(doc map[string]interface{}) { delete(doc["effects"].(map[string]interface{}), "reverb") }),
		"two generators":   edit(func(doc map[string]interface{}) { doc["generators"] = doc["generators"].([]interface{})[:2] }),
		"short chaos grid": edit(func(doc map[string]interface{}) { doc["chaosGrid"] = []bool{true} }),
		"loud master":      edit(func(doc map[string]interface{}) { doc["master"] = map[string]interface{}{"volume": 2} }),
		"unknown waveform": edit(func(doc map[string]interface{}) {
			doc["generators"].([]interface{})[0].(map[string]interface{})["waveform"] = "vowel"
		}),
		"unity feedback": edit(func(doc map[string]interface{}) {
			doc["effects"].(map[string]interface{})["delay"].(map[string]interface{})["feedback"] = 1
		}),
		"swapped ids": edit(func(doc map[string]interface{}) {
			gens := doc["generators"].([]interface{})
			gens[0], gens[1] = gens[1], gens[0]
		}),
	}
	for name, data := range cases {
		if err := e.LoadPreset(data); err == nil {
			t.Errorf("%s: expected an error", name)
		} else {
			expectError(t, err, ErrMalformedPreset)
		}
		expectEqual(t, e.Snapshot(), before)
	}
}
