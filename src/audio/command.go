package audio

import (
	"context"
	"log"
	"strconv"
)

// ----- Command ----- //

// Command applies one line of the text control protocol, already split into
// words, e.g. ["set", "generator", "1", "freq", "220"].
func (e *Engine) Command(command []string) error {
	if len(command) == 0 {
		return invalid("empty command")
	}
	switch command[0] {
	case "init":
		return e.Initialize()
	case "suspend":
		return e.Suspend()
	case "resume":
		return e.Resume()
	case "close":
		return e.Close()
	case "randomize":
		return e.RandomizeAll()
	case "glitch":
		go func() {
			if err := e.Glitch(context.Background()); err != nil {
				log.Printf("glitch: %v\n", err)
			}
		}()
		return nil
	case "chaos":
		if len(command) != 3 {
			return invalid("usage: chaos <index> <on>")
		}
		index, err := parseInt(command[1])
		if err != nil {
			return err
		}
		on, err := parseBool(command[2])
		if err != nil {
			return err
		}
		return e.ApplyChaosCell(index, on)
	case "set":
		return e.set(command[1:])
	}
	return invalid("unknown command %q", command[0])
}

func (e *Engine) set(command []string) error {
	if len(command) == 0 {
		return invalid("usage: set <entity> ...")
	}
	switch command[0] {
	case "generator":
		if len(command) != 4 {
			return invalid("usage: set generator <id> <key> <value>")
		}
		id, err := parseInt(command[1])
		if err != nil {
			return err
		}
		return e.setGenerator(id, command[2], command[3])
	case "lfo":
		if len(command) != 4 {
			return invalid("usage: set lfo <id> <key> <value>")
		}
		id, err := parseInt(command[1])
		if err != nil {
			return err
		}
		return e.setModulator(id, command[2], command[3])
	case "effect":
		if len(command) != 4 {
			return invalid("usage: set effect <kind> <key> <value>")
		}
		kind, err := ParseEffectKind(command[1])
		if err != nil {
			return err
		}
		if command[2] == "enabled" {
			on, err := parseBool(command[3])
			if err != nil {
				return err
			}
			return e.SetEffectEnabled(kind, on)
		}
		value, err := parseFloat(command[3])
		if err != nil {
			return err
		}
		return e.SetEffectParam(kind, command[2], value)
	case "target":
		if len(command) != 4 {
			return invalid("usage: set target <generator> <lfo> <on>")
		}
		genID, err := parseInt(command[1])
		if err != nil {
			return err
		}
		modID, err := parseInt(command[2])
		if err != nil {
			return err
		}
		on, err := parseBool(command[3])
		if err != nil {
			return err
		}
		return e.ToggleModulationTarget(genID, modID, on)
	case "master":
		if len(command) != 3 || command[1] != "volume" {
			return invalid("usage: set master volume <value>")
		}
		value, err := parseFloat(command[2])
		if err != nil {
			return err
		}
		return e.SetMasterVolume(value)
	}
	return invalid("unknown entity %q", command[0])
}

func (e *Engine) setGenerator(id int, key string, value string) error {
	switch key {
	case "freq":
		hz, err := parseFloat(value)
		if err != nil {
			return err
		}
		return e.SetGeneratorFrequency(id, hz)
	case "wave":
		w, err := ParseWaveform(value)
		if err != nil {
			return err
		}
		return e.SetGeneratorWaveform(id, w)
	case "enabled":
		on, err := parseBool(value)
		if err != nil {
			return err
		}
		return e.SetGeneratorEnabled(id, on)
	}
	return invalid("unknown generator key %q", key)
}

func (e *Engine) setModulator(id int, key string, value string) error {
	switch key {
	case "freq":
		hz, err := parseFloat(value)
		if err != nil {
			return err
		}
		return e.SetModulatorFrequency(id, hz)
	case "depth":
		pct, err := parseFloat(value)
		if err != nil {
			return err
		}
		return e.SetModulatorDepth(id, pct)
	case "enabled":
		on, err := parseBool(value)
		if err != nil {
			return err
		}
		return e.SetModulatorEnabled(id, on)
	}
	return invalid("unknown lfo key %q", key)
}

func parseInt(s string) (int, error) {
	value, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid("%v", err)
	}
	return value, nil
}

func parseFloat(s string) (float64, error) {
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalid("%v", err)
	}
	return value, nil
}

func parseBool(s string) (bool, error) {
	value, err := strconv.ParseBool(s)
	if err != nil {
		return false, invalid("%v", err)
	}
	return value, nil
}
