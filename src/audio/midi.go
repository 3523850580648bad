package audio

import (
	"context"
	"log"
	"math"
	"strings"

	"gitlab.com/gomidi/rtmididrv"
)

// ----- MIDI Message ----- //

// MidiKind ...
type MidiKind int

// MIDI message kinds the engine reacts to
const (
	MidiOther MidiKind = iota
	MidiNoteOn
	MidiNoteOff
	MidiControlChange
)

// MidiMessage is a decoded channel voice message.
type MidiMessage struct {
	Kind    MidiKind
	Channel int
	Data1   int // key or controller number
	Data2   int // velocity or controller value
}

// ParseMidiMessage decodes a raw channel voice message. A note-on with
// velocity 0 is reported as note-off.
func ParseMidiMessage(data []byte) MidiMessage {
	if len(data) < 3 {
		return MidiMessage{Kind: MidiOther}
	}
	m := MidiMessage{
		Channel: int(data[0] & 0x0f),
		Data1:   int(data[1]),
		Data2:   int(data[2]),
	}
	switch data[0] >> 4 {
	case 0x8:
		m.Kind = MidiNoteOff
	case 0x9:
		m.Kind = MidiNoteOn
		if m.Data2 == 0 {
			m.Kind = MidiNoteOff
		}
	case 0xb:
		m.Kind = MidiControlChange
	}
	return m
}

// Controller numbers mapped onto the patch.
const (
	ccModWheel       = 1
	ccVolume         = 7
	ccResonance      = 71
	ccCutoff         = 74
	ccReverbSend     = 91
	ccDelayFeedback  = 94
	midiValueMax     = 127.0
	midiFilterFactor = 1000.0
)

// ApplyMidi maps a message onto the patch: note-on retunes generator 1,
// control changes drive volume, modulator 1 depth, filter, reverb and
// delay feedback. Other messages are ignored.
func (e *Engine) ApplyMidi(m MidiMessage) error {
	v := float64(m.Data2) / midiValueMax
	switch m.Kind {
	case MidiNoteOn:
		return e.SetGeneratorFrequency(1, NoteToFrequency(m.Data1))
	case MidiControlChange:
		switch m.Data1 {
		case ccVolume:
			return e.SetMasterVolume(v)
		case ccModWheel:
			return e.SetModulatorDepth(1, v*100)
		case ccCutoff:
			return e.SetEffectParam(EffectFilter, "cutoff", filterFloor*math.Pow(midiFilterFactor, v))
		case ccResonance:
			return e.SetEffectParam(EffectFilter, "q", filterOpenQ+v*(maxFilterQ-filterOpenQ))
		case ccReverbSend:
			return e.SetEffectParam(EffectReverb, "wet", float64(m.Data2)/(midiValueMax+1))
		case ccDelayFeedback:
			return e.SetEffectParam(EffectDelay, "feedback", v*maxFeedbackGain)
		}
	}
	return nil
}

// ----- MIDI In ----- //

// ListenToMidiIn opens the first MIDI input whose name contains port (any
// input when port is empty) and streams decoded messages until ctx is
// done. Messages are dropped when the consumer falls behind.
func ListenToMidiIn(ctx context.Context, port string) <-chan MidiMessage {
	ch := make(chan MidiMessage, 1024)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)
		index := -1
		for i, in := range ins {
			if strings.Contains(in.String(), port) {
				index = i
				break
			}
		}
		if index < 0 {
			log.Printf("WARN: MIDI IN %q not found\n", port)
			return
		}
		in := ins[index]
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			select {
			case ch <- ParseMidiMessage(data):
			default:
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}
