package audio

import (
	"io"
	"log"

	"github.com/hajimehoshi/oto"
)

// ----- Device ----- //

// device pulls rendered audio out of an io.Reader until it returns io.EOF.
type device interface {
	start(r io.Reader) error
	close() error
}

type otoDevice struct {
	context *oto.Context
	stopped chan struct{}
}

func newOtoDevice() (device, error) {
	context, err := oto.NewContext(sampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, err
	}
	return &otoDevice{
		context: context,
		stopped: make(chan struct{}),
	}, nil
}

func (d *otoDevice) start(r io.Reader) error {
	defer close(d.stopped)
	p := d.context.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("failed to close player: %v\n", err)
		}
	}()
	_, err := io.CopyBuffer(p, r, make([]byte, bufferSizeInBytes))
	return err
}

func (d *otoDevice) close() error {
	<-d.stopped
	return d.context.Close()
}

// headlessDevice never pulls. Tests drive the renderer directly.
type headlessDevice struct {
	done chan struct{}
}

func newHeadlessDevice() (device, error) {
	return &headlessDevice{done: make(chan struct{})}, nil
}

func (d *headlessDevice) start(io.Reader) error {
	<-d.done
	return nil
}

func (d *headlessDevice) close() error {
	close(d.done)
	return nil
}
