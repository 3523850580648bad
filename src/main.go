package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/chaos-synth/src/audio"
	"golang.org/x/sync/errgroup"
)

var (
	sockFileName = flag.String("sock", "/tmp/chaos-synth.sock", "unix socket the UI connects to")
	presetDir    = flag.String("presets", "presets", "directory holding preset documents")
	presetName   = flag.String("preset", "", "preset to load at startup")
	midiPort     = flag.String("midi", "", "MIDI input port name (substring); empty disables MIDI")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := audio.NewEngine()
	if err := engine.Initialize(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Printf("error while closing engine: %v", err)
		}
	}()
	presets := newPresetStore(*presetDir)
	if *presetName != "" {
		if err := presets.apply(*presetName, engine); err != nil {
			log.Printf("failed to load preset %q: %v\n", *presetName, err)
		}
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()
	err := withIPCConnection(ctx, *sockFileName, func(conn net.Conn) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return receiveCommands(ctx, conn, engine, presets)
		})
		g.Go(func() error {
			return sendReports(ctx, conn, engine)
		})
		if *midiPort != "" {
			g.Go(func() error {
				return receiveMidi(ctx, engine, *midiPort)
			})
		}
		return g.Wait()
	})
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func withIPCConnection(ctx context.Context, path string, f func(net.Conn) error) error {
	os.Remove(path)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", path)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(path)
	}()
	log.Printf("start listening on %s...\n", path)
	conn, err := listener.Accept()
	if err != nil {
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, engine *audio.Engine, presets *presetStore) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		log.Printf("received: %s\n", string(line))
		command, err := parseCommand(string(line))
		line = []byte{}
		if err != nil {
			reportError(conn, err)
			continue
		}
		if command[0] == "preset" {
			err = presetCommand(command[1:], engine, presets)
		} else {
			err = engine.Command(command)
		}
		if err != nil {
			reportError(conn, err)
		}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(strings.TrimSpace(line), " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func presetCommand(command []string, engine *audio.Engine, presets *presetStore) error {
	if len(command) != 2 {
		return fmt.Errorf("usage: preset save|load <name>")
	}
	switch command[0] {
	case "save":
		return presets.save(command[1], engine)
	case "load":
		return presets.apply(command[1], engine)
	}
	return fmt.Errorf("unknown preset command %q", command[0])
}

func reportError(conn net.Conn, err error) {
	log.Printf("command failed: %v\n", err)
	if _, err := conn.Write([]byte("error " + url.QueryEscape(err.Error()) + "\n")); err != nil {
		log.Printf("failed to report error: %v\n", err)
	}
}

func sendReports(ctx context.Context, conn net.Conn, engine *audio.Engine) error {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			var lines []string
			if engine.Changes.Has("state") {
				engine.Changes.Delete("state")
				preset, err := engine.MarshalPreset()
				if err != nil {
					log.Printf("failed to encode state: %v\n", err)
				} else {
					lines = append(lines, "state "+url.QueryEscape(string(preset)))
				}
			}
			if result := engine.Spectrum(); result != nil {
				s := "fft"
				for _, value := range result {
					s += " " + strconv.FormatFloat(value, 'f', 6, 64)
				}
				lines = append(lines, s)
			}
			for _, s := range lines {
				if _, err := conn.Write([]byte(s + "\n")); err != nil {
					return err
				}
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}

func receiveMidi(ctx context.Context, engine *audio.Engine, port string) error {
	for m := range audio.ListenToMidiIn(ctx, port) {
		if err := engine.ApplyMidi(m); err != nil {
			log.Printf("MIDI message %+v rejected: %v\n", m, err)
		}
	}
	log.Println("receiveMidi() ended.")
	return nil
}
