// go-nfctag
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-nfctag.
//
// go-nfctag is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-nfctag is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-nfctag; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/bridge"
	"github.com/ZaparooProject/go-nfctag/detection"
	"github.com/ZaparooProject/go-nfctag/emulation"
	"github.com/ZaparooProject/go-nfctag/emulation/type4"
	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
	"github.com/ZaparooProject/go-nfctag/transport/i2c"
	"github.com/ZaparooProject/go-nfctag/transport/uart"
)

type config struct {
	devicePath  string
	busPath     string
	text        string
	uri         string
	tagType     int
	frameDelay  uint
	writable    int
	maxFailures int
	list        bool
	debug       bool
	logFile     bool
}

// Package-level flag variables
var (
	flagDevicePath  string
	flagBusPath     string
	flagText        string
	flagURI         string
	flagTagType     int
	flagFrameDelay  uint
	flagWritable    int
	flagMaxFailures int
	flagList        bool
	flagDebug       bool
	flagLog         bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Serial port of the board (e.g. /dev/ttyACM0)")
	flag.StringVar(&flagBusPath, "bus", "", "I2C bus and address of the board (e.g. /dev/i2c-1:0x42)")
	flag.StringVar(&flagText, "text", "", "Serve an NDEF text record")
	flag.StringVar(&flagURI, "uri", "", "Serve an NDEF URI record")
	flag.IntVar(&flagTagType, "tag-type", int(nfctag.TagType4), "NFC Forum tag type to emulate")
	flag.UintVar(&flagFrameDelay, "frame-delay", emulation.DefaultFrameDelayMax,
		"Maximum frame delay in carrier periods (0 keeps the driver default)")
	flag.IntVar(&flagWritable, "writable", 0, "Let readers rewrite the NDEF message, up to this many bytes")
	flag.IntVar(&flagMaxFailures, "max-failures", 3, "Consecutive failed waits for a reader before exiting (0 = never)")
	flag.BoolVar(&flagList, "list", false, "Probe serial ports for boards and exit")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagLog, "log", false, "Write a session log file in the current directory")
}

func parseConfig() *config {
	cfg := &config{
		devicePath:  flagDevicePath,
		busPath:     flagBusPath,
		text:        flagText,
		uri:         flagURI,
		tagType:     flagTagType,
		frameDelay:  flagFrameDelay,
		writable:    flagWritable,
		maxFailures: flagMaxFailures,
		list:        flagList,
		debug:       flagDebug,
		logFile:     flagLog,
	}

	// Enable debug output if --debug flag is set
	if cfg.debug {
		nfctag.SetDebugEnabled(true)
	}

	return cfg
}

func (cfg *config) validate() error {
	if cfg.devicePath != "" && cfg.busPath != "" {
		return errors.New("-device and -bus are mutually exclusive")
	}
	if cfg.text != "" && cfg.uri != "" {
		return errors.New("-text and -uri are mutually exclusive")
	}
	if cfg.tagType < 0 || cfg.tagType > 0xFF {
		return fmt.Errorf("invalid tag type: %d", cfg.tagType)
	}
	if (cfg.text != "" || cfg.uri != "") && nfctag.TagType(cfg.tagType) != nfctag.TagType4 { //nolint:gosec // range checked above
		return fmt.Errorf("NDEF emulation needs tag type 4, got %d", cfg.tagType)
	}
	if cfg.frameDelay > 0xFFFFFFFF {
		return fmt.Errorf("frame delay out of range: %d", cfg.frameDelay)
	}
	return nil
}

// sessionConfig builds the emulation settings from the flags
func (cfg *config) sessionConfig() *emulation.Config {
	sc := emulation.DefaultConfig()
	sc.TagType = nfctag.TagType(cfg.tagType)  //nolint:gosec // range checked by validate
	sc.FrameDelayMax = uint32(cfg.frameDelay) //nolint:gosec // range checked by validate
	sc.MaxSelectFailures = max(cfg.maxFailures, 0)
	return sc
}

// newHandler picks the tag's behavior: an NDEF Type 4 tag when a record was
// given, an echo responder otherwise.
func newHandler(cfg *config) (emulation.Handler, error) {
	var opts []type4.Option
	if cfg.writable > 0 {
		opts = append(opts, type4.WithWritable(cfg.writable))
	}

	switch {
	case cfg.text != "":
		h, err := type4.NewText(cfg.text, "en", opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create text tag: %w", err)
		}
		return h, nil
	case cfg.uri != "":
		h, err := type4.NewURI(cfg.uri, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create URI tag: %w", err)
		}
		return h, nil
	default:
		return emulation.Echo, nil
	}
}

// openLink opens the link selected by the flags
// linkName describes the configured board connection for logs
func (cfg *config) linkName() string {
	if cfg.busPath != "" {
		return "i2c " + cfg.busPath
	}
	return cfg.devicePath
}

func openLink(cfg *config) (bridge.Link, error) {
	switch {
	case cfg.busPath != "":
		link, err := i2c.New(cfg.busPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C link for %s: %w", cfg.busPath, err)
		}
		return link, nil
	case cfg.devicePath != "":
		link, err := uart.New(cfg.devicePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART link for %s: %w", cfg.devicePath, err)
		}
		return link, nil
	default:
		return nil, errors.New("no board given: use -device or -bus (see -list)")
	}
}

// connection owns the bridge client and replaces it when the session asks
// for a reconnect
type connection struct {
	open   func() (bridge.Link, error)
	client *bridge.Client
	mu     syncutil.Mutex
}

func (c *connection) connect() (*nfctag.Tag, error) {
	link, err := c.open()
	if err != nil {
		return nil, err
	}
	client := bridge.NewClient(link)

	c.mu.Lock()
	old := c.client
	c.client = client
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nfctag.New(client, client), nil
}

func (c *connection) close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// emulate runs a session over links from open until ctx is done or the
// session gives up
func emulate(ctx context.Context, open func() (bridge.Link, error), handler emulation.Handler,
	sc *emulation.Config,
) (emulation.Stats, error) {
	conn := &connection{open: open}
	tag, err := conn.connect()
	if err != nil {
		return emulation.Stats{}, err
	}
	defer func() {
		if err := conn.close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close link: %v\n", err)
		}
	}()

	// Closing the link is what unblocks a wait for the reader.
	stop := context.AfterFunc(ctx, func() { _ = conn.close() })
	defer stop()

	session := emulation.NewSession(tag, handler, sc)
	session.SetRecoverer(emulation.NewDefaultRecoverer(tag, sc, conn.connect))
	session.SetOnStateChange(func(s emulation.State) {
		switch s {
		case emulation.StateSelected:
			_, _ = fmt.Println("Reader selected the tag")
		case emulation.StateRecovering:
			_, _ = fmt.Println("Lost the reader, reconfiguring the driver...")
		case emulation.StateIdle, emulation.StateWaitingSelect, emulation.StateExchanging, emulation.StateStopped:
		}
	})

	err = session.Run(ctx)
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return session.Stats(), err
}

func printStats(w io.Writer, stats emulation.Stats) {
	_, _ = fmt.Fprintf(w, "Selections: %d, frames: %d, out of memory: %d, receive errors: %d, "+
		"transmit errors: %d, recoveries: %d\n",
		stats.Selections, stats.Exchanges, stats.OutOfMemory,
		stats.ReceiveErrors, stats.TransmitErrors, stats.Recoveries)
}

// printMessage shows what a reader left in a writable tag
func printMessage(w io.Writer, handler emulation.Handler) {
	h, ok := handler.(*type4.Handler)
	if !ok {
		return
	}
	msg, err := h.Message()
	if err != nil {
		_, _ = fmt.Fprintf(w, "NDEF message: %v\n", err)
		return
	}
	for i, rec := range msg.Records {
		payload, err := rec.Payload()
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "Record %d: type %q, %d byte payload\n", i, rec.Type(), len(payload.Marshal()))
	}
}

func listBoards(ctx context.Context, w io.Writer) error {
	opts := detection.DefaultOptions()
	opts.EnableCache = false
	devices, err := detection.Detect(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		_, _ = fmt.Fprintln(w, "No boards found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to detect boards: %w", err)
	}
	for _, device := range devices {
		_, _ = fmt.Fprintln(w, device)
	}
	return nil
}

func run(ctx context.Context, cfg *config) error {
	if cfg.list {
		return listBoards(ctx, os.Stdout)
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	sc := cfg.sessionConfig()
	if cfg.logFile {
		path, err := nfctag.InitSessionLog(nfctag.SessionInfo{
			Link:          cfg.linkName(),
			TagType:       sc.TagType,
			FrameDelayMax: sc.FrameDelayMax,
		})
		if err != nil {
			return err
		}
		_, _ = fmt.Printf("Logging to %s\n", path)
		defer func() {
			if err := nfctag.CloseSessionLog(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Failed to close session log: %v\n", err)
			}
		}()
	}

	handler, err := newHandler(cfg)
	if err != nil {
		return err
	}

	_, _ = fmt.Println("Emulating tag. Press Ctrl+C to stop...")
	start := time.Now()
	stats, err := emulate(ctx, func() (bridge.Link, error) { return openLink(cfg) }, handler, sc)

	_, _ = fmt.Printf("Session ran for %s\n", time.Since(start).Round(time.Millisecond))
	printStats(os.Stdout, stats)
	if cfg.writable > 0 {
		printMessage(os.Stdout, handler)
	}
	return err
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	// Parse command-line flags
	cfg := parseConfig()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			// User requested shutdown, exit cleanly
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
