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

// Package detection finds serial ports with a bridge board behind them.
package detection

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/bridge"
	"github.com/ZaparooProject/go-nfctag/transport/uart"
	"go.bug.st/serial/enumerator"
)

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only checks port descriptors without any communication
	Passive Mode = iota
	// Safe mode sends each port a single request to disable emulation
	Safe
)

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - nothing answered, but the port may be a board
	Low Confidence = iota
	// Medium confidence - a known adapter, or a board without the NFC driver
	Medium
	// High confidence - the board's NFC driver answered
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo represents a detected board
type DeviceInfo struct {
	// Additional metadata (e.g., VID:PID for USB devices)
	Metadata map[string]string
	// Connection path (e.g., "/dev/ttyACM0")
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	s := fmt.Sprintf("%s (confidence: %s)", d.Path, d.Confidence)
	if product := d.Metadata["product"]; product != "" {
		s += " " + product
	}
	if vidpid := d.Metadata["vidpid"]; vidpid != "" {
		s += " [" + vidpid + "]"
	}
	return s
}

// Options configures the detection behavior
type Options struct {
	// Open opens a port for probing. Nil opens it with transport/uart.
	Open func(path string) (bridge.Link, error)
	// USB VID:PID pairs to skip (e.g., ["1234:5678", "ABCD:EF01"])
	Blocklist []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// Cache TTL duration
	CacheTTL time.Duration
	// How long a probed port has to answer
	ProbeTimeout time.Duration
	// Detection invasiveness level
	Mode Mode
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Mode:         Safe,
		ProbeTimeout: 500 * time.Millisecond,
		Blocklist:    DefaultBlocklist(),
		EnableCache:  true,
		CacheTTL:     30 * time.Second,
	}
}

// ErrNoDevicesFound indicates no boards were detected
var ErrNoDevicesFound = errors.New("no bridge boards found")

// serialPort represents a serial port with metadata
type serialPort struct {
	Path         string
	Name         string
	VIDPID       string
	Product      string
	SerialNumber string
}

// listPorts enumerates serial ports with their USB descriptors
func listPorts() ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]serialPort, 0, len(details))
	for _, d := range details {
		port := serialPort{
			Path:         d.Name,
			Name:         filepath.Base(d.Name),
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB {
			port.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// Detect searches the serial ports for bridge boards
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	if opts.EnableCache {
		if cached, found := getCached(opts.CacheTTL); found {
			// Cached results bypass the filters applied on detection.
			if devices := filterDevices(cached, opts); len(devices) > 0 {
				return devices, nil
			}
			return nil, ErrNoDevicesFound
		}
	}

	ports, err := listPorts()
	if err != nil {
		return nil, err
	}
	devices := detectPorts(ctx, ports, opts)

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(devices)
		} else {
			// A stale entry would point at boards that are gone.
			clearCache()
		}
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

func detectPorts(ctx context.Context, ports []serialPort, opts *Options) []DeviceInfo {
	var devices []DeviceInfo
	for i := range ports {
		if ctx.Err() != nil {
			break
		}

		port := &ports[i]
		if port.VIDPID != "" && IsBlocked(port.VIDPID, opts.Blocklist) {
			continue
		}
		if IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}
		if device, ok := detectPort(port, opts); ok {
			devices = append(devices, device)
		}
	}
	return devices
}

// detectPort rates one port. Ports that neither look like a board nor
// answer a probe are left out.
func detectPort(port *serialPort, opts *Options) (DeviceInfo, bool) {
	likely := isLikelyBoard(port)
	device := newDeviceInfo(port)
	if likely {
		device.Confidence = Medium
	}
	if opts.Mode == Passive {
		return device, likely
	}

	open := opts.Open
	if open == nil {
		open = openUART
	}
	link, err := open(port.Path)
	if err != nil {
		nfctag.Debugf("detection: open %s: %v", port.Path, err)
		return device, likely
	}

	switch ProbeLink(link, opts.ProbeTimeout) {
	case High:
		device.Confidence = High
		return device, true
	case Medium:
		device.Confidence = Medium
		device.Metadata["driver"] = "missing"
		return device, true
	case Low:
	}
	return device, likely
}

func openUART(path string) (bridge.Link, error) {
	return uart.New(path)
}

func newDeviceInfo(port *serialPort) DeviceInfo {
	device := DeviceInfo{
		Path:     port.Path,
		Name:     port.Name,
		Metadata: make(map[string]string),
	}
	if port.VIDPID != "" {
		device.Metadata["vidpid"] = port.VIDPID
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

// ProbeLink asks the board behind link to disable emulation, which is
// harmless whatever state the driver is in, and rates the answer. A single
// attempt is made. link is closed on return.
func ProbeLink(link bridge.Link, timeout time.Duration) Confidence {
	client := bridge.NewClient(link, bridge.WithReturnTimeout(timeout))
	defer func() { _ = client.Close() }()

	rc := client.Command(nfctag.DriverNum, nfctag.CommandEmulate, 0, 0)
	nfctag.Debugf("detection: probe %s -> %s", link.Name(), rc)
	switch {
	case rc.IsSuccess():
		return High
	case rc == nfctag.ReturnFail, rc == nfctag.ReturnNoAck:
		return Low
	default:
		// The proxy answered on behalf of a driver it does not have.
		return Medium
	}
}
