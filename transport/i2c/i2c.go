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

// Package i2c provides a bridge.Link over an I2C bus, with the board acting
// as an I2C target.
package i2c

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/bridge"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddr is the 7-bit target address of the syscall proxy.
	DefaultAddr = 0x42

	// Every read transaction returns a status byte, a count byte and up to
	// chunkData bytes of frame data.
	chunkSize = 32
	chunkData = chunkSize - 2

	statusReady = 0x01

	maxClockFreq = 400 * physic.KiloHertz
)

// Link talks to the board through write and read transactions on one
// address. Reads poll: a chunk whose status byte is not ready counts as a
// read timeout.
type Link struct {
	dev          *i2c.Dev
	bus          i2c.BusCloser
	busName      string
	pollInterval time.Duration
	closed       bool
}

// parseI2CPath splits "/dev/i2c-1:0x42" into bus and address. The address
// defaults to DefaultAddr.
func parseI2CPath(path string) (string, uint16, error) {
	bus, addrStr, found := strings.Cut(path, ":")
	if !found || addrStr == "" {
		return bus, DefaultAddr, nil
	}
	addr, err := strconv.ParseUint(addrStr, 0, 7)
	if err != nil {
		return "", 0, fmt.Errorf("invalid I2C address %q: %w", addrStr, err)
	}
	return bus, uint16(addr), nil
}

// New opens the bus named by path, optionally suffixed with ":addr".
func New(path string) (*Link, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	busName, addr, err := parseI2CPath(path)
	if err != nil {
		return nil, err
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	return newWithBus(bus, addr, path), nil
}

func newWithBus(bus i2c.BusCloser, addr uint16, name string) *Link {
	return &Link{
		dev:          &i2c.Dev{Addr: addr, Bus: bus},
		bus:          bus,
		busName:      name,
		pollInterval: nfctag.LinkPollInterval,
	}
}

// Write implements bridge.Link. Frames larger than the bus transfer limit
// are split into several writes.
func (l *Link) Write(p []byte) (int, error) {
	if l.closed {
		return 0, nfctag.NewLinkClosedError("write", l.busName)
	}
	written := 0
	for written < len(p) {
		end := min(written+chunkSize, len(p))
		if err := l.dev.Tx(p[written:end], nil); err != nil {
			return written, l.txError("write", err)
		}
		written = end
	}
	return written, nil
}

// Read implements bridge.Link.
func (l *Link) Read(p []byte) (int, error) {
	if l.closed {
		return 0, nfctag.NewLinkClosedError("read", l.busName)
	}

	var chunk [chunkSize]byte
	if err := l.dev.Tx(nil, chunk[:]); err != nil {
		return 0, l.txError("read", err)
	}

	if chunk[0] != statusReady {
		time.Sleep(l.pollInterval)
		return 0, nil
	}

	count := int(chunk[1])
	if count > chunkData {
		return 0, nfctag.NewFrameCorruptedError("read", l.busName)
	}
	return copy(p, chunk[2:2+count]), nil
}

// txError classifies a failed transaction. A NACK or arbitration loss is
// worth retrying; a vanished bus is not.
func (l *Link) txError(op string, err error) error {
	errType := nfctag.ErrorTypeTransient
	if nfctag.IsFatal(err) {
		errType = nfctag.ErrorTypePermanent
	}
	return nfctag.NewTransportError(op, l.busName, err, errType)
}

// Close implements bridge.Link
func (l *Link) Close() error {
	l.closed = true
	if l.bus == nil {
		return nil
	}
	if err := l.bus.Close(); err != nil {
		return fmt.Errorf("I2C close failed: %w", err)
	}
	return nil
}

// Name implements bridge.Link
func (l *Link) Name() string {
	return l.busName
}

// Type implements bridge.Link
func (*Link) Type() bridge.LinkType {
	return bridge.LinkI2C
}
