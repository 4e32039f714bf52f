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

// Package uart provides a bridge.Link over a serial port.
package uart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/bridge"
	"go.bug.st/serial"
)

// DefaultBaudRate is the rate the board-side syscall proxy listens at.
const DefaultBaudRate = 115200

// Link is a serial connection to a board running the syscall proxy.
type Link struct {
	port     serial.Port
	portName string
}

// getReadTimeout returns the per-read timeout. Windows USB-serial drivers
// need longer.
func getReadTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 2 * nfctag.LinkReadTimeout
	}
	return nfctag.LinkReadTimeout
}

// New opens portName at DefaultBaudRate.
func New(portName string) (*Link, error) {
	return NewWithBaudRate(portName, DefaultBaudRate)
}

// NewWithBaudRate opens portName at the given rate, 8N1.
func NewWithBaudRate(portName string, baudRate int) (*Link, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(getReadTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	// Stale bytes from a previous session would desynchronize the first reply.
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to reset UART input buffer: %w", err)
	}

	return &Link{port: port, portName: portName}, nil
}

// newWithPort wraps an already open port
func newWithPort(port serial.Port, portName string) *Link {
	return &Link{port: port, portName: portName}
}

// Read implements bridge.Link. A read timeout returns (0, nil).
func (l *Link) Read(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if err == nil {
		return n, nil
	}
	if isInterruptedSystemCall(err) {
		return n, nfctag.NewLinkReadError("read", l.portName)
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return n, nfctag.NewLinkClosedError("read", l.portName)
	}
	return n, nfctag.NewTransportError("read", l.portName, err, nfctag.ErrorTypePermanent)
}

// Write implements bridge.Link. The frame is drained to the wire before
// returning.
func (l *Link) Write(p []byte) (int, error) {
	var (
		n   int
		err error
	)
	for attempt := range nfctag.LinkRetries {
		n, err = l.port.Write(p)
		if err == nil || !isInterruptedSystemCall(err) || n > 0 {
			break
		}
		time.Sleep(time.Duration(1<<attempt) * 2 * time.Millisecond)
	}
	if err != nil {
		return n, fmt.Errorf("UART write failed: %w", err)
	}
	if n != len(p) {
		return n, nfctag.NewLinkWriteError("write", l.portName)
	}
	return n, l.drainWithRetry()
}

// drainWithRetry waits for the output buffer to empty, retrying calls
// interrupted by a signal
func (l *Link) drainWithRetry() error {
	baseDelay := 2 * time.Millisecond

	for attempt := range nfctag.LinkRetries {
		err := l.port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			return fmt.Errorf("UART drain failed: %w", err)
		}
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return fmt.Errorf("UART drain failed after %d retries", nfctag.LinkRetries)
}

// Close implements bridge.Link
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Name implements bridge.Link
func (l *Link) Name() string {
	return l.portName
}

// Type implements bridge.Link
func (*Link) Type() bridge.LinkType {
	return bridge.LinkUART
}

// isInterruptedSystemCall checks if an error is caused by an interrupted
// system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	if isEINTR(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}
