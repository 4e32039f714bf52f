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

package testing

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// ErrReaderGone is returned by VirtualDriver.Yield once the reader script is
// exhausted and nothing else can ever fire.
var ErrReaderGone = errors.New("virtual reader: script exhausted")

// ReaderEventKind is a step in a virtual reader script
type ReaderEventKind int

const (
	// EventSelect selects the emulated tag
	EventSelect ReaderEventKind = iota
	// EventFrame sends a frame to the tag
	EventFrame
)

// ReaderEvent is something the virtual reader does to the emulated tag
type ReaderEvent struct {
	Data []byte
	Kind ReaderEventKind
}

// Select returns a select event
func Select() ReaderEvent {
	return ReaderEvent{Kind: EventSelect}
}

// Frame returns an event delivering data to a pending receive
func Frame(data []byte) ReaderEvent {
	return ReaderEvent{Kind: EventFrame, Data: append([]byte(nil), data...)}
}

// VirtualDriver simulates the kernel's NFC tag-emulation driver together
// with a reader in the field. It implements nfctag.Kernel and
// nfctag.Scheduler. Each Yield fires at most one callback: a pending transmit
// completion first, then the next scripted reader event.
type VirtualDriver struct {
	callbacks     map[nfctag.SubscribeNum]nfctag.Callback
	buffers       map[nfctag.AllowNum][]byte
	commandCodes  map[nfctag.CommandNum]nfctag.ReturnCode
	allowCodes    map[nfctag.AllowNum]nfctag.ReturnCode
	subCodes      map[nfctag.SubscribeNum]nfctag.ReturnCode
	events        []ReaderEvent
	transmitted   [][]byte
	yields        int
	oomRemaining  int
	frameDelayMax uint32
	mu            syncutil.Mutex
	tagType       nfctag.TagType
	emulating     bool
	receiving     bool
	transmitting  bool
}

// NewVirtualDriver creates a driver whose reader will perform events in order
func NewVirtualDriver(events ...ReaderEvent) *VirtualDriver {
	return &VirtualDriver{
		callbacks:    make(map[nfctag.SubscribeNum]nfctag.Callback),
		buffers:      make(map[nfctag.AllowNum][]byte),
		commandCodes: make(map[nfctag.CommandNum]nfctag.ReturnCode),
		allowCodes:   make(map[nfctag.AllowNum]nfctag.ReturnCode),
		subCodes:     make(map[nfctag.SubscribeNum]nfctag.ReturnCode),
		events:       events,
	}
}

// Command implements nfctag.Kernel
func (v *VirtualDriver) Command(driver int, cmd nfctag.CommandNum, arg0, _ int) nfctag.ReturnCode {
	v.mu.Lock()
	defer v.mu.Unlock()

	if driver != nfctag.DriverNum {
		return nfctag.ReturnNoDevice
	}
	if rc, ok := v.commandCodes[cmd]; ok {
		return rc
	}

	switch cmd {
	case nfctag.CommandEmulate:
		v.emulating = arg0 != 0
		return nfctag.ReturnSuccess
	case nfctag.CommandConfigure:
		tagType := nfctag.TagType(arg0) //nolint:gosec // range checked below
		if arg0 < int(nfctag.TagType1) || arg0 > int(nfctag.TagType4) {
			return nfctag.ReturnInval
		}
		v.tagType = tagType
		return nfctag.ReturnSuccess
	case nfctag.CommandFrameDelayMax:
		v.frameDelayMax = uint32(arg0) //nolint:gosec // delay is a 32-bit register
		return nfctag.ReturnSuccess
	case nfctag.CommandReceive:
		return v.startReceive()
	case nfctag.CommandTransmit:
		return v.startTransmit(arg0)
	default:
		return nfctag.ReturnNoSupport
	}
}

func (v *VirtualDriver) startReceive() nfctag.ReturnCode {
	if _, ok := v.buffers[nfctag.AllowReceive]; !ok {
		return nfctag.ReturnReserve
	}
	if v.receiving {
		return nfctag.ReturnBusy
	}
	if v.oomRemaining > 0 {
		v.oomRemaining--
		return nfctag.ReturnNoMem
	}
	v.receiving = true
	return nfctag.ReturnSuccess
}

func (v *VirtualDriver) startTransmit(amount int) nfctag.ReturnCode {
	buf, ok := v.buffers[nfctag.AllowTransmit]
	if !ok {
		return nfctag.ReturnReserve
	}
	if amount < 0 || amount > len(buf) {
		return nfctag.ReturnSize
	}
	if v.transmitting {
		return nfctag.ReturnBusy
	}
	v.transmitted = append(v.transmitted, append([]byte(nil), buf[:amount]...))
	v.transmitting = true
	return nfctag.ReturnSuccess
}

// Allow implements nfctag.Kernel
func (v *VirtualDriver) Allow(driver int, allow nfctag.AllowNum, buf []byte) nfctag.ReturnCode {
	v.mu.Lock()
	defer v.mu.Unlock()

	if driver != nfctag.DriverNum {
		return nfctag.ReturnNoDevice
	}
	if allow != nfctag.AllowReceive && allow != nfctag.AllowTransmit {
		return nfctag.ReturnNoSupport
	}
	if rc, ok := v.allowCodes[allow]; ok {
		return rc
	}
	if buf == nil {
		delete(v.buffers, allow)
		return nfctag.ReturnSuccess
	}
	v.buffers[allow] = buf
	return nfctag.ReturnSuccess
}

// Subscribe implements nfctag.Kernel
func (v *VirtualDriver) Subscribe(driver int, sub nfctag.SubscribeNum, cb nfctag.Callback) nfctag.ReturnCode {
	v.mu.Lock()
	defer v.mu.Unlock()

	if driver != nfctag.DriverNum {
		return nfctag.ReturnNoDevice
	}
	switch sub {
	case nfctag.SubscribeSelect, nfctag.SubscribeReceive, nfctag.SubscribeTransmit:
	default:
		return nfctag.ReturnNoSupport
	}
	if rc, ok := v.subCodes[sub]; ok {
		return rc
	}
	v.callbacks[sub] = cb
	return nfctag.ReturnSuccess
}

// Yield implements nfctag.Scheduler
func (v *VirtualDriver) Yield() error {
	v.mu.Lock()
	v.yields++

	if v.transmitting {
		v.transmitting = false
		return v.fire(nfctag.SubscribeTransmit, 0)
	}

	for len(v.events) > 0 {
		ev := v.events[0]
		v.events = v.events[1:]

		switch ev.Kind {
		case EventSelect:
			if _, ok := v.callbacks[nfctag.SubscribeSelect]; !ok || !v.emulating {
				continue
			}
			return v.fire(nfctag.SubscribeSelect, 0)
		case EventFrame:
			if !v.receiving {
				continue
			}
			v.receiving = false
			n := copy(v.buffers[nfctag.AllowReceive], ev.Data)
			return v.fire(nfctag.SubscribeReceive, n)
		default:
			v.mu.Unlock()
			return fmt.Errorf("virtual reader: unknown event kind %d", ev.Kind)
		}
	}

	v.mu.Unlock()
	return ErrReaderGone
}

// fire invokes and removes the callback for sub. Called with v.mu held; it
// is released before the callback runs.
func (v *VirtualDriver) fire(sub nfctag.SubscribeNum, arg1 int) error {
	cb, ok := v.callbacks[sub]
	delete(v.callbacks, sub)
	v.mu.Unlock()
	if ok {
		cb(arg1, 0, 0)
	}
	return nil
}

// Test helper methods

// Push appends events to the reader script
func (v *VirtualDriver) Push(events ...ReaderEvent) {
	v.mu.Lock()
	v.events = append(v.events, events...)
	v.mu.Unlock()
}

// FailOutOfMemory makes the next n receive commands fail with ENOMEM
func (v *VirtualDriver) FailOutOfMemory(n int) {
	v.mu.Lock()
	v.oomRemaining = n
	v.mu.Unlock()
}

// SetCommandResult overrides the result of every later cmd
func (v *VirtualDriver) SetCommandResult(cmd nfctag.CommandNum, rc nfctag.ReturnCode) {
	v.mu.Lock()
	v.commandCodes[cmd] = rc
	v.mu.Unlock()
}

// SetAllowResult overrides the result of every later share on allow
func (v *VirtualDriver) SetAllowResult(allow nfctag.AllowNum, rc nfctag.ReturnCode) {
	v.mu.Lock()
	v.allowCodes[allow] = rc
	v.mu.Unlock()
}

// SetSubscribeResult overrides the result of every later subscription to sub
func (v *VirtualDriver) SetSubscribeResult(sub nfctag.SubscribeNum, rc nfctag.ReturnCode) {
	v.mu.Lock()
	v.subCodes[sub] = rc
	v.mu.Unlock()
}

// Transmitted returns copies of every frame the tag sent to the reader
func (v *VirtualDriver) Transmitted() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.transmitted))
	for i, f := range v.transmitted {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Emulating reports whether emulation is enabled
func (v *VirtualDriver) Emulating() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.emulating
}

// TagType returns the configured tag type
func (v *VirtualDriver) TagType() nfctag.TagType {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tagType
}

// FrameDelayMax returns the configured maximum frame delay
func (v *VirtualDriver) FrameDelayMax() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frameDelayMax
}

// Yields returns how many times Yield was called
func (v *VirtualDriver) Yields() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.yields
}

// Remaining returns the number of reader events not yet performed
func (v *VirtualDriver) Remaining() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.events)
}
