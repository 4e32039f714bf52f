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

package nfctag

import (
	"context"

	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// Tag drives the NFC tag-emulation driver. Every operation either returns
// immediately with the kernel's acknowledgement or blocks in the scheduler
// until the driver's completion callback fires.
//
// The driver accepts one request per channel at a time. A Tag holds its lock
// for the whole duration of an operation so goroutines sharing it are
// serialized.
type Tag struct {
	kernel Kernel
	sched  Scheduler
	config *RetryConfig
	mu     syncutil.Mutex
}

// New creates a Tag issuing syscalls through k and waiting through s.
func New(k Kernel, s Scheduler, opts ...Option) *Tag {
	tag := &Tag{
		kernel: k,
		sched:  s,
		config: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(tag)
	}
	return tag
}

// EnableEmulation turns tag emulation on.
func (t *Tag) EnableEmulation() bool {
	return t.emulate(true)
}

// DisableEmulation turns tag emulation off.
func (t *Tag) DisableEmulation() bool {
	return t.emulate(false)
}

func (t *Tag) emulate(enabled bool) bool {
	arg := 0
	if enabled {
		arg = 1
	}
	return t.command(CommandEmulate, arg)
}

// Configure sets the emulated tag type.
func (t *Tag) Configure(tagType TagType) bool {
	return t.command(CommandConfigure, int(tagType))
}

// SetFrameDelayMax sets the maximum frame delay the driver negotiates with
// the reader. delay fills the driver's 32-bit register as is; the syscall
// argument carries its bit pattern, so values above MaxInt32 are negative
// there on every platform.
func (t *Tag) SetFrameDelayMax(delay uint32) bool {
	return t.command(CommandFrameDelayMax, int(int32(delay))) //nolint:gosec // register bits, not a count
}

func (t *Tag) command(cmd CommandNum, arg int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rc := t.kernel.Command(DriverNum, cmd, arg, 0)
	Debugf("nfctag: command %s(%d) -> %s", cmd, arg, rc)
	return rc.IsSuccess()
}

// Selected blocks until a reader selects the emulated tag. It returns false
// without blocking if the driver refuses the subscription.
func (t *Tag) Selected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	selected := false
	rc := t.kernel.Subscribe(DriverNum, SubscribeSelect, func(int, int, int) {
		selected = true
	})
	if !rc.IsSuccess() {
		Debugf("nfctag: subscribe select -> %s", rc)
		return false
	}

	if err := YieldFor(t.sched, func() bool { return selected }); err != nil {
		Debugf("nfctag: waiting for select: %v", err)
		return false
	}
	Debugln("nfctag: selected")
	return true
}

// Receive waits for the next frame from the reader and leaves it in buf.
// buf must not be touched until Receive returns.
func (t *Tag) Receive(buf *[ReceiveBufferSize]byte) Status {
	_, status := t.ReceiveN(buf)
	return status
}

// ReceiveN is Receive that also returns the frame length reported by the
// driver.
func (t *Tag) ReceiveN(buf *[ReceiveBufferSize]byte) (int, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.receive(buf)
}

func (t *Tag) receive(buf *[ReceiveBufferSize]byte) (int, Status) {
	if rc := t.kernel.Allow(DriverNum, AllowReceive, buf[:]); !rc.IsSuccess() {
		Debugf("nfctag: allow receive -> %s", rc)
		return 0, StatusInvalidBuffer
	}

	done := false
	length := 0
	rc := t.kernel.Subscribe(DriverNum, SubscribeReceive, func(n, _, _ int) {
		length = n
		done = true
	})
	if !rc.IsSuccess() {
		Debugf("nfctag: subscribe receive -> %s", rc)
		return 0, StatusError
	}

	// Unlike transmit, only an exact success starts a receive.
	rc = t.kernel.Command(DriverNum, CommandReceive, 0, 0)
	switch rc {
	case ReturnSuccess:
	case ReturnNoMem:
		Debugln("nfctag: receive rejected, driver out of memory")
		return 0, StatusOutOfMemory
	default:
		Debugf("nfctag: command receive -> %s", rc)
		return 0, StatusError
	}

	if err := YieldFor(t.sched, func() bool { return done }); err != nil {
		Debugf("nfctag: waiting for receive: %v", err)
		return 0, StatusError
	}

	length = max(0, min(length, ReceiveBufferSize))
	Debugf("nfctag: received %d bytes", length)
	return length, StatusSuccess
}

// ReceiveWithRetry calls ReceiveN again while the driver reports it is out of
// memory, backing off as configured by the Tag's RetryConfig. ctx is checked
// before each attempt, so an already cancelled ctx issues no syscalls and
// returns StatusError. A receive the driver accepted is always waited for.
func (t *Tag) ReceiveWithRetry(ctx context.Context, buf *[ReceiveBufferSize]byte) (int, Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	length, status := 0, StatusError
	_ = RetryWithConfig(ctx, t.config, func() error {
		length, status = t.receive(buf)
		return status.Err()
	})
	return length, status
}

// Transmit sends the first amount bytes of buf to the reader. amount must
// not exceed len(buf). buf must not be touched until Transmit returns.
func (t *Tag) Transmit(buf []byte, amount int) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rc := t.kernel.Allow(DriverNum, AllowTransmit, buf); !rc.IsSuccess() {
		Debugf("nfctag: allow transmit -> %s", rc)
		return StatusInvalidBuffer
	}

	done := false
	rc := t.kernel.Subscribe(DriverNum, SubscribeTransmit, func(int, int, int) {
		done = true
	})
	if !rc.IsSuccess() {
		Debugf("nfctag: subscribe transmit -> %s", rc)
		return StatusError
	}

	// The transmit channel has no out-of-memory case of its own.
	if rc = t.kernel.Command(DriverNum, CommandTransmit, amount, 0); !rc.IsSuccess() {
		Debugf("nfctag: command transmit(%d) -> %s", amount, rc)
		return StatusError
	}

	if err := YieldFor(t.sched, func() bool { return done }); err != nil {
		Debugf("nfctag: waiting for transmit: %v", err)
		return StatusError
	}

	Debugf("nfctag: transmitted %d bytes", amount)
	return StatusSuccess
}

// SetRetryConfig updates the retry configuration used by ReceiveWithRetry
func (t *Tag) SetRetryConfig(config *RetryConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if config == nil {
		config = DefaultRetryConfig()
	}
	t.config = config
}
