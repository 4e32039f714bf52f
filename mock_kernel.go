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
	"errors"

	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// ErrNothingPending is returned by MockKernel.Yield when no upcall is queued
// and no idle hook produced one. A real scheduler would block forever.
var ErrNothingPending = errors.New("mock kernel: yield with no pending upcall")

// CallKind identifies the syscall recorded by MockKernel
type CallKind string

const (
	CallCommand   CallKind = "command"
	CallAllow     CallKind = "allow"
	CallSubscribe CallKind = "subscribe"
)

// Call is one syscall observed by MockKernel
type Call struct {
	Kind   CallKind
	Driver int
	Num    int
	Arg0   int
	Arg1   int
	BufLen int
}

type upcall struct {
	sub  SubscribeNum
	args [3]int
}

// MockKernel is a Kernel and Scheduler for tests. Transmit and receive
// commands answered with ReturnSuccess queue their completion upcall, which
// is delivered by the next Yield. Return codes can be injected per syscall.
type MockKernel struct {
	commandCodes   map[CommandNum]ReturnCode
	allowCodes     map[AllowNum]ReturnCode
	subscribeCodes map[SubscribeNum]ReturnCode
	callbacks      map[SubscribeNum]Callback
	buffers        map[AllowNum][]byte
	onIdle         func(*MockKernel)
	receiveData    []byte
	calls          []Call
	pending        []upcall
	yields         int
	mu             syncutil.Mutex
}

// NewMockKernel creates a mock kernel that accepts every syscall
func NewMockKernel() *MockKernel {
	return &MockKernel{
		commandCodes:   make(map[CommandNum]ReturnCode),
		allowCodes:     make(map[AllowNum]ReturnCode),
		subscribeCodes: make(map[SubscribeNum]ReturnCode),
		callbacks:      make(map[SubscribeNum]Callback),
		buffers:        make(map[AllowNum][]byte),
	}
}

// Command implements Kernel
func (m *MockKernel) Command(driver int, cmd CommandNum, arg0, arg1 int) ReturnCode {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Kind: CallCommand, Driver: driver, Num: int(cmd), Arg0: arg0, Arg1: arg1})
	rc := m.commandCodes[cmd]
	if rc != ReturnSuccess {
		return rc
	}

	switch cmd {
	case CommandReceive:
		n := copy(m.buffers[AllowReceive], m.receiveData)
		m.pending = append(m.pending, upcall{sub: SubscribeReceive, args: [3]int{n, 0, 0}})
	case CommandTransmit:
		m.pending = append(m.pending, upcall{sub: SubscribeTransmit, args: [3]int{arg0, 0, 0}})
	case CommandEmulate, CommandConfigure, CommandFrameDelayMax:
	}
	return rc
}

// Allow implements Kernel
func (m *MockKernel) Allow(driver int, allow AllowNum, buf []byte) ReturnCode {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Kind: CallAllow, Driver: driver, Num: int(allow), BufLen: len(buf)})
	rc := m.allowCodes[allow]
	if rc.IsSuccess() {
		m.buffers[allow] = buf
	}
	return rc
}

// Subscribe implements Kernel
func (m *MockKernel) Subscribe(driver int, sub SubscribeNum, cb Callback) ReturnCode {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Kind: CallSubscribe, Driver: driver, Num: int(sub)})
	rc := m.subscribeCodes[sub]
	if rc.IsSuccess() {
		m.callbacks[sub] = cb
	}
	return rc
}

// Yield implements Scheduler. It delivers the oldest pending upcall whose
// event has a registered callback.
func (m *MockKernel) Yield() error {
	m.mu.Lock()
	m.yields++
	if len(m.pending) == 0 && m.onIdle != nil {
		hook := m.onIdle
		m.mu.Unlock()
		hook(m)
		m.mu.Lock()
	}

	for i, up := range m.pending {
		cb, ok := m.callbacks[up.sub]
		if !ok {
			continue
		}
		m.pending = append(m.pending[:i], m.pending[i+1:]...)
		delete(m.callbacks, up.sub)
		m.mu.Unlock()
		cb(up.args[0], up.args[1], up.args[2])
		return nil
	}
	m.mu.Unlock()
	return ErrNothingPending
}

// Test helper methods

// SetCommandResult makes every later cmd return rc. A positive rc accepts
// the command without queueing its completion; use Trigger to complete it.
func (m *MockKernel) SetCommandResult(cmd CommandNum, rc ReturnCode) {
	m.mu.Lock()
	m.commandCodes[cmd] = rc
	m.mu.Unlock()
}

// SetAllowResult makes every later share on allow return rc
func (m *MockKernel) SetAllowResult(allow AllowNum, rc ReturnCode) {
	m.mu.Lock()
	m.allowCodes[allow] = rc
	m.mu.Unlock()
}

// SetSubscribeResult makes every later subscription to sub return rc
func (m *MockKernel) SetSubscribeResult(sub SubscribeNum, rc ReturnCode) {
	m.mu.Lock()
	m.subscribeCodes[sub] = rc
	m.mu.Unlock()
}

// SetReceiveData sets the frame written into the receive buffer by each
// accepted receive command
func (m *MockKernel) SetReceiveData(data []byte) {
	m.mu.Lock()
	m.receiveData = append([]byte(nil), data...)
	m.mu.Unlock()
}

// SetOnIdle installs a hook run by Yield when nothing is pending
func (m *MockKernel) SetOnIdle(hook func(*MockKernel)) {
	m.mu.Lock()
	m.onIdle = hook
	m.mu.Unlock()
}

// Trigger queues an upcall for sub, as if the driver raised the event
func (m *MockKernel) Trigger(sub SubscribeNum, arg1, arg2, arg3 int) {
	m.mu.Lock()
	m.pending = append(m.pending, upcall{sub: sub, args: [3]int{arg1, arg2, arg3}})
	m.mu.Unlock()
}

// Calls returns a copy of the recorded syscalls in order
func (m *MockKernel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many syscalls of kind were made
func (m *MockKernel) CallCount(kind CallKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Kind == kind {
			count++
		}
	}
	return count
}

// YieldCount returns how many times Yield was called
func (m *MockKernel) YieldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.yields
}

// Reset clears the call log and the yield counter
func (m *MockKernel) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.yields = 0
	m.mu.Unlock()
}
