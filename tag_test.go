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
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockTag() (*Tag, *MockKernel) {
	mock := NewMockKernel()
	return New(mock, mock), mock
}

func TestTag_ConfigurationCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		call    func(*Tag) bool
		name    string
		command CommandNum
		arg     int
	}{
		{name: "enable", call: (*Tag).EnableEmulation, command: CommandEmulate, arg: 1},
		{name: "disable", call: (*Tag).DisableEmulation, command: CommandEmulate, arg: 0},
		{
			name:    "configure",
			call:    func(tag *Tag) bool { return tag.Configure(TagType4) },
			command: CommandConfigure,
			arg:     4,
		},
		{
			name:    "unknown tag type passed through",
			call:    func(tag *Tag) bool { return tag.Configure(TagType(200)) },
			command: CommandConfigure,
			arg:     200,
		},
		{
			name:    "frame delay",
			call:    func(tag *Tag) bool { return tag.SetFrameDelayMax(0x12345) },
			command: CommandFrameDelayMax,
			arg:     0x12345,
		},
		{
			name:    "frame delay above MaxInt32",
			call:    func(tag *Tag) bool { return tag.SetFrameDelayMax(math.MaxUint32) },
			command: CommandFrameDelayMax,
			arg:     -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tag, mock := newMockTag()
			assert.True(t, tt.call(tag))

			calls := mock.Calls()
			require.Len(t, calls, 1, "exactly one syscall")
			assert.Equal(t, Call{Kind: CallCommand, Driver: DriverNum, Num: int(tt.command), Arg0: tt.arg}, calls[0])
			assert.Zero(t, mock.YieldCount(), "configuration never waits")

			mock.SetCommandResult(tt.command, ReturnInval)
			assert.False(t, tt.call(tag))
		})
	}
}

func TestTag_EnableIsIdempotent(t *testing.T) {
	t.Parallel()

	tag, mock := newMockTag()
	assert.True(t, tag.EnableEmulation())
	assert.True(t, tag.EnableEmulation())
	assert.Equal(t, 2, mock.CallCount(CallCommand))
}

func TestTag_PositiveReturnIsSuccess(t *testing.T) {
	t.Parallel()

	tag, mock := newMockTag()
	mock.SetCommandResult(CommandConfigure, ReturnCode(1))
	assert.True(t, tag.Configure(TagType2))

	mock.SetCommandResult(CommandTransmit, ReturnCode(1))
	mock.Trigger(SubscribeTransmit, 0, 0, 0)
	assert.Equal(t, StatusSuccess, tag.Transmit([]byte{0x90, 0x00}, 2))
	assert.Equal(t, 1, mock.YieldCount())
}

func TestTag_Selected(t *testing.T) {
	t.Parallel()

	t.Run("fires", func(t *testing.T) {
		t.Parallel()
		tag, mock := newMockTag()
		mock.Trigger(SubscribeSelect, 0, 0, 0)

		assert.True(t, tag.Selected())
		assert.Equal(t, 1, mock.YieldCount())
		assert.Zero(t, mock.CallCount(CallAllow), "select shares no buffer")
		assert.Zero(t, mock.CallCount(CallCommand), "select issues no command")

		calls := mock.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, Call{Kind: CallSubscribe, Driver: DriverNum, Num: int(SubscribeSelect)}, calls[0])
	})

	t.Run("subscription refused", func(t *testing.T) {
		t.Parallel()
		tag, mock := newMockTag()
		mock.SetSubscribeResult(SubscribeSelect, ReturnNoSupport)
		mock.Trigger(SubscribeSelect, 0, 0, 0)

		assert.False(t, tag.Selected())
		assert.Zero(t, mock.YieldCount(), "a refused subscription never waits")
	})

	t.Run("scheduler gives up", func(t *testing.T) {
		t.Parallel()
		tag, mock := newMockTag()
		assert.False(t, tag.Selected())
		assert.Equal(t, 1, mock.YieldCount())
	})
}

func TestTag_Receive(t *testing.T) {
	t.Parallel()

	frame := []byte{0x60}
	tag, mock := newMockTag()
	mock.SetReceiveData(frame)

	var buf [ReceiveBufferSize]byte
	buf[1] = 0xEE
	n, status := tag.ReceiveN(&buf)

	require.Equal(t, StatusSuccess, status)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0x60), buf[0])
	assert.Equal(t, byte(0xEE), buf[1], "bytes past the frame are untouched")
	assert.Equal(t, 1, mock.YieldCount())

	calls := mock.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, Call{Kind: CallAllow, Driver: DriverNum, Num: int(AllowReceive), BufLen: ReceiveBufferSize}, calls[0])
	assert.Equal(t, Call{Kind: CallSubscribe, Driver: DriverNum, Num: int(SubscribeReceive)}, calls[1])
	assert.Equal(t, Call{Kind: CallCommand, Driver: DriverNum, Num: int(CommandReceive)}, calls[2])

	assert.Equal(t, StatusSuccess, tag.Receive(&buf))
}

func TestTag_ReceiveFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup      func(*MockKernel)
		name       string
		want       Status
		wantCalls  int
		wantYields int
	}{
		{
			name:      "buffer refused",
			setup:     func(m *MockKernel) { m.SetAllowResult(AllowReceive, ReturnReserve) },
			want:      StatusInvalidBuffer,
			wantCalls: 1,
		},
		{
			name:      "subscription refused",
			setup:     func(m *MockKernel) { m.SetSubscribeResult(SubscribeReceive, ReturnFail) },
			want:      StatusError,
			wantCalls: 2,
		},
		{
			name:      "out of memory",
			setup:     func(m *MockKernel) { m.SetCommandResult(CommandReceive, ReturnNoMem) },
			want:      StatusOutOfMemory,
			wantCalls: 3,
		},
		{
			name:      "busy",
			setup:     func(m *MockKernel) { m.SetCommandResult(CommandReceive, ReturnBusy) },
			want:      StatusError,
			wantCalls: 3,
		},
		{
			name: "positive return",
			setup: func(m *MockKernel) {
				m.SetCommandResult(CommandReceive, ReturnCode(1))
				m.Trigger(SubscribeReceive, 4, 0, 0)
			},
			want:      StatusError,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tag, mock := newMockTag()
			tt.setup(mock)

			var buf [ReceiveBufferSize]byte
			n, status := tag.ReceiveN(&buf)
			assert.Equal(t, tt.want, status)
			assert.Zero(t, n)
			assert.Len(t, mock.Calls(), tt.wantCalls)
			assert.Zero(t, mock.YieldCount(), "a rejected receive never waits")
		})
	}
}

// idleScheduler returns from Yield without running anything for the first
// idle calls, like a kernel woken by an unrelated driver.
type idleScheduler struct {
	kernel *MockKernel
	idle   int
	yields int
}

func (s *idleScheduler) Yield() error {
	s.yields++
	if s.idle > 0 {
		s.idle--
		return nil
	}
	return s.kernel.Yield()
}

func TestTag_WaitsForOwnCallback(t *testing.T) {
	t.Parallel()

	mock := NewMockKernel()
	sched := &idleScheduler{kernel: mock, idle: 3}
	tag := New(mock, sched)

	assert.Equal(t, StatusSuccess, tag.Transmit([]byte{0x0A, 0x00}, 2))
	assert.Equal(t, 4, sched.yields)
}

func TestTag_ReceiveLengthClamped(t *testing.T) {
	t.Parallel()

	mock := NewMockKernel()
	mock.SetOnIdle(func(m *MockKernel) {
		m.Trigger(SubscribeReceive, 1000, 0, 0)
	})
	mock.SetCommandResult(CommandReceive, ReturnCode(1))
	tag := New(mock, mock)

	var buf [ReceiveBufferSize]byte
	n, status := tag.ReceiveN(&buf)
	require.Equal(t, StatusSuccess, status)
	assert.Equal(t, ReceiveBufferSize, n)
}

func TestTag_Transmit(t *testing.T) {
	t.Parallel()

	tag, mock := newMockTag()
	payload := []byte{0xD5, 0x4B, 0x01, 0x01}

	require.Equal(t, StatusSuccess, tag.Transmit(payload, 3))
	assert.Equal(t, 1, mock.YieldCount())

	calls := mock.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, Call{Kind: CallAllow, Driver: DriverNum, Num: int(AllowTransmit), BufLen: 4}, calls[0])
	assert.Equal(t, Call{Kind: CallSubscribe, Driver: DriverNum, Num: int(SubscribeTransmit)}, calls[1])
	assert.Equal(t, Call{Kind: CallCommand, Driver: DriverNum, Num: int(CommandTransmit), Arg0: 3}, calls[2])
}

func TestTag_TransmitFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup func(*MockKernel)
		name  string
		want  Status
	}{
		{
			name:  "buffer refused",
			setup: func(m *MockKernel) { m.SetAllowResult(AllowTransmit, ReturnSize) },
			want:  StatusInvalidBuffer,
		},
		{
			name:  "subscription refused",
			setup: func(m *MockKernel) { m.SetSubscribeResult(SubscribeTransmit, ReturnFail) },
			want:  StatusError,
		},
		{
			// The transmit channel has no out-of-memory outcome.
			name:  "out of memory",
			setup: func(m *MockKernel) { m.SetCommandResult(CommandTransmit, ReturnNoMem) },
			want:  StatusError,
		},
		{
			name:  "size",
			setup: func(m *MockKernel) { m.SetCommandResult(CommandTransmit, ReturnSize) },
			want:  StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tag, mock := newMockTag()
			tt.setup(mock)

			assert.Equal(t, tt.want, tag.Transmit([]byte{0x90, 0x00}, 2))
			assert.Zero(t, mock.YieldCount())
		})
	}
}

func TestTag_SubscriptionRefusedSkipsCommand(t *testing.T) {
	t.Parallel()

	tag, mock := newMockTag()
	mock.SetSubscribeResult(SubscribeTransmit, ReturnBusy)

	assert.Equal(t, StatusError, tag.Transmit([]byte{0x01}, 1))
	assert.Zero(t, mock.CallCount(CallCommand))
}

func TestTag_ReceiveWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("gives up after out of memory", func(t *testing.T) {
		t.Parallel()
		mock := NewMockKernel()
		mock.SetCommandResult(CommandReceive, ReturnNoMem)
		tag := New(mock, mock, WithMaxRetries(3), WithRetryBackoff(time.Microsecond))

		var buf [ReceiveBufferSize]byte
		_, status := tag.ReceiveWithRetry(context.Background(), &buf)
		assert.Equal(t, StatusOutOfMemory, status)
		assert.Equal(t, 3, mock.CallCount(CallCommand))
	})

	t.Run("does not retry errors", func(t *testing.T) {
		t.Parallel()
		mock := NewMockKernel()
		mock.SetSubscribeResult(SubscribeReceive, ReturnFail)
		tag := New(mock, mock, WithMaxRetries(3), WithRetryBackoff(time.Microsecond))

		var buf [ReceiveBufferSize]byte
		_, status := tag.ReceiveWithRetry(context.Background(), &buf)
		assert.Equal(t, StatusError, status)
		assert.Equal(t, 1, mock.CallCount(CallSubscribe))
	})

	t.Run("cancelled context issues no syscalls", func(t *testing.T) {
		t.Parallel()
		tag, mock := newMockTag()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var buf [ReceiveBufferSize]byte
		_, status := tag.ReceiveWithRetry(ctx, &buf)
		assert.Equal(t, StatusError, status)
		assert.Empty(t, mock.Calls())
	})

	t.Run("accepted receive outlives cancellation", func(t *testing.T) {
		t.Parallel()
		mock := NewMockKernel()
		mock.SetReceiveData([]byte{0x60, 0x61})
		ctx, cancel := context.WithCancel(context.Background())
		tag := New(mock, &cancelScheduler{kernel: mock, cancel: cancel})

		var buf [ReceiveBufferSize]byte
		n, status := tag.ReceiveWithRetry(ctx, &buf)
		assert.Equal(t, StatusSuccess, status)
		assert.Equal(t, 2, n)
		require.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}

// cancelScheduler cancels its context on the first Yield
type cancelScheduler struct {
	kernel *MockKernel
	cancel context.CancelFunc
}

func (s *cancelScheduler) Yield() error {
	s.cancel()
	return s.kernel.Yield()
}

// gateScheduler holds every Yield until the gate opens
type gateScheduler struct {
	kernel  *MockKernel
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (s *gateScheduler) Yield() error {
	s.once.Do(func() { close(s.entered) })
	<-s.gate
	return s.kernel.Yield()
}

func TestTag_OperationsAreSerialized(t *testing.T) {
	t.Parallel()

	mock := NewMockKernel()
	sched := &gateScheduler{kernel: mock, gate: make(chan struct{}), entered: make(chan struct{})}
	tag := New(mock, sched)
	mock.Trigger(SubscribeSelect, 0, 0, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.True(t, tag.Selected())
	}()

	<-sched.entered
	go func() {
		defer wg.Done()
		assert.True(t, tag.EnableEmulation())
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, mock.CallCount(CallCommand), "a command may not interleave with a blocked operation")

	close(sched.gate)
	wg.Wait()
	assert.Equal(t, 1, mock.CallCount(CallCommand))
}
