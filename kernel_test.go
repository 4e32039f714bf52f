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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Err(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want      error
		name      string
		str       string
		status    Status
		retryable bool
	}{
		{name: "success", status: StatusSuccess, want: nil, str: "success"},
		{name: "error", status: StatusError, want: ErrOperationFailed, str: "error"},
		{name: "invalid buffer", status: StatusInvalidBuffer, want: ErrInvalidBuffer, str: "invalid buffer"},
		{name: "out of memory", status: StatusOutOfMemory, want: ErrOutOfMemory, str: "out of memory", retryable: true},
		{name: "unknown", status: Status(42), want: ErrOperationFailed, str: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.status.Err()
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, tt.str, tt.status.String())
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestConstants_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "receive", CommandReceive.String())
	assert.Equal(t, "framedelaymax", CommandFrameDelayMax.String())
	assert.Equal(t, "command(9)", CommandNum(9).String())
	assert.Equal(t, "select", SubscribeSelect.String())
	assert.Equal(t, "subscribe(0)", SubscribeNum(0).String())
	assert.Equal(t, "transmit", AllowTransmit.String())
	assert.Equal(t, "allow(3)", AllowNum(3).String())
}

func TestYieldFor(t *testing.T) {
	t.Parallel()

	t.Run("condition already true", func(t *testing.T) {
		t.Parallel()
		mock := NewMockKernel()
		require.NoError(t, YieldFor(mock, func() bool { return true }))
		assert.Zero(t, mock.YieldCount())
	})

	t.Run("yields until true", func(t *testing.T) {
		t.Parallel()
		sched := &idleScheduler{kernel: NewMockKernel(), idle: 10}
		remaining := 3
		require.NoError(t, YieldFor(sched, func() bool {
			remaining--
			return remaining < 0
		}))
		assert.Equal(t, 3, sched.yields)
	})

	t.Run("scheduler error stops the wait", func(t *testing.T) {
		t.Parallel()
		mock := NewMockKernel()
		err := YieldFor(mock, func() bool { return false })
		require.ErrorIs(t, err, ErrNothingPending)
		assert.Equal(t, 1, mock.YieldCount())
	})
}

func TestMockKernel_CallbacksAreOneShot(t *testing.T) {
	t.Parallel()

	mock := NewMockKernel()
	fired := 0
	require.Equal(t, ReturnSuccess, mock.Subscribe(DriverNum, SubscribeSelect, func(int, int, int) { fired++ }))

	mock.Trigger(SubscribeSelect, 0, 0, 0)
	mock.Trigger(SubscribeSelect, 0, 0, 0)

	require.NoError(t, mock.Yield())
	require.ErrorIs(t, mock.Yield(), ErrNothingPending)
	assert.Equal(t, 1, fired)
}

func TestMockKernel_OnIdle(t *testing.T) {
	t.Parallel()

	mock := NewMockKernel()
	var args [3]int
	mock.Subscribe(DriverNum, SubscribeReceive, func(a1, a2, a3 int) { args = [3]int{a1, a2, a3} })
	mock.SetOnIdle(func(m *MockKernel) { m.Trigger(SubscribeReceive, 4, 5, 6) })

	require.NoError(t, mock.Yield())
	assert.Equal(t, [3]int{4, 5, 6}, args)
}

func TestMockKernel_Reset(t *testing.T) {
	t.Parallel()

	mock := NewMockKernel()
	mock.Command(DriverNum, CommandEmulate, 1, 0)
	_ = mock.Yield()
	mock.Reset()

	assert.Empty(t, mock.Calls())
	assert.Zero(t, mock.YieldCount())
}

func TestOptions(t *testing.T) {
	t.Parallel()

	mock := NewMockKernel()
	tag := New(mock, mock, WithMaxRetries(2), WithRetryBackoff(time.Millisecond))
	assert.Equal(t, 2, tag.config.MaxAttempts)
	assert.Equal(t, time.Millisecond, tag.config.InitialBackoff)
	assert.Equal(t, OutOfMemoryMaxBackoff, tag.config.MaxBackoff)

	assert.Equal(t, OutOfMemoryRetries, DefaultRetryConfig().MaxAttempts, "defaults are never mutated")

	custom := &RetryConfig{MaxAttempts: 7}
	tag = New(mock, mock, WithRetryConfig(custom), WithRetryConfig(nil))
	assert.Same(t, custom, tag.config)

	tag.SetRetryConfig(nil)
	assert.Equal(t, DefaultRetryConfig(), tag.config)
}

var (
	_ Kernel    = (*MockKernel)(nil)
	_ Scheduler = (*MockKernel)(nil)
)
