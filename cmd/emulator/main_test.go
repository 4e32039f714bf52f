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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/bridge"
	"github.com/ZaparooProject/go-nfctag/emulation"
	"github.com/ZaparooProject/go-nfctag/emulation/type4"
	virt "github.com/ZaparooProject/go-nfctag/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config
		wantErr string
	}{
		{name: "defaults", cfg: config{tagType: 4}},
		{name: "uart and i2c", cfg: config{devicePath: "/dev/ttyACM0", busPath: "/dev/i2c-1", tagType: 4}, wantErr: "mutually exclusive"},
		{name: "text and uri", cfg: config{text: "a", uri: "b", tagType: 4}, wantErr: "mutually exclusive"},
		{name: "tag type too large", cfg: config{tagType: 256}, wantErr: "invalid tag type"},
		{name: "negative tag type", cfg: config{tagType: -1}, wantErr: "invalid tag type"},
		{name: "ndef on type 2", cfg: config{text: "a", tagType: 2}, wantErr: "needs tag type 4"},
		{name: "echo on type 2", cfg: config{tagType: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_SessionConfig(t *testing.T) {
	t.Parallel()

	cfg := &config{tagType: 2, frameDelay: 0x2000, maxFailures: -5}
	sc := cfg.sessionConfig()
	assert.Equal(t, nfctag.TagType2, sc.TagType)
	assert.Equal(t, uint32(0x2000), sc.FrameDelayMax)
	assert.Zero(t, sc.MaxSelectFailures)
}

func TestConfig_LinkName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/dev/ttyACM0", (&config{devicePath: "/dev/ttyACM0"}).linkName())
	assert.Equal(t, "i2c 1:0x24", (&config{busPath: "1:0x24"}).linkName())
	assert.Empty(t, (&config{}).linkName())
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	h, err := newHandler(&config{})
	require.NoError(t, err)
	reply, done := h.Exchange([]byte{0x01, 0x02})
	assert.Equal(t, []byte{0x01, 0x02}, reply, "echo without a record")
	assert.False(t, done)

	h, err = newHandler(&config{text: "hello"})
	require.NoError(t, err)
	assert.IsType(t, &type4.Handler{}, h)

	h, err = newHandler(&config{uri: "https://zaparoo.org", writable: 128})
	require.NoError(t, err)
	assert.IsType(t, &type4.Handler{}, h)

	_, err = newHandler(&config{text: "too long for the file", writable: 4})
	require.ErrorIs(t, err, type4.ErrTooLarge)
}

func testSessionConfig(maxFailures int) *emulation.Config {
	sc := emulation.DefaultConfig()
	sc.MaxSelectFailures = maxFailures
	sc.RecoveryAttempts = 1
	sc.RecoveryBackoff = time.Millisecond
	return sc
}

// boards hands out one virtual board per open, then fails
func boards(drivers ...*virt.VirtualDriver) (func() (bridge.Link, error), *int) {
	opens := 0
	return func() (bridge.Link, error) {
		opens++
		if opens > len(drivers) {
			return nil, errors.New("board unplugged")
		}
		return virt.NewVirtualBoard(drivers[opens-1]), nil
	}, &opens
}

func TestEmulate_Type4OverBridge(t *testing.T) {
	t.Parallel()

	driver := virt.NewVirtualDriver(
		virt.Select(),
		virt.Frame([]byte{0xE0, 0x80}),
		virt.Frame([]byte{0x02, 0x00, 0xA4, 0x04, 0x00, 0x07, 0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01, 0x00}),
		virt.Frame([]byte{0x03, 0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x03}),
		virt.Frame([]byte{0x02, 0x00, 0xB0, 0x00, 0x00, 0x0F}),
	)
	handler, err := type4.NewText("hello", "en")
	require.NoError(t, err)

	open, opens := boards(driver)
	stats, err := emulate(context.Background(), open, handler, testSessionConfig(1))
	require.ErrorIs(t, err, emulation.ErrSelectFailed)
	assert.Equal(t, 1, *opens)

	sent := driver.Transmitted()
	require.Len(t, sent, 4)
	assert.Equal(t, []byte{0x02, 0x90, 0x00}, sent[1])
	assert.Equal(t, []byte{0x03, 0x90, 0x00}, sent[2])
	require.Len(t, sent[3], 1+15+2)
	assert.Equal(t, []byte{0x02, 0x00, 0x0F}, sent[3][:3], "capability container")

	assert.Equal(t, int64(1), stats.Selections)
	assert.Equal(t, int64(4), stats.Exchanges)
	assert.Equal(t, nfctag.TagType4, driver.TagType())
	assert.Equal(t, uint32(emulation.DefaultFrameDelayMax), driver.FrameDelayMax())
}

func TestEmulate_Reconnects(t *testing.T) {
	t.Parallel()

	first := virt.NewVirtualDriver(virt.Select(), virt.Frame([]byte{0x01}))
	second := virt.NewVirtualDriver(virt.Select(), virt.Frame([]byte{0x02}))
	open, opens := boards(first, second)

	stats, err := emulate(context.Background(), open, emulation.Echo, testSessionConfig(2))
	require.ErrorIs(t, err, emulation.ErrRecoveryFailed)
	assert.Contains(t, err.Error(), "board unplugged")

	assert.Equal(t, 3, *opens)
	assert.Equal(t, [][]byte{{0x01}}, first.Transmitted())
	assert.Equal(t, [][]byte{{0x02}}, second.Transmitted())
	assert.Equal(t, int64(2), stats.Selections)
	assert.Equal(t, int64(2), stats.Exchanges)
	assert.Equal(t, int64(2), stats.Recoveries)
}

func TestEmulate_OpenFails(t *testing.T) {
	t.Parallel()

	open, _ := boards()
	_, err := emulate(context.Background(), open, emulation.Echo, testSessionConfig(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board unplugged")
}

func TestEmulate_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	open, _ := boards(virt.NewVirtualDriver(virt.Select()))
	_, err := emulate(ctx, open, emulation.Echo, testSessionConfig(0))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPrintStats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printStats(&buf, emulation.Stats{Selections: 2, Exchanges: 7, Recoveries: 1})
	assert.Contains(t, buf.String(), "Selections: 2, frames: 7")
	assert.Contains(t, buf.String(), "recoveries: 1")
}

func TestPrintMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printMessage(&buf, emulation.Echo)
	assert.Empty(t, buf.String())

	h, err := type4.NewURI("https://zaparoo.org", type4.WithWritable(64))
	require.NoError(t, err)
	printMessage(&buf, h)
	assert.Contains(t, buf.String(), `Record 0: type "U"`)
}
