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

//nolint:paralleltest // Tests modify package-level debug state, cannot run in parallel
package nfctag

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDebug routes the session log into a buffer with console output off
// and restores the previous state when the test ends.
func captureDebug(t *testing.T) *bytes.Buffer {
	t.Helper()
	origEnabled, origWriter := debugEnabled.Load(), sessionLogWriter
	t.Cleanup(func() {
		debugEnabled.Store(origEnabled)
		sessionLogWriter = origWriter
	})

	var buf bytes.Buffer
	sessionLogWriter = &buf
	debugEnabled.Store(false)
	return &buf
}

func TestDebugf_WritesToSessionLog(t *testing.T) {
	buf := captureDebug(t)

	Debugf("test message %d", 42)

	content := buf.String()
	assert.Contains(t, content, "DEBUG: test message 42")
	assert.True(t, strings.HasSuffix(content, "\n"))
}

func TestDebug_IncludesTimestamp(t *testing.T) {
	tests := []struct {
		log  func()
		name string
	}{
		{name: "Debugf", log: func() { Debugf("test message") }},
		{name: "Debugln", log: func() { Debugln("test message") }},
		{name: "DebugHex", log: func() { DebugHex("RX", []byte{0x01}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureDebug(t)
			tt.log()

			matched, err := regexp.MatchString(`\d{2}:\d{2}:\d{2}\.\d{3} DEBUG:`, buf.String())
			require.NoError(t, err)
			assert.True(t, matched, "Should include timestamp in format HH:MM:SS.mmm, got: %s", buf.String())
		})
	}
}

func TestDebug_NilSessionWriter(t *testing.T) {
	captureDebug(t)
	sessionLogWriter = nil

	// None of these may panic without a session log
	Debugf("test message %d", 42)
	Debugln("test", "message")
	DebugHex("TX", []byte{0xD4})
}

func TestSetDebugEnabled(t *testing.T) {
	captureDebug(t)

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())

	SetDebugEnabled(false)
	assert.False(t, DebugEnabled())
}

func TestDebugf_MultipleMessages(t *testing.T) {
	buf := captureDebug(t)

	Debugf("message 1")
	Debugf("message 2")
	Debugf("message 3")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "Should have 3 log lines")
	assert.Contains(t, lines[0], "message 1")
	assert.Contains(t, lines[1], "message 2")
	assert.Contains(t, lines[2], "message 3")
}

func TestDebugln_MultipleArgs(t *testing.T) {
	buf := captureDebug(t)

	Debugln("value1", 42, "value2", true)

	// fmt.Sprint concatenates without spaces
	assert.Contains(t, buf.String(), "value142value2true")
}

func TestDebugHex_Format(t *testing.T) {
	buf := captureDebug(t)

	DebugHex("bridge: TX", []byte{0x00, 0x00, 0xFF, 0x0A})

	assert.Contains(t, buf.String(), "DEBUG: bridge: TX [4] 0000ff0a")
}

func TestTag_OperationsAreLogged(t *testing.T) {
	buf := captureDebug(t)

	mock := NewMockKernel()
	mock.SetCommandResult(CommandConfigure, ReturnInval)
	tag := New(mock, mock)

	assert.False(t, tag.Configure(TagType(7)))
	assert.True(t, tag.EnableEmulation())

	content := buf.String()
	assert.Contains(t, content, "command configure(7) -> EINVAL")
	assert.Contains(t, content, "command emulate(1) -> SUCCESS")
}
