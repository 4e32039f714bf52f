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
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
)

// SessionInfo describes the emulation a session log covers
type SessionInfo struct {
	// Link names the board connection, e.g. /dev/ttyACM0 or i2c 1:0x24
	Link          string
	TagType       TagType
	FrameDelayMax uint32
}

var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
	sessionStarted   time.Time
)

// InitSessionLog creates a session log file in the current directory and
// records info in its header. Every Debugf and Debugln line is appended to
// it, debug mode or not, until CloseSessionLog. The returned path is meant
// for display.
func InitSessionLog(info SessionInfo) (string, error) {
	now := time.Now()
	filename := fmt.Sprintf("nfctag_%s.log", now.Format("20060102_150405"))

	logFile, err := os.Create(filename) //nolint:gosec // filename is built here, not user input
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLogFile = logFile
	sessionLogPath = filename
	sessionLogWriter = logFile
	sessionStarted = now

	writeSessionHeader(logFile, info, now)
	return filename, nil
}

// CloseSessionLog ends the session log with the time it covered. It is a
// no-op when no log is open.
func CloseSessionLog() error {
	if sessionLogFile == nil {
		return nil
	}

	now := time.Now()
	_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended after %s ===\n",
		now.Format("15:04:05.000"), now.Sub(sessionStarted).Round(time.Millisecond))

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	sessionStarted = time.Time{}
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open session log's path, or "".
func GetSessionLogPath() string {
	return sessionLogPath
}

func writeSessionHeader(writer io.Writer, info SessionInfo, started time.Time) {
	link := info.Link
	if link == "" {
		link = "(none)"
	}

	_, _ = fmt.Fprint(writer, "=== nfctag Emulation Session Log ===\n")
	_, _ = fmt.Fprintf(writer, "Started: %s\n", started.Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "Link: %s\n", link)
	_, _ = fmt.Fprintf(writer, "Driver: %#x\n", DriverNum)
	_, _ = fmt.Fprintf(writer, "Tag Type: %d\n", info.TagType)
	_, _ = fmt.Fprintf(writer, "Frame Delay Max: %d\n", info.FrameDelayMax)
	_, _ = fmt.Fprintf(writer, "Receive Buffer: %d bytes\n", ReceiveBufferSize)
	_, _ = fmt.Fprintf(writer, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(writer, "OS: %s/%s, %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	_, _ = fmt.Fprintf(writer, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(writer, "====================================\n\n")
}
