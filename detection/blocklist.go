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

package detection

import (
	"path/filepath"
	"slices"
	"strings"
)

// DefaultBlocklist returns a list of known problematic USB devices
// that should not be probed during detection.
// Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno, resets when the port is opened
		"1A86:55D4", // CH9102 in ESP32 boards, resets when the port is opened
	}
}

// IsBlocked checks if a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	return slices.ContainsFunc(blocklist, func(blocked string) bool {
		return strings.ToUpper(strings.TrimSpace(blocked)) == vidpid
	})
}

// IsPathIgnored checks if a device path should be ignored.
// Supports exact path matching and normalized path comparison.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

// normalizedPath normalizes a device path for comparison
func normalizedPath(path string) string {
	// Lowercase for case-insensitive comparison on Windows
	return strings.ToLower(filepath.Clean(path))
}

// Debug probes on development boards that run the syscall proxy
var knownBoards = []string{
	"1366:1015", // SEGGER J-Link OB (nRF52840-DK)
	"1366:1051", // SEGGER J-Link OB
	"0D28:0204", // Arm DAPLink (micro:bit)
	"2E8A:000A", // Raspberry Pi Pico CDC
	"0403:6001", // FTDI FT232 adapter
	"10C4:EA60", // Silicon Labs CP210x adapter
}

// isLikelyBoard checks whether a port's descriptors look like a board
func isLikelyBoard(port *serialPort) bool {
	if port.VIDPID != "" && slices.Contains(knownBoards, strings.ToUpper(port.VIDPID)) {
		return true
	}

	product := strings.ToLower(port.Product)
	for _, keyword := range []string{"j-link", "daplink", "nfc", "tock"} {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device list
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}
