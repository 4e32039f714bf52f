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
	"time"

	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// detectionCache holds the last detection result.
type detectionCache struct {
	timestamp time.Time
	devices   []DeviceInfo
	mu        syncutil.RWMutex
	valid     bool
}

var cache = &detectionCache{}

// getCached returns cached devices if available and not expired
func getCached(ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	if !cache.valid || time.Since(cache.timestamp) > ttl {
		return nil, false
	}

	// Return a copy to prevent modification
	devices := make([]DeviceInfo, len(cache.devices))
	copy(devices, cache.devices)
	return devices, true
}

// setCached stores detection results in cache
func setCached(devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.devices = make([]DeviceInfo, len(devices))
	copy(cache.devices, devices)
	cache.timestamp = time.Now()
	cache.valid = true
}

// clearCache drops the cached result
func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.devices = nil
	cache.valid = false
}

// ClearDetectionCache removes the cached detection result
func ClearDetectionCache() {
	clearCache()
}
