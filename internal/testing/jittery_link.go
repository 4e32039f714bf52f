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
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-nfctag/bridge"
)

// JitterConfig configures the behavior of JitteryLink.
type JitterConfig struct {
	MaxLatencyMs      int
	FragmentMinBytes  int
	Seed              uint64
	FragmentReads     bool
	USBBoundaryStress bool
}

// DefaultJitterConfig returns a configuration that fragments every read and
// adds a little latency.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatencyMs:     2,
		FragmentReads:    true,
		FragmentMinBytes: 1,
	}
}

// JitteryLink wraps a bridge.Link the way a USB-UART adapter behaves: reads
// arrive late and in arbitrary fragments. Data is buffered, never lost.
type JitteryLink struct {
	bridge.Link
	rng       *rand.Rand
	readBuf   []byte
	config    JitterConfig
	bytesRead int
}

// NewJitteryLink wraps link with jitter simulation.
func NewJitteryLink(link bridge.Link, config JitterConfig) *JitteryLink {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test code, not crypto
	}
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}

	return &JitteryLink{
		Link:    link,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test code, not crypto
		readBuf: make([]byte, 0, 1024),
	}
}

// Read returns buffered backend data in fragments.
func (j *JitteryLink) Read(buf []byte) (int, error) {
	if j.config.MaxLatencyMs > 0 {
		if delay := time.Duration(j.rng.IntN(j.config.MaxLatencyMs+1)) * time.Millisecond; delay > 0 {
			time.Sleep(delay)
		}
	}

	if len(j.readBuf) == 0 {
		tmp := make([]byte, 1024)
		n, err := j.Link.Read(tmp)
		if err != nil {
			return 0, err //nolint:wrapcheck // pass-through wrapper
		}
		if n == 0 {
			return 0, nil
		}
		j.readBuf = append(j.readBuf, tmp[:n]...)
	}

	toReturn := min(len(j.readBuf), len(buf))

	// USB full-speed bulk packets are 64 bytes.
	if j.config.USBBoundaryStress && toReturn > 0 {
		untilBoundary := ((j.bytesRead/64)+1)*64 - j.bytesRead
		if untilBoundary < toReturn {
			toReturn = untilBoundary
		}
	}

	if j.config.FragmentReads && toReturn > j.config.FragmentMinBytes {
		toReturn = j.config.FragmentMinBytes + j.rng.IntN(toReturn-j.config.FragmentMinBytes+1)
	}

	copy(buf, j.readBuf[:toReturn])
	j.readBuf = j.readBuf[toReturn:]
	j.bytesRead += toReturn
	return toReturn, nil
}
