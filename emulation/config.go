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

package emulation

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-nfctag"
)

// DefaultFrameDelayMax is the maximum frame delay applied when none is
// configured, in carrier periods (1/fc).
const DefaultFrameDelayMax = 0x1000

// Config holds emulation session options
type Config struct {
	// Retry controls how receives rejected for lack of memory are repeated.
	// Nil keeps the Tag's own configuration.
	Retry *nfctag.RetryConfig

	// FrameDelayMax is passed to the driver before emulation starts. 0 keeps
	// the driver's default.
	FrameDelayMax uint32

	// MaxSelectFailures is the number of consecutive failed waits for a
	// reader before Run gives up.
	MaxSelectFailures int

	// RecoveryAttempts is how many times the recoverer tries to bring the
	// driver back after a failed wait. Default: 3
	RecoveryAttempts int

	// RecoveryBackoff is the delay between recovery attempts
	RecoveryBackoff time.Duration

	// TagType is the tag type the driver emulates
	TagType nfctag.TagType
}

// DefaultConfig returns the default session configuration
func DefaultConfig() *Config {
	return &Config{
		TagType:           nfctag.TagType4,
		FrameDelayMax:     DefaultFrameDelayMax,
		MaxSelectFailures: 3,
		RecoveryAttempts:  3,
		RecoveryBackoff:   500 * time.Millisecond,
	}
}

// apply configures the driver and turns emulation on
func (cfg *Config) apply(tag *nfctag.Tag) error {
	if !tag.Configure(cfg.TagType) {
		return fmt.Errorf("%w: tag type %d", ErrConfigureFailed, cfg.TagType)
	}
	if cfg.FrameDelayMax > 0 && !tag.SetFrameDelayMax(cfg.FrameDelayMax) {
		return fmt.Errorf("%w: frame delay %d", ErrConfigureFailed, cfg.FrameDelayMax)
	}
	if !tag.EnableEmulation() {
		return ErrEnableFailed
	}
	if cfg.Retry != nil {
		tag.SetRetryConfig(cfg.Retry)
	}
	return nil
}
