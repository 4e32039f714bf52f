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
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// Recoverer brings the driver back after a failed wait for a reader
type Recoverer interface {
	// AttemptRecovery tries to restore emulation.
	// Returns nil if recovery was successful, error otherwise.
	AttemptRecovery(ctx context.Context) error

	// Tag returns the current tag (may change after reconnection)
	Tag() *nfctag.Tag
}

// ReopenFunc reconnects to the driver, for example by reopening a bridge
// link, and returns a fresh Tag
type ReopenFunc func() (*nfctag.Tag, error)

// DefaultRecoverer implements a tiered recovery strategy:
// 1. Reapply the configuration and re-enable emulation
// 2. Full reconnection via user-provided reopen function
type DefaultRecoverer struct {
	tag         *nfctag.Tag
	reopenFunc  ReopenFunc
	config      *Config
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer creates a recoverer with tiered recovery strategy.
// If reopenFunc is nil, only reconfiguration will be attempted.
func NewDefaultRecoverer(tag *nfctag.Tag, config *Config, reopenFunc ReopenFunc) *DefaultRecoverer {
	if config == nil {
		config = DefaultConfig()
	}
	maxAttempts := config.RecoveryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := config.RecoveryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &DefaultRecoverer{
		tag:         tag,
		reopenFunc:  reopenFunc,
		config:      config,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// AttemptRecovery implements tiered recovery
func (r *DefaultRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		// Tier 1: the driver may simply have dropped out of emulation
		err := r.config.apply(r.tag)
		if err == nil {
			return nil
		}
		lastErr = err
		nfctag.Debugf("emulation: recovery attempt %d: %v", attempt+1, err)

		// Tier 2: full reconnection
		if r.reopenFunc != nil {
			tag, reopenErr := r.reopenFunc()
			if reopenErr != nil {
				lastErr = fmt.Errorf("reopen: %w", reopenErr)
				continue
			}
			r.tag = tag
			if err := r.config.apply(tag); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
	}

	return lastErr
}

// Tag returns the current tag.
// This may return a different tag after a successful reconnection.
func (r *DefaultRecoverer) Tag() *nfctag.Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tag
}
