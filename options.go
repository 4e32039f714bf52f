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

import "time"

// Option is a functional option for configuring a Tag
type Option func(*Tag)

// WithRetryConfig sets the retry configuration used by ReceiveWithRetry
func WithRetryConfig(config *RetryConfig) Option {
	return func(t *Tag) {
		if config != nil {
			t.config = config
		}
	}
}

// WithMaxRetries sets the maximum number of receive attempts
func WithMaxRetries(maxAttempts int) Option {
	return func(t *Tag) {
		cfg := *t.config
		cfg.MaxAttempts = maxAttempts
		t.config = &cfg
	}
}

// WithRetryBackoff sets the initial backoff duration for retries
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(t *Tag) {
		cfg := *t.config
		cfg.InitialBackoff = initialBackoff
		t.config = &cfg
	}
}
