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

// Out-of-memory retry constants control ReceiveWithRetry. The driver frees
// its receive resources once the previous frame has been consumed, so short
// exponential backoff is enough.
const (
	// OutOfMemoryRetries is the number of receive attempts.
	OutOfMemoryRetries = 5
	// OutOfMemoryInitialBackoff is the delay before the first retry.
	OutOfMemoryInitialBackoff = 5 * time.Millisecond
	// OutOfMemoryMaxBackoff caps the delay between attempts.
	OutOfMemoryMaxBackoff = 200 * time.Millisecond
	// OutOfMemoryBackoffMultiplier is the exponential backoff multiplier.
	OutOfMemoryBackoffMultiplier = 2.0
	// OutOfMemoryJitter is the random jitter factor (0.0-1.0).
	OutOfMemoryJitter = 0.1
	// OutOfMemoryRetryTimeout is the overall budget for backing off.
	OutOfMemoryRetryTimeout = 2 * time.Second
)

// Bridge link constants control remote kernels reached over a serial or I2C
// link.
const (
	// LinkReadTimeout is the per-read timeout of a link. Reads that time out
	// are retried; it only bounds how long a single read blocks.
	LinkReadTimeout = 50 * time.Millisecond
	// LinkReturnTimeout is how long the bridge waits for the board to
	// acknowledge a syscall before reporting the link as failed.
	LinkReturnTimeout = 2 * time.Second
	// LinkRetries is the number of attempts for a link write or drain
	// interrupted by a signal.
	LinkRetries = 3
	// LinkPollInterval is how often an I2C link polls the board for a pending
	// frame.
	LinkPollInterval = 5 * time.Millisecond
)
