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

//go:build !deadlock

// Package syncutil provides the mutex types used across go-nfctag.
// Without build tags they are the standard library mutexes. Build or test
// with -tags=deadlock to swap in github.com/sasha-s/go-deadlock, which
// reports lock-order inversions and locks held for too long.
package syncutil

import "sync"

// Mutex is sync.Mutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedding exposes Lock/Unlock/TryLock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex is sync.RWMutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedding exposes the full RWMutex method set
type RWMutex struct {
	sync.RWMutex
}
