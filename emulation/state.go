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

import "errors"

// State is the phase of an emulation session
type State int

const (
	StateIdle State = iota
	StateWaitingSelect
	StateSelected
	StateExchanging
	StateRecovering
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingSelect:
		return "waiting for select"
	case StateSelected:
		return "selected"
	case StateExchanging:
		return "exchanging"
	case StateRecovering:
		return "recovering"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session errors
var (
	ErrConfigureFailed = errors.New("driver rejected configuration")
	ErrEnableFailed    = errors.New("driver refused to enable emulation")
	ErrSelectFailed    = errors.New("waiting for a reader failed")
	ErrRecoveryFailed  = errors.New("driver recovery failed")
	ErrSessionRunning  = errors.New("session already running")
)
