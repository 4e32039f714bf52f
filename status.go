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

// Status is the outcome of a transmit or receive operation.
type Status int

const (
	// StatusSuccess means the request was accepted and its completion
	// callback fired. The buffer belongs to the caller again.
	StatusSuccess Status = iota
	// StatusError means the subscription or the command was rejected. The
	// channel may be left in an undefined state.
	StatusError
	// StatusInvalidBuffer means the kernel refused to share the buffer.
	// Nothing changed on the kernel side.
	StatusInvalidBuffer
	// StatusOutOfMemory means the kernel could not service the receive
	// request for lack of resources.
	StatusOutOfMemory
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusInvalidBuffer:
		return "invalid buffer"
	case StatusOutOfMemory:
		return "out of memory"
	default:
		return "unknown"
	}
}

// Err converts the status into an error usable with IsRetryable and
// errors.Is. It returns nil for StatusSuccess.
func (s Status) Err() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusInvalidBuffer:
		return ErrInvalidBuffer
	case StatusOutOfMemory:
		return ErrOutOfMemory
	default:
		return ErrOperationFailed
	}
}
