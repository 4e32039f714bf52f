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

// Package frame implements the framing used on links to remote NFC drivers.
//
// A frame is laid out as
//
//	00 00 FF LENH LENL LCS TFI PAYLOAD... DCS 00
//
// where LEN counts TFI and PAYLOAD, LCS makes LENH+LENL+LCS zero and DCS
// makes TFI+PAYLOAD+DCS zero (both modulo 256).
package frame

// Frame identifiers (TFI)
const (
	HostToBoard = 0xD4 // Syscalls from host to board
	BoardToHost = 0xD5 // Returns and upcalls from board to host
)

// Frame markers
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte
)

// Frame size limits
const (
	// HeaderLength covers preamble, start code, LENH, LENL and LCS.
	HeaderLength = 6
	// Overhead is every byte of a frame that is not payload.
	Overhead = HeaderLength + 3
	// MaxPayloadLength leaves room for a 256-byte buffer plus the largest
	// message header.
	MaxPayloadLength = 512
	// MaxFrameLength is the largest frame that can appear on the wire.
	MaxFrameLength = MaxPayloadLength + Overhead
)
