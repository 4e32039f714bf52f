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

package frame

import "testing"

// Malformed input from a misbehaving board must never make the decoder panic
// or grow without bound.
//
// Run with: go test -fuzz=FuzzDecoder -fuzztime=30s ./internal/frame/

func FuzzDecoder(f *testing.F) {
	good, _ := Encode(BoardToHost, []byte{0x80, 0x01, 0x00, 0x00, 0x00, 0x00})
	f.Add(good)
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0x00, 0xFF})
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	f.Add([]byte{0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		dec := NewDecoder("fuzz")
		dec.Feed(data)
		for range len(data) + 1 {
			before := dec.Buffered()
			_, payload, ok, err := dec.Next()
			if ok && len(payload) > MaxPayloadLength {
				t.Fatalf("payload of %d bytes exceeds limit", len(payload))
			}
			if !ok && err == nil && dec.Buffered() >= before {
				return
			}
		}
	})
}

func FuzzValidateFrameChecksum(f *testing.F) {
	f.Add([]byte{0xD5, 0x2B}, 0, 2)
	f.Add([]byte{}, 0, 0)
	f.Add([]byte{0x01}, -1, 5)

	f.Fuzz(func(_ *testing.T, buf []byte, start, end int) {
		_ = ValidateFrameChecksum(buf, start, end)
	})
}
