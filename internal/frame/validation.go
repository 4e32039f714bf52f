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

import (
	"bytes"
	"fmt"

	"github.com/ZaparooProject/go-nfctag"
)

// ValidateLength checks the length field of a frame header starting at
// buf[0]. It returns the LEN value, which counts TFI and payload. A length
// beyond MaxPayloadLength is reported as a corrupted frame: on the wire it
// can only come from noise that happens to look like a header.
func ValidateLength(header []byte, port string) (int, error) {
	if len(header) < HeaderLength {
		return 0, nfctag.NewFrameCorruptedError("validateLength", port)
	}

	frameLen := int(header[3])<<8 | int(header[4])
	if (header[3]+header[4]+header[5])&0xFF != 0 {
		return 0, nfctag.NewChecksumMismatchError("validateLength", port)
	}
	if frameLen < 1 {
		return 0, nfctag.NewFrameCorruptedError("validateLength", port)
	}
	if frameLen-1 > MaxPayloadLength {
		return 0, nfctag.NewFrameCorruptedError("validateLength", port)
	}
	return frameLen, nil
}

// ValidateFrameChecksum reports whether TFI, payload and DCS sum to zero.
// Invalid slice bounds are reported as a bad checksum.
func ValidateFrameChecksum(buf []byte, start, end int) bool {
	if start < 0 || end < 0 || start > end || end > len(buf) {
		return false
	}
	return CalculateChecksum(buf[start:end]) == 0
}

// findStart returns the index of the first 00 FF start code in buf, or -1.
func findStart(buf []byte) int {
	return bytes.Index(buf, []byte{StartCode1, StartCode2})
}

// describe is used in error messages for frames that fail validation.
func describe(buf []byte) string {
	if len(buf) > 16 {
		return fmt.Sprintf("% X ...", buf[:16])
	}
	return fmt.Sprintf("% X", buf)
}
