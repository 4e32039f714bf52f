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
	"fmt"

	"github.com/ZaparooProject/go-nfctag"
)

// Encode builds a complete frame around payload.
func Encode(tfi byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("encode %d byte payload: %w", len(payload), nfctag.ErrDataTooLarge)
	}

	frameLen := len(payload) + 1
	out := make([]byte, 0, len(payload)+Overhead)
	out = append(out,
		Preamble, StartCode1, StartCode2,
		byte(frameLen>>8), byte(frameLen), LengthChecksum(frameLen),
		tfi)
	out = append(out, payload...)
	out = append(out, DataChecksum(tfi, payload), Postamble)
	return out, nil
}

// Decoder reassembles frames from a byte stream that may deliver them in
// pieces or with line noise in between.
type Decoder struct {
	port string
	buf  []byte
}

// NewDecoder creates a decoder. port only appears in errors.
func NewDecoder(port string) *Decoder {
	return &Decoder{port: port}
}

// Feed appends bytes read from the link.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset drops everything buffered.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Next extracts the next complete frame. ok is false when more bytes are
// needed. A corrupted frame is skipped and reported once as a retryable
// *nfctag.TransportError; the following call resumes after it.
func (d *Decoder) Next() (tfi byte, payload []byte, ok bool, err error) {
	start := findStart(d.buf)
	if start < 0 {
		// Keep a trailing 00, it may be the first half of a start code.
		if n := len(d.buf); n > 0 && d.buf[n-1] == StartCode1 {
			d.buf = append(d.buf[:0], StartCode1)
		} else {
			d.buf = d.buf[:0]
		}
		return 0, nil, false, nil
	}

	// The header is normalized to begin at the preamble slot.
	hdrStart := start - 1
	if hdrStart < 0 {
		d.buf = append([]byte{Preamble}, d.buf...)
		hdrStart = 0
	}
	d.buf = d.buf[hdrStart:]
	if len(d.buf) < HeaderLength {
		return 0, nil, false, nil
	}

	frameLen, err := ValidateLength(d.buf[:HeaderLength], d.port)
	if err != nil {
		nfctag.Debugf("frame: dropping header %s: %v", describe(d.buf), err)
		d.buf = d.buf[3:]
		return 0, nil, false, err
	}

	total := HeaderLength + frameLen + 2
	if len(d.buf) < total {
		return 0, nil, false, nil
	}

	body := d.buf[HeaderLength : HeaderLength+frameLen+1]
	if !ValidateFrameChecksum(body, 0, len(body)) {
		nfctag.Debugf("frame: dropping frame %s: bad data checksum", describe(d.buf[:total]))
		d.buf = d.buf[3:]
		return 0, nil, false, nfctag.NewChecksumMismatchError("decode", d.port)
	}

	tfi = body[0]
	payload = make([]byte, frameLen-1)
	copy(payload, body[1:frameLen])
	d.buf = d.buf[total:]
	return tfi, payload, true, nil
}
