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

func TestCalculateChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0,
		},
		{
			name: "single byte",
			data: []byte{0x42},
			want: 0x42,
		},
		{
			name: "two bytes",
			data: []byte{0x10, 0x20},
			want: 0x30,
		},
		{
			name: "overflow handling",
			data: []byte{0xFF, 0x01},
			want: 0x00, // 255 + 1 = 256, truncated to 0
		},
		{
			name: "multiple bytes",
			data: []byte{0x01, 0x02, 0x03, 0x04},
			want: 0x0A,
		},
		{
			name: "command payload",
			data: []byte{0xD4, 0x01, 0x07, 0x03, 0x00, 0x03, 0x00},
			want: 0xE2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateChecksum(tt.data); got != tt.want {
				t.Errorf("CalculateChecksum() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLengthChecksum(t *testing.T) {
	t.Parallel()
	for _, length := range []int{1, 2, 0x7F, 0xFF, 0x100, 0x1FF, MaxPayloadLength + 1} {
		lcs := LengthChecksum(length)
		if sum := byte(length>>8) + byte(length) + lcs; sum != 0 {
			t.Errorf("LengthChecksum(%d) = %#x, header sums to %#x", length, lcs, sum)
		}
	}
}

func TestDataChecksum(t *testing.T) {
	t.Parallel()
	payload := []byte{0x01, 0x07, 0x03, 0x00, 0x03, 0x00}
	dcs := DataChecksum(HostToBoard, payload)
	if sum := HostToBoard + CalculateChecksum(payload) + dcs; byte(sum) != 0 {
		t.Errorf("DataChecksum = %#x, body sums to %#x", dcs, byte(sum))
	}
}
