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

package testing

import (
	"io"
	"testing"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/bridge"
	"github.com/ZaparooProject/go-nfctag/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ bridge.Link = (*VirtualBoard)(nil)

func writeRequest(t *testing.T, b *VirtualBoard, req *bridge.Request) {
	t.Helper()
	raw, err := frame.Encode(frame.HostToBoard, req.Encode())
	require.NoError(t, err)
	n, err := b.Write(raw)
	require.NoError(t, err)
	require.Equal(t, len(raw), n)
}

// readReplies drains the board until it has nothing more to say
func readReplies(t *testing.T, b *VirtualBoard) []bridge.Reply {
	t.Helper()
	dec := frame.NewDecoder("test")
	buf := make([]byte, 64)
	var out []bridge.Reply
	for range 100 {
		n, err := b.Read(buf)
		dec.Feed(buf[:n])
		for {
			_, payload, ok, decErr := dec.Next()
			require.NoError(t, decErr)
			if !ok {
				break
			}
			reply, decErr := bridge.DecodeReply(payload)
			require.NoError(t, decErr)
			out = append(out, reply)
		}
		if err != nil || n == 0 {
			break
		}
	}
	return out
}

func TestVirtualBoard_CommandReturn(t *testing.T) {
	t.Parallel()

	d := NewVirtualDriver()
	b := NewVirtualBoard(d)

	writeRequest(t, b, &bridge.Request{
		Op: bridge.OpCommand, Seq: 9, Driver: nfctag.DriverNum,
		Num: int(nfctag.CommandConfigure), Arg0: 3,
	})

	replies := readReplies(t, b)
	require.Len(t, replies, 1)
	assert.Equal(t, bridge.OpReturn, replies[0].Op)
	assert.Equal(t, byte(9), replies[0].Seq)
	assert.Equal(t, nfctag.ReturnSuccess, replies[0].Code)
	assert.Equal(t, nfctag.TagType3, d.TagType())

	require.Len(t, b.Requests(), 1)
}

func TestVirtualBoard_ReceiveUpcallCarriesData(t *testing.T) {
	t.Parallel()

	d := NewVirtualDriver(Frame([]byte{0xCA, 0xFE}))
	b := NewVirtualBoard(d)

	writeRequest(t, b, &bridge.Request{
		Op: bridge.OpAllow, Seq: 1, Driver: nfctag.DriverNum,
		Num: int(nfctag.AllowReceive), Data: make([]byte, 16),
	})
	writeRequest(t, b, &bridge.Request{
		Op: bridge.OpSubscribe, Seq: 2, Driver: nfctag.DriverNum, Num: int(nfctag.SubscribeReceive),
	})
	writeRequest(t, b, &bridge.Request{
		Op: bridge.OpCommand, Seq: 3, Driver: nfctag.DriverNum, Num: int(nfctag.CommandReceive),
	})

	replies := readReplies(t, b)
	require.Len(t, replies, 4)
	for i := range 3 {
		assert.Equal(t, nfctag.ReturnSuccess, replies[i].Code)
	}
	up := replies[3]
	assert.Equal(t, bridge.OpUpcall, up.Op)
	assert.Equal(t, int(nfctag.SubscribeReceive), up.Sub)
	assert.Equal(t, int(nfctag.AllowReceive), up.Allow)
	assert.Equal(t, 2, up.Args[0])
	assert.Equal(t, []byte{0xCA, 0xFE}, up.Data)
}

func TestVirtualBoard_IdleReadIsTimeout(t *testing.T) {
	t.Parallel()

	b := NewVirtualBoard(NewVirtualDriver())
	n, err := b.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVirtualBoard_ExhaustedReaderIsEOF(t *testing.T) {
	t.Parallel()

	b := NewVirtualBoard(NewVirtualDriver())
	writeRequest(t, b, &bridge.Request{
		Op: bridge.OpSubscribe, Seq: 1, Driver: nfctag.DriverNum, Num: int(nfctag.SubscribeSelect),
	})
	require.Len(t, readReplies(t, b), 1)

	_, err := b.Read(make([]byte, 8))
	require.ErrorIs(t, err, io.EOF)
}

func TestVirtualBoard_Close(t *testing.T) {
	t.Parallel()

	b := NewVirtualBoard(NewVirtualDriver())
	require.NoError(t, b.Close())

	_, err := b.Read(make([]byte, 8))
	require.ErrorIs(t, err, io.ErrClosedPipe)
	_, err = b.Write([]byte{0x00})
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestJitteryLink_DeliversEverything(t *testing.T) {
	t.Parallel()

	b := NewVirtualBoard(NewVirtualDriver())
	config := DefaultJitterConfig()
	config.MaxLatencyMs = 0
	config.Seed = 7
	link := NewJitteryLink(b, config)

	b.InjectNoise([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	var got []byte
	buf := make([]byte, 4)
	for len(got) < 10 {
		n, err := link.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}
