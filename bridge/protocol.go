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

package bridge

import (
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-nfctag"
)

// Op identifies a bridge message.
type Op byte

// Host to board
const (
	OpCommand   Op = 0x01
	OpAllow     Op = 0x02
	OpSubscribe Op = 0x03
)

// Board to host
const (
	OpReturn Op = 0x80
	OpUpcall Op = 0x81
)

const (
	requestHeaderLen = 2 + 4*2
	commandLen       = requestHeaderLen + 4*2
	returnLen        = 2 + 4
	upcallHeaderLen  = 2 + 4*6
)

// Request is a syscall forwarded to the board.
type Request struct {
	Data   []byte // allow only: snapshot of the shared buffer
	Driver int
	Num    int // command, allow or subscribe number
	Arg0   int
	Arg1   int
	Op     Op
	Seq    byte
}

// Reply is a message from the board: either the return code of the request
// with the same Seq, or an upcall.
type Reply struct {
	Data   []byte // upcall only: bytes written into the buffer shared under Allow
	Args   [3]int
	Driver int
	Sub    int
	Allow  int
	Code   nfctag.ReturnCode
	Op     Op
	Seq    byte
}

func putInt(b []byte, v int) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v)) //nolint:gosec // two's complement on the wire
}

func getInt(b []byte) int {
	return int(int32(binary.LittleEndian.Uint32(b))) //nolint:gosec // two's complement on the wire
}

// Encode serializes the request payload.
func (r *Request) Encode() []byte {
	out := make([]byte, 0, commandLen+len(r.Data))
	out = append(out, byte(r.Op), r.Seq)
	out = putInt(out, r.Driver)
	out = putInt(out, r.Num)
	switch r.Op {
	case OpCommand:
		out = putInt(out, r.Arg0)
		out = putInt(out, r.Arg1)
	case OpAllow:
		out = append(out, r.Data...)
	case OpSubscribe, OpReturn, OpUpcall:
	}
	return out
}

// DecodeRequest parses a request payload.
func DecodeRequest(p []byte) (Request, error) {
	if len(p) < requestHeaderLen {
		return Request{}, fmt.Errorf("request of %d bytes: %w", len(p), nfctag.ErrInvalidResponse)
	}
	r := Request{
		Op:     Op(p[0]),
		Seq:    p[1],
		Driver: getInt(p[2:]),
		Num:    getInt(p[6:]),
	}
	switch r.Op {
	case OpCommand:
		if len(p) < commandLen {
			return Request{}, fmt.Errorf("command of %d bytes: %w", len(p), nfctag.ErrInvalidResponse)
		}
		r.Arg0 = getInt(p[10:])
		r.Arg1 = getInt(p[14:])
	case OpAllow:
		r.Data = append([]byte(nil), p[requestHeaderLen:]...)
	case OpSubscribe:
	case OpReturn, OpUpcall:
		return Request{}, fmt.Errorf("unexpected op %#x from host: %w", r.Op, nfctag.ErrInvalidResponse)
	default:
		return Request{}, fmt.Errorf("unknown op %#x: %w", r.Op, nfctag.ErrInvalidResponse)
	}
	return r, nil
}

// Encode serializes the reply payload.
func (r *Reply) Encode() []byte {
	if r.Op == OpReturn {
		out := make([]byte, 0, returnLen)
		out = append(out, byte(OpReturn), r.Seq)
		return putInt(out, int(r.Code))
	}
	out := make([]byte, 0, upcallHeaderLen+len(r.Data))
	out = append(out, byte(OpUpcall), 0)
	out = putInt(out, r.Driver)
	out = putInt(out, r.Sub)
	out = putInt(out, r.Allow)
	for _, a := range r.Args {
		out = putInt(out, a)
	}
	return append(out, r.Data...)
}

// DecodeReply parses a reply payload.
func DecodeReply(p []byte) (Reply, error) {
	if len(p) < 2 {
		return Reply{}, fmt.Errorf("reply of %d bytes: %w", len(p), nfctag.ErrInvalidResponse)
	}
	r := Reply{Op: Op(p[0]), Seq: p[1]}
	switch r.Op {
	case OpReturn:
		if len(p) < returnLen {
			return Reply{}, fmt.Errorf("return of %d bytes: %w", len(p), nfctag.ErrInvalidResponse)
		}
		r.Code = nfctag.ReturnCode(getInt(p[2:]))
	case OpUpcall:
		if len(p) < upcallHeaderLen {
			return Reply{}, fmt.Errorf("upcall of %d bytes: %w", len(p), nfctag.ErrInvalidResponse)
		}
		r.Driver = getInt(p[2:])
		r.Sub = getInt(p[6:])
		r.Allow = getInt(p[10:])
		for i := range r.Args {
			r.Args[i] = getInt(p[14+4*i:])
		}
		r.Data = append([]byte(nil), p[upcallHeaderLen:]...)
	case OpCommand, OpAllow, OpSubscribe:
		return Reply{}, fmt.Errorf("unexpected op %#x from board: %w", r.Op, nfctag.ErrInvalidResponse)
	default:
		return Reply{}, fmt.Errorf("unknown op %#x: %w", r.Op, nfctag.ErrInvalidResponse)
	}
	return r, nil
}
