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
	"errors"
	"io"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/bridge"
	"github.com/ZaparooProject/go-nfctag/internal/frame"
	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// VirtualBoard is the board end of a bridge link. It decodes request frames
// written by a bridge.Client, runs them against a VirtualDriver and queues
// the return and upcall frames for the client to read. It implements
// bridge.Link, so a client can be attached to it directly.
type VirtualBoard struct {
	driver    *VirtualDriver
	dec       *frame.Decoder
	buffers   map[nfctag.AllowNum][]byte
	waiting   map[nfctag.SubscribeNum]bool
	out       []byte
	requests  []bridge.Request
	dropNext  int
	corrupt   int
	mu        syncutil.Mutex
	closed    bool
	exhausted bool
}

// NewVirtualBoard creates a board running driver
func NewVirtualBoard(driver *VirtualDriver) *VirtualBoard {
	return &VirtualBoard{
		driver:  driver,
		dec:     frame.NewDecoder("virtual"),
		buffers: make(map[nfctag.AllowNum][]byte),
		waiting: make(map[nfctag.SubscribeNum]bool),
	}
}

// Name implements bridge.Link
func (*VirtualBoard) Name() string {
	return "virtual"
}

// Type implements bridge.Link
func (*VirtualBoard) Type() bridge.LinkType {
	return bridge.LinkMock
}

// Close implements bridge.Link
func (b *VirtualBoard) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Write implements bridge.Link. Complete request frames are executed
// immediately.
func (b *VirtualBoard) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, io.ErrClosedPipe
	}

	b.dec.Feed(p)
	for {
		tfi, payload, ok, err := b.dec.Next()
		if err != nil {
			continue
		}
		if !ok {
			break
		}
		if tfi != frame.HostToBoard {
			continue
		}
		req, err := bridge.DecodeRequest(payload)
		if err != nil {
			continue
		}
		b.requests = append(b.requests, req)
		b.execute(&req)
	}
	return len(p), nil
}

// Read implements bridge.Link. With nothing queued and a subscription
// outstanding it lets the driver run once, which may produce an upcall. With
// nothing to wait for it behaves like a read timeout. Once the reader script
// is exhausted it reports io.EOF.
func (b *VirtualBoard) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, io.ErrClosedPipe
	}

	if len(b.out) == 0 && len(b.waiting) == 0 && !b.exhausted {
		b.mu.Unlock()
		time.Sleep(time.Millisecond)
		b.mu.Lock()
		return 0, nil
	}

	if len(b.out) == 0 && !b.exhausted {
		b.mu.Unlock()
		err := b.driver.Yield()
		b.mu.Lock()
		if errors.Is(err, ErrReaderGone) {
			b.exhausted = true
		}
	}

	if len(b.out) == 0 {
		if b.exhausted {
			return 0, io.EOF
		}
		return 0, nil
	}

	n := copy(p, b.out)
	b.out = b.out[n:]
	return n, nil
}

func (b *VirtualBoard) execute(req *bridge.Request) {
	var rc nfctag.ReturnCode
	switch req.Op {
	case bridge.OpCommand:
		b.mu.Unlock()
		rc = b.driver.Command(req.Driver, nfctag.CommandNum(req.Num), req.Arg0, req.Arg1)
		b.mu.Lock()
	case bridge.OpAllow:
		allow := nfctag.AllowNum(req.Num)
		var buf []byte
		if len(req.Data) > 0 {
			buf = append([]byte(nil), req.Data...)
		}
		b.mu.Unlock()
		rc = b.driver.Allow(req.Driver, allow, buf)
		b.mu.Lock()
		if rc.IsSuccess() {
			b.buffers[allow] = buf
		}
	case bridge.OpSubscribe:
		rc = b.subscribe(req.Driver, nfctag.SubscribeNum(req.Num))
	default:
		rc = nfctag.ReturnNoSupport
	}

	b.send(&bridge.Reply{Op: bridge.OpReturn, Seq: req.Seq, Code: rc})
}

// subscribe registers a board-side callback that forwards the event to the
// host as an upcall. Must hold b.mu.
func (b *VirtualBoard) subscribe(driver int, sub nfctag.SubscribeNum) nfctag.ReturnCode {
	cb := func(arg1, arg2, arg3 int) {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.waiting, sub)
		up := &bridge.Reply{Op: bridge.OpUpcall, Driver: driver, Sub: int(sub), Args: [3]int{arg1, arg2, arg3}}
		if sub == nfctag.SubscribeReceive {
			if buf, ok := b.buffers[nfctag.AllowReceive]; ok {
				up.Allow = int(nfctag.AllowReceive)
				up.Data = append([]byte(nil), buf[:min(max(arg1, 0), len(buf))]...)
			}
		}
		b.send(up)
	}

	b.mu.Unlock()
	rc := b.driver.Subscribe(driver, sub, cb)
	b.mu.Lock()
	if rc.IsSuccess() {
		b.waiting[sub] = true
	}
	return rc
}

// send queues a reply frame. Must hold b.mu.
func (b *VirtualBoard) send(reply *bridge.Reply) {
	if b.dropNext > 0 {
		b.dropNext--
		return
	}
	raw, err := frame.Encode(frame.BoardToHost, reply.Encode())
	if err != nil {
		return
	}
	if b.corrupt > 0 {
		b.corrupt--
		raw[len(raw)-2] ^= 0xFF
	}
	b.out = append(b.out, raw...)
}

// Test helper methods

// Requests returns the decoded requests received so far
func (b *VirtualBoard) Requests() []bridge.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bridge.Request(nil), b.requests...)
}

// DropReplies makes the board swallow its next n replies, as if the link
// lost them
func (b *VirtualBoard) DropReplies(n int) {
	b.mu.Lock()
	b.dropNext = n
	b.mu.Unlock()
}

// CorruptReplies breaks the data checksum of the next n replies
func (b *VirtualBoard) CorruptReplies(n int) {
	b.mu.Lock()
	b.corrupt = n
	b.mu.Unlock()
}

// InjectNoise queues raw bytes ahead of the next reply
func (b *VirtualBoard) InjectNoise(noise []byte) {
	b.mu.Lock()
	b.out = append(b.out, noise...)
	b.mu.Unlock()
}
