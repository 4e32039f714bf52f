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

// Package bridge implements nfctag.Kernel and nfctag.Scheduler on top of a
// byte link to a board that proxies the NFC driver's syscalls. It lets host
// tools drive a real tag-emulation driver through a UART or I2C connection.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/internal/frame"
	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// LinkType names the physical link under a bridge
type LinkType string

const (
	// LinkUART is a serial link.
	LinkUART LinkType = "uart"
	// LinkI2C is an I2C bus link.
	LinkI2C LinkType = "i2c"
	// LinkMock is an in-memory link for testing
	LinkMock LinkType = "mock"
)

// Link is a byte stream to the board.
type Link interface {
	// Read returns (0, nil) when nothing arrived within the link's read
	// timeout.
	io.Reader
	io.Writer

	// Close closes the link. It may be called while a Read is blocked and
	// must make that Read return.
	Close() error

	// Name identifies the port or bus in errors and logs
	Name() string

	// Type returns the link type
	Type() LinkType
}

type key struct {
	driver int
	num    int
}

// Client forwards syscalls over a Link. Callbacks registered through
// Subscribe run inside Yield, on the goroutine that called it.
type Client struct {
	link          Link
	dec           *frame.Decoder
	callbacks     map[key]nfctag.Callback
	buffers       map[key][]byte
	err           error
	pending       []Reply
	readBuf       []byte
	returnTimeout time.Duration
	mu            syncutil.Mutex
	seq           byte
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithReturnTimeout bounds how long a syscall waits for the board's return
// frame.
func WithReturnTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.returnTimeout = d
	}
}

// NewClient creates a client speaking over link.
func NewClient(link Link, opts ...ClientOption) *Client {
	c := &Client{
		link:          link,
		dec:           frame.NewDecoder(link.Name()),
		callbacks:     make(map[key]nfctag.Callback),
		buffers:       make(map[key][]byte),
		readBuf:       make([]byte, frame.MaxFrameLength),
		returnTimeout: nfctag.LinkReturnTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command implements nfctag.Kernel
func (c *Client) Command(driver int, cmd nfctag.CommandNum, arg0, arg1 int) nfctag.ReturnCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.call(&Request{Op: OpCommand, Driver: driver, Num: int(cmd), Arg0: arg0, Arg1: arg1})
}

// Allow implements nfctag.Kernel. The board receives a snapshot of buf; bytes
// it writes back arrive with the upcall that completes the operation.
func (c *Client) Allow(driver int, allow nfctag.AllowNum, buf []byte) nfctag.ReturnCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(buf) > frame.MaxPayloadLength-requestHeaderLen {
		return nfctag.ReturnSize
	}
	rc := c.call(&Request{Op: OpAllow, Driver: driver, Num: int(allow), Data: buf})
	if rc.IsSuccess() {
		if buf == nil {
			delete(c.buffers, key{driver, int(allow)})
		} else {
			c.buffers[key{driver, int(allow)}] = buf
		}
	}
	return rc
}

// Subscribe implements nfctag.Kernel. The callback runs at most once.
func (c *Client) Subscribe(driver int, sub nfctag.SubscribeNum, cb nfctag.Callback) nfctag.ReturnCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	rc := c.call(&Request{Op: OpSubscribe, Driver: driver, Num: int(sub)})
	if rc.IsSuccess() {
		c.callbacks[key{driver, int(sub)}] = cb
	}
	return rc
}

// Yield implements nfctag.Scheduler. It blocks until one upcall with a
// registered callback has been delivered. It returns an error only when the
// link failed for good.
func (c *Client) Yield() error {
	c.mu.Lock()
	for {
		if c.err != nil {
			err := c.err
			c.mu.Unlock()
			return err
		}

		if cb, args, ok := c.takeUpcall(); ok {
			c.mu.Unlock()
			cb(args[0], args[1], args[2])
			return nil
		}

		msg, err := c.readReply(time.Time{})
		if err != nil {
			continue
		}
		if msg.Op == OpReturn {
			nfctag.Debugf("bridge: dropping stray return seq=%d code=%s", msg.Seq, msg.Code)
			continue
		}
		c.pending = append(c.pending, msg)
	}
}

// Err returns the error that took the link down, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the link. Later syscalls fail and Yield returns an error.
func (c *Client) Close() error {
	// Closing the link first unblocks a Yield waiting in Read.
	closeErr := c.link.Close()

	c.mu.Lock()
	if c.err == nil {
		c.err = nfctag.NewLinkClosedError("close", c.link.Name())
	}
	c.mu.Unlock()

	if closeErr != nil {
		return fmt.Errorf("failed to close %s link: %w", c.link.Type(), closeErr)
	}
	return nil
}

// takeUpcall pops the first pending upcall that has a callback, copying its
// data into the matching shared buffer. Upcalls nobody subscribed to are
// dropped. Must hold c.mu.
func (c *Client) takeUpcall() (nfctag.Callback, [3]int, bool) {
	for len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending = c.pending[1:]

		k := key{msg.Driver, msg.Sub}
		cb, ok := c.callbacks[k]
		if !ok {
			nfctag.Debugf("bridge: dropping upcall for driver %#x event %d, no subscriber", msg.Driver, msg.Sub)
			continue
		}
		delete(c.callbacks, k)

		if msg.Allow != 0 {
			if buf, ok := c.buffers[key{msg.Driver, msg.Allow}]; ok {
				copy(buf, msg.Data)
			}
		}
		return cb, msg.Args, true
	}
	return nil, [3]int{}, false
}

// call sends req and waits for its return frame. Upcalls that arrive first
// are queued for Yield. Link failures are reported as return codes: a
// timeout as ReturnNoAck, anything else as ReturnFail. Must hold c.mu.
func (c *Client) call(req *Request) nfctag.ReturnCode {
	if c.err != nil {
		return nfctag.ReturnFail
	}

	c.seq++
	req.Seq = c.seq
	raw, err := frame.Encode(frame.HostToBoard, req.Encode())
	if err != nil {
		nfctag.Debugf("bridge: encode op %#x: %v", req.Op, err)
		return nfctag.ReturnSize
	}

	nfctag.DebugHex("bridge: TX", raw)
	if err := c.write(raw); err != nil {
		return c.linkFailure(err)
	}

	deadline := time.Now().Add(c.returnTimeout)
	for {
		msg, err := c.readReply(deadline)
		if err != nil {
			if nfctag.IsFatal(err) || errors.Is(err, nfctag.ErrLinkTimeout) {
				return c.linkFailure(err)
			}
			continue
		}
		switch {
		case msg.Op == OpUpcall:
			c.pending = append(c.pending, msg)
		case msg.Seq != req.Seq:
			nfctag.Debugf("bridge: dropping return seq=%d, waiting for %d", msg.Seq, req.Seq)
		default:
			return msg.Code
		}
	}
}

func (c *Client) linkFailure(err error) nfctag.ReturnCode {
	nfctag.Debugf("bridge: %v", err)
	if errors.Is(err, nfctag.ErrLinkTimeout) {
		return nfctag.ReturnNoAck
	}
	if nfctag.IsFatal(err) {
		c.err = err
	}
	return nfctag.ReturnFail
}

func (c *Client) write(raw []byte) error {
	n, err := c.link.Write(raw)
	if err != nil {
		return fmt.Errorf("write %d byte frame: %w", len(raw), err)
	}
	if n != len(raw) {
		return nfctag.NewLinkWriteError("write", c.link.Name())
	}
	return nil
}

// readReply returns the next decodable reply. A zero deadline waits forever.
// Corrupted frames come back as retryable errors. Must hold c.mu.
func (c *Client) readReply(deadline time.Time) (Reply, error) {
	for {
		_, payload, ok, err := c.dec.Next()
		if err != nil {
			return Reply{}, err
		}
		if ok {
			msg, err := DecodeReply(payload)
			if err != nil {
				nfctag.Debugf("bridge: %v", err)
				return Reply{}, nfctag.NewFrameCorruptedError("decode", c.link.Name())
			}
			return msg, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return Reply{}, nfctag.NewTimeoutError("read", c.link.Name())
		}

		n, err := c.link.Read(c.readBuf)
		if n > 0 {
			nfctag.DebugHex("bridge: RX", c.readBuf[:n])
			c.dec.Feed(c.readBuf[:n])
		}
		if err != nil {
			if nfctag.IsRetryable(err) {
				continue
			}
			if !nfctag.IsFatal(err) {
				err = nfctag.NewTransportError("read", c.link.Name(), err, nfctag.ErrorTypePermanent)
			}
			c.err = err
			return Reply{}, err
		}
	}
}
