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

// Package emulation runs a tag-emulation loop on top of nfctag.Tag: wait
// for a reader to select the tag, then answer its frames through a Handler
// until the reader goes away.
package emulation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ZaparooProject/go-nfctag"
	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
)

// Stats is a snapshot of session counters
type Stats struct {
	Selections     int64 // Times a reader selected the tag
	Exchanges      int64 // Frames answered
	OutOfMemory    int64 // Receives abandoned after out-of-memory retries
	ReceiveErrors  int64 // Receives that failed otherwise
	TransmitErrors int64 // Replies the driver did not send
	Recoveries     int64 // Recovery attempts after a failed wait
}

// Session serves one Handler on one Tag. Run blocks; the accessors may be
// called from other goroutines.
type Session struct {
	handler       Handler
	config        *Config
	recoverer     Recoverer
	onStateChange func(State)
	mu            syncutil.RWMutex
	state         State
	running       atomic.Bool

	selections     atomic.Int64
	exchanges      atomic.Int64
	outOfMemory    atomic.Int64
	receiveErrors  atomic.Int64
	transmitErrors atomic.Int64
	recoveries     atomic.Int64
}

// NewSession creates a session emulating a tag on tag, answered by handler
func NewSession(tag *nfctag.Tag, handler Handler, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	return &Session{
		handler:   handler,
		config:    config,
		recoverer: NewDefaultRecoverer(tag, config, nil),
	}
}

// SetRecoverer replaces the default recoverer, which only reapplies the
// configuration
func (s *Session) SetRecoverer(r Recoverer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoverer = r
}

// SetOnStateChange sets a callback run on every state transition. It runs
// on the goroutine calling Run.
func (s *Session) SetOnStateChange(callback func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = callback
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() Stats {
	return Stats{
		Selections:     s.selections.Load(),
		Exchanges:      s.exchanges.Load(),
		OutOfMemory:    s.outOfMemory.Load(),
		ReceiveErrors:  s.receiveErrors.Load(),
		TransmitErrors: s.transmitErrors.Load(),
		Recoveries:     s.recoveries.Load(),
	}
}

// Tag returns the tag the session currently drives
func (s *Session) Tag() *nfctag.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recoverer.Tag()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	cb := s.onStateChange
	s.mu.Unlock()

	nfctag.Debugf("emulation: %s", state)
	if cb != nil {
		cb(state)
	}
}

// Run configures the driver, enables emulation and serves readers until ctx
// is done or waiting for a reader keeps failing. ctx is checked between
// driver operations: an operation the driver accepted is always waited for.
// Emulation is disabled before Run returns.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer s.running.Store(false)

	s.setState(StateIdle)
	if err := s.config.apply(s.Tag()); err != nil {
		s.setState(StateStopped)
		return err
	}
	defer func() {
		if !s.Tag().DisableEmulation() {
			nfctag.Debugln("emulation: disable failed")
		}
		s.setState(StateStopped)
	}()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(StateWaitingSelect)
		if !s.Tag().Selected() {
			if err := ctx.Err(); err != nil {
				return err
			}
			failures++
			if s.config.MaxSelectFailures > 0 && failures >= s.config.MaxSelectFailures {
				return fmt.Errorf("%w after %d attempts", ErrSelectFailed, failures)
			}
			if err := s.recover(ctx); err != nil {
				return err
			}
			continue
		}

		failures = 0
		s.selections.Add(1)
		s.setState(StateSelected)
		s.handler.Selected()

		if err := s.exchange(ctx); err != nil {
			return err
		}
	}
}

func (s *Session) recover(ctx context.Context) error {
	s.setState(StateRecovering)
	s.recoveries.Add(1)

	s.mu.RLock()
	r := s.recoverer
	s.mu.RUnlock()

	if err := r.AttemptRecovery(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrRecoveryFailed, err)
	}
	return nil
}

// exchange answers frames until the reader stops talking or the handler ends
// the exchange. It only returns an error when ctx is done.
func (s *Session) exchange(ctx context.Context) error {
	var buf [nfctag.ReceiveBufferSize]byte
	tag := s.Tag()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, status := tag.ReceiveWithRetry(ctx, &buf)
		switch status {
		case nfctag.StatusSuccess:
		case nfctag.StatusOutOfMemory:
			s.outOfMemory.Add(1)
			return nil
		case nfctag.StatusError, nfctag.StatusInvalidBuffer:
			s.receiveErrors.Add(1)
			return nil
		}

		s.setState(StateExchanging)
		reply, done := s.handler.Exchange(buf[:n])
		if len(reply) > 0 {
			if status := tag.Transmit(reply, len(reply)); status != nfctag.StatusSuccess {
				nfctag.Debugf("emulation: transmit failed: %s", status)
				s.transmitErrors.Add(1)
				return nil
			}
		}
		s.exchanges.Add(1)

		if done {
			return nil
		}
	}
}
