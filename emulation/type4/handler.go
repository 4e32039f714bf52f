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

// Package type4 emulates an NFC Forum Type 4 Tag serving an NDEF message.
// It speaks the ISO 14443-4 block protocol and the command set of the NDEF
// tag application on top of it.
package type4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-nfctag/internal/syncutil"
	"github.com/hsanjuan/go-ndef"
)

// MaxCapacity is the largest NDEF file the capability container can describe
const MaxCapacity = 0x7FFF

// Largest C-APDU and R-APDU data fields announced to the reader. Both keep an
// I-block with its status word inside one 256 byte frame.
const (
	maxLe = 0xF6
	maxLc = 0xF6
)

// maxAPDU is the longest short C-APDU: header, Lc, data and Le.
const maxAPDU = 4 + 1 + maxLc + 1

var (
	// ErrEmptyMessage is returned when the NDEF file holds no message
	ErrEmptyMessage = errors.New("type4: NDEF file is empty")
	// ErrTooLarge is returned when a message does not fit the NDEF file
	ErrTooLarge = errors.New("type4: NDEF message exceeds capacity")
)

// NDEF tag application identifier
var ndefAID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

// Answer to RATS: FSCI 8 (256 byte frames), default timings, no NAD or CID
var ats = []byte{0x05, 0x78, 0x80, 0x70, 0x00}

const (
	ccFileID   = 0xE103
	ndefFileID = 0xE104
)

type fileSel int

const (
	fileNone fileSel = iota
	fileCC
	fileNDEF
)

// Option configures a Handler
type Option func(*Handler)

// WithWritable lets the reader rewrite the NDEF message, up to capacity
// bytes.
func WithWritable(capacity int) Option {
	return func(h *Handler) {
		h.writable = true
		h.capacity = capacity
	}
}

// Handler implements emulation.Handler for a Type 4 Tag
type Handler struct {
	cc        []byte
	file      []byte // NLEN followed by the message
	lastReply []byte
	chain     []byte
	capacity  int
	selected  fileSel
	mu        syncutil.Mutex
	appActive bool
	writable  bool
}

// New creates a handler serving msg
func New(msg *ndef.Message, opts ...Option) (*Handler, error) {
	data, err := msg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NDEF message: %w", err)
	}

	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	if h.capacity < len(data) {
		if h.writable {
			return nil, fmt.Errorf("%w: %d bytes, capacity %d", ErrTooLarge, len(data), h.capacity)
		}
		h.capacity = len(data)
	}
	if h.capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, h.capacity, MaxCapacity)
	}

	h.file = make([]byte, 2+h.capacity)
	binary.BigEndian.PutUint16(h.file, uint16(len(data))) //nolint:gosec // bounded by MaxCapacity
	copy(h.file[2:], data)
	h.cc = h.capabilityContainer()
	return h, nil
}

// NewText creates a handler serving a single text record
func NewText(text, language string, opts ...Option) (*Handler, error) {
	return New(newMessage(ndef.NewTextRecord(text, language)), opts...)
}

// NewURI creates a handler serving a single URI record
func NewURI(uri string, opts ...Option) (*Handler, error) {
	return New(newMessage(ndef.NewURIRecord(uri)), opts...)
}

func newMessage(records ...*ndef.Record) *ndef.Message {
	for _, rec := range records {
		rec.SetMB(false)
		rec.SetME(false)
	}
	if len(records) > 0 {
		records[0].SetMB(true)
		records[len(records)-1].SetME(true)
	}
	return ndef.NewMessageFromRecords(records...)
}

// capabilityContainer builds the read-only CC file
func (h *Handler) capabilityContainer() []byte {
	writeAccess := byte(0xFF)
	if h.writable {
		writeAccess = 0x00
	}
	cc := []byte{
		0x00, 0x0F,  // CCLEN
		0x20,        // mapping version 2.0
		0x00, maxLe, // MLe
		0x00, maxLc, // MLc
		0x04, 0x06,  // NDEF file control TLV
		0xE1, 0x04,  // file identifier
		0x00, 0x00,  // maximum NDEF file size
		0x00,        // read access
		writeAccess, // write access
	}
	binary.BigEndian.PutUint16(cc[11:], uint16(len(h.file))) //nolint:gosec // bounded by MaxCapacity
	return cc
}

// Message returns the NDEF message currently in the file
func (h *Handler) Message() (*ndef.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	nlen := int(binary.BigEndian.Uint16(h.file))
	if nlen == 0 {
		return nil, ErrEmptyMessage
	}
	if nlen > len(h.file)-2 {
		return nil, fmt.Errorf("%w: NLEN %d", ErrTooLarge, nlen)
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(h.file[2 : 2+nlen]); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
	}
	return msg, nil
}

// Selected implements emulation.Handler
func (h *Handler) Selected() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.appActive = false
	h.selected = fileNone
	h.lastReply = nil
	h.chain = nil
}

// Exchange implements emulation.Handler
func (h *Handler) Exchange(frame []byte) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(frame) == 0 {
		return nil, false
	}

	pcb := frame[0]
	switch {
	case pcb == 0xE0: // RATS
		return append([]byte(nil), ats...), false

	case pcb&0xE2 == 0x02: // I-block
		return h.iBlock(pcb, frame[1:]), false

	case pcb&0xE6 == 0xA2: // R-block
		if h.lastReply == nil {
			return nil, false
		}
		return append([]byte(nil), h.lastReply...), false

	case pcb&0xF7 == 0xC2: // S(DESELECT)
		return []byte{pcb}, true

	default:
		return nil, false
	}
}

func (h *Handler) iBlock(pcb byte, inf []byte) []byte {
	blockNum := pcb & 0x01

	var rapdu []byte
	switch {
	case len(h.chain)+len(inf) > maxAPDU:
		h.chain = nil
		rapdu = swWrongLength
	case pcb&0x10 != 0: // chaining
		h.chain = append(h.chain, inf...)
		return []byte{0xA2 | blockNum}
	case h.chain != nil:
		apdu := append(h.chain, inf...)
		h.chain = nil
		rapdu = h.processAPDU(apdu)
	default:
		rapdu = h.processAPDU(inf)
	}

	reply := append([]byte{0x02 | blockNum}, rapdu...)
	h.lastReply = reply
	return append([]byte(nil), reply...)
}

// Status words
var (
	swOK               = []byte{0x90, 0x00}
	swWrongLength      = []byte{0x67, 0x00}
	swSecurity         = []byte{0x69, 0x82}
	swNoFileSelected   = []byte{0x69, 0x86}
	swWrongParams      = []byte{0x6A, 0x86}
	swFileNotFound     = []byte{0x6A, 0x82}
	swWrongOffset      = []byte{0x6B, 0x00}
	swInsNotSupported  = []byte{0x6D, 0x00}
	swClassUnsupported = []byte{0x6E, 0x00}
)

const (
	insSelect       = 0xA4
	insReadBinary   = 0xB0
	insUpdateBinary = 0xD6
)

func (h *Handler) processAPDU(apdu []byte) []byte {
	if len(apdu) < 4 {
		return swWrongLength
	}
	if apdu[0] != 0x00 {
		return swClassUnsupported
	}

	switch apdu[1] {
	case insSelect:
		return h.selectFile(apdu)
	case insReadBinary:
		return h.readBinary(apdu)
	case insUpdateBinary:
		return h.updateBinary(apdu)
	default:
		return swInsNotSupported
	}
}

// commandData returns the Lc-delimited data field of a case 3 or 4 APDU
func commandData(apdu []byte) ([]byte, bool) {
	if len(apdu) < 5 {
		return nil, false
	}
	lc := int(apdu[4])
	if len(apdu) < 5+lc {
		return nil, false
	}
	return apdu[5 : 5+lc], true
}

func (h *Handler) selectFile(apdu []byte) []byte {
	data, ok := commandData(apdu)
	if !ok {
		return swWrongLength
	}

	switch apdu[2] {
	case 0x04: // by name
		h.selected = fileNone
		h.appActive = bytes.Equal(data, ndefAID)
		if !h.appActive {
			return swFileNotFound
		}
		return swOK

	case 0x00: // by file identifier
		if !h.appActive {
			return swFileNotFound
		}
		if len(data) != 2 {
			return swWrongLength
		}
		switch binary.BigEndian.Uint16(data) {
		case ccFileID:
			h.selected = fileCC
		case ndefFileID:
			h.selected = fileNDEF
		default:
			return swFileNotFound
		}
		return swOK

	default:
		return swWrongParams
	}
}

func (h *Handler) current() []byte {
	switch h.selected {
	case fileCC:
		return h.cc
	case fileNDEF:
		return h.file
	case fileNone:
	}
	return nil
}

func (h *Handler) readBinary(apdu []byte) []byte {
	file := h.current()
	if file == nil {
		return swNoFileSelected
	}

	offset := int(binary.BigEndian.Uint16(apdu[2:4]))
	if offset > len(file) {
		return swWrongOffset
	}

	le := maxLe
	if len(apdu) >= 5 && apdu[4] != 0 {
		le = min(int(apdu[4]), maxLe)
	}
	end := min(offset+le, len(file))

	out := make([]byte, 0, end-offset+2)
	out = append(out, file[offset:end]...)
	return append(out, swOK...)
}

func (h *Handler) updateBinary(apdu []byte) []byte {
	if h.selected == fileNone {
		return swNoFileSelected
	}
	if h.selected != fileNDEF || !h.writable {
		return swSecurity
	}

	data, ok := commandData(apdu)
	if !ok {
		return swWrongLength
	}
	offset := int(binary.BigEndian.Uint16(apdu[2:4]))
	if offset+len(data) > len(h.file) {
		return swWrongOffset
	}
	copy(h.file[offset:], data)
	return swOK
}
