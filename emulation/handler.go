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

package emulation

// Handler produces the tag's side of an exchange with a reader
type Handler interface {
	// Selected is called each time a reader selects the tag, before the
	// first frame of the new exchange.
	Selected()

	// Exchange returns the reply to frame. A nil reply sends nothing. done
	// ends the exchange and the session waits for the next selection. frame
	// is only valid during the call.
	Exchange(frame []byte) (reply []byte, done bool)
}

// HandlerFunc adapts a function to Handler. Selection is ignored.
type HandlerFunc func(frame []byte) ([]byte, bool)

// Selected implements Handler
func (HandlerFunc) Selected() {}

// Exchange implements Handler
func (f HandlerFunc) Exchange(frame []byte) ([]byte, bool) {
	return f(frame)
}

// Echo replies to every frame with the frame itself
var Echo = HandlerFunc(func(frame []byte) ([]byte, bool) {
	return append([]byte(nil), frame...), false
})
