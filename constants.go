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

package nfctag

import "strconv"

// DriverNum identifies the NFC tag driver to the kernel. Every syscall made by
// this package is scoped to it.
const DriverNum = 0x30003

// ReceiveBufferSize is the fixed size of the buffer shared for reception.
const ReceiveBufferSize = 256

// CommandNum selects a driver command.
type CommandNum int

// Driver commands.
const (
	CommandTransmit      CommandNum = 1
	CommandReceive       CommandNum = 2
	CommandEmulate       CommandNum = 3
	CommandConfigure     CommandNum = 4
	CommandFrameDelayMax CommandNum = 5
)

// SubscribeNum selects the driver event a callback is registered for.
type SubscribeNum int

// Driver events.
const (
	SubscribeTransmit SubscribeNum = 1
	SubscribeReceive  SubscribeNum = 2
	SubscribeSelect   SubscribeNum = 3
)

// AllowNum selects the channel a buffer is shared on.
type AllowNum int

// Shared buffer channels.
const (
	AllowTransmit AllowNum = 1
	AllowReceive  AllowNum = 2
)

// TagType is the emulated tag type passed to the configure command.
type TagType uint8

// Tag types known to the driver. Other values are passed through untouched.
const (
	TagType1 TagType = 1
	TagType2 TagType = 2
	TagType3 TagType = 3
	TagType4 TagType = 4
)

func (c CommandNum) String() string {
	switch c {
	case CommandTransmit:
		return "transmit"
	case CommandReceive:
		return "receive"
	case CommandEmulate:
		return "emulate"
	case CommandConfigure:
		return "configure"
	case CommandFrameDelayMax:
		return "framedelaymax"
	default:
		return "command(" + strconv.Itoa(int(c)) + ")"
	}
}

func (s SubscribeNum) String() string {
	switch s {
	case SubscribeTransmit:
		return "transmit"
	case SubscribeReceive:
		return "receive"
	case SubscribeSelect:
		return "select"
	default:
		return "subscribe(" + strconv.Itoa(int(s)) + ")"
	}
}

func (a AllowNum) String() string {
	switch a {
	case AllowTransmit:
		return "transmit"
	case AllowReceive:
		return "receive"
	default:
		return "allow(" + strconv.Itoa(int(a)) + ")"
	}
}
