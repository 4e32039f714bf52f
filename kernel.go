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

// Callback receives one upcall from the kernel. The meaning of the arguments
// depends on the event; the receive event reports the number of bytes written
// into the shared buffer in arg1.
type Callback func(arg1, arg2, arg3 int)

// Kernel is the syscall surface of the NFC driver. It can be implemented by a
// real syscall shim, by a bridge to a remote board, or by a simulator.
type Kernel interface {
	// Command issues a driver command and returns the immediate acknowledgement
	Command(driver int, cmd CommandNum, arg0, arg1 int) ReturnCode

	// Allow shares buf with the driver on the given channel. A nil buf revokes
	// the previous share.
	Allow(driver int, allow AllowNum, buf []byte) ReturnCode

	// Subscribe registers cb for the next occurrence of the given event,
	// replacing any earlier registration for it
	Subscribe(driver int, sub SubscribeNum, cb Callback) ReturnCode
}

// Scheduler is the cooperative idle-wait primitive. Yield suspends the caller
// until at least one pending callback has run.
type Scheduler interface {
	// Yield returns an error only when the scheduler can no longer deliver
	// callbacks (a remote kernel whose link went away).
	Yield() error
}

// YieldFor yields until cond reports true. cond is checked before the first
// yield, so a callback that already ran does not cost a yield.
func YieldFor(s Scheduler, cond func() bool) error {
	for !cond() {
		if err := s.Yield(); err != nil {
			return err
		}
	}
	return nil
}
