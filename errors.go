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

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ReturnCode is the kernel's immediate acknowledgement of a syscall.
// Non-negative values mean success.
type ReturnCode int

// Return codes reported by the kernel.
const (
	ReturnSuccess     ReturnCode = 0
	ReturnFail        ReturnCode = -1
	ReturnBusy        ReturnCode = -2
	ReturnAlready     ReturnCode = -3
	ReturnOff         ReturnCode = -4
	ReturnReserve     ReturnCode = -5
	ReturnInval       ReturnCode = -6
	ReturnSize        ReturnCode = -7
	ReturnCancel      ReturnCode = -8
	ReturnNoMem       ReturnCode = -9
	ReturnNoSupport   ReturnCode = -10
	ReturnNoDevice    ReturnCode = -11
	ReturnUninstalled ReturnCode = -12
	ReturnNoAck       ReturnCode = -13
)

// Error categories
var (
	// Kernel errors
	ErrOperationFailed = errors.New("operation failed")
	ErrBusy            = errors.New("driver busy")
	ErrAlready         = errors.New("operation already in progress")
	ErrOff             = errors.New("peripheral is off")
	ErrReserve         = errors.New("reservation required")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSize            = errors.New("size out of range")
	ErrCancelled       = errors.New("operation cancelled")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrNotSupported    = errors.New("operation not supported")
	ErrNoDevice        = errors.New("no such device")
	ErrUninstalled     = errors.New("driver not installed")
	ErrNoAck           = errors.New("no acknowledgement")

	// Operation outcome errors
	ErrInvalidBuffer = errors.New("buffer rejected by kernel")

	// Link errors - used by remote kernel bridges
	ErrLinkTimeout      = errors.New("link timeout")
	ErrLinkWrite        = errors.New("link write failed")
	ErrLinkRead         = errors.New("link read failed")
	ErrLinkClosed       = errors.New("link is closed")
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidResponse  = errors.New("invalid response format")
	ErrDataTooLarge     = errors.New("data too large")
)

var returnCodeErrors = map[ReturnCode]error{
	ReturnFail:        ErrOperationFailed,
	ReturnBusy:        ErrBusy,
	ReturnAlready:     ErrAlready,
	ReturnOff:         ErrOff,
	ReturnReserve:     ErrReserve,
	ReturnInval:       ErrInvalidArgument,
	ReturnSize:        ErrSize,
	ReturnCancel:      ErrCancelled,
	ReturnNoMem:       ErrOutOfMemory,
	ReturnNoSupport:   ErrNotSupported,
	ReturnNoDevice:    ErrNoDevice,
	ReturnUninstalled: ErrUninstalled,
	ReturnNoAck:       ErrNoAck,
}

// IsSuccess reports whether the kernel accepted the call.
func (c ReturnCode) IsSuccess() bool {
	return c >= ReturnSuccess
}

// Err returns nil for success codes and the matching sentinel otherwise.
// Unknown negative codes map to ErrOperationFailed.
func (c ReturnCode) Err() error {
	if c.IsSuccess() {
		return nil
	}
	if err, ok := returnCodeErrors[c]; ok {
		return err
	}
	return ErrOperationFailed
}

func (c ReturnCode) String() string {
	if c.IsSuccess() {
		if c == ReturnSuccess {
			return "SUCCESS"
		}
		return "SUCCESS(" + strconv.Itoa(int(c)) + ")"
	}
	names := map[ReturnCode]string{
		ReturnFail:        "FAIL",
		ReturnBusy:        "EBUSY",
		ReturnAlready:     "EALREADY",
		ReturnOff:         "EOFF",
		ReturnReserve:     "ERESERVE",
		ReturnInval:       "EINVAL",
		ReturnSize:        "ESIZE",
		ReturnCancel:      "ECANCEL",
		ReturnNoMem:       "ENOMEM",
		ReturnNoSupport:   "ENOSUPPORT",
		ReturnNoDevice:    "ENODEVICE",
		ReturnUninstalled: "EUNINSTALLED",
		ReturnNoAck:       "ENOACK",
	}
	if n, ok := names[c]; ok {
		return n
	}
	return "ERROR(" + strconv.Itoa(int(c)) + ")"
}

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// KernelError wraps a rejected syscall with the operation that issued it.
type KernelError struct {
	Op   string
	Code ReturnCode
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Op, e.Code, e.Code.Err())
}

func (e *KernelError) Unwrap() error {
	return e.Code.Err()
}

// NewKernelError returns nil when code is a success code.
func NewKernelError(op string, code ReturnCode) error {
	if code.IsSuccess() {
		return nil
	}
	return &KernelError{Op: op, Code: code}
}

// TransportError wraps link-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or bus identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrOutOfMemory),
		errors.Is(err, ErrBusy),
		errors.Is(err, ErrNoAck),
		errors.Is(err, ErrLinkTimeout),
		errors.Is(err, ErrLinkRead),
		errors.Is(err, ErrLinkWrite),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the driver or the link to it is
// gone and no further operation can succeed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	switch {
	case errors.Is(err, ErrLinkClosed),
		errors.Is(err, ErrNoDevice),
		errors.Is(err, ErrUninstalled),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for link operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrLinkTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates a frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewChecksumMismatchError creates a checksum mismatch error (transient)
func NewChecksumMismatchError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrChecksumMismatch, ErrorTypeTransient)
}

// NewDataTooLargeError creates a data too large error (permanent)
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewLinkWriteError creates a write error (transient)
func NewLinkWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrLinkWrite, ErrorTypeTransient)
}

// NewLinkReadError creates a read error (transient)
func NewLinkReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrLinkRead, ErrorTypeTransient)
}

// NewLinkClosedError creates a closed-link error (permanent)
func NewLinkClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrLinkClosed, ErrorTypePermanent)
}

// NewInvalidResponseError creates an invalid response error (permanent)
func NewInvalidResponseError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrInvalidResponse, ErrorTypePermanent)
}
