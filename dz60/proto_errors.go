package dz60

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrTransportUnavailable = errors.New("serial port not available")
	ErrConnectTimeout       = errors.New("no bootloader answered before connect timeout")

	eBadSync       = errors.New("frame does not start with sync bytes 1C DA")
	eFrameTooShort = errors.New("frame too short")
)

// ErrorCode is one nibble of the bootloader status byte. The same code table
// is used for the memory (high nibble) and the protocol (low nibble) category.
type ErrorCode byte

const (
	ERROR_NONE                    ErrorCode = 0x0
	ERROR_ADDRESS                 ErrorCode = 0x1
	ERROR_PROTECTION_VIOLATION    ErrorCode = 0x2
	ERROR_LENGTH_ZERO             ErrorCode = 0x5
	ERROR_LENGTH_TOO_HIGH         ErrorCode = 0x6
	ERROR_UNEXPECTED_COMMAND      ErrorCode = 0x7
	ERROR_UNEXPECTED_SUBSERVICE   ErrorCode = 0x8
	ERROR_BOOTLOADER_RANGE        ErrorCode = 0xA
	ERROR_BOUNDARY_VIOLATION      ErrorCode = 0xB
	ERROR_CHECKSUM                ErrorCode = 0xC
	ERROR_DATA                    ErrorCode = 0xD
	ERROR_TIMEOUT                 ErrorCode = 0xE
	ERROR_FINGERPRINT_NOT_WRITTEN ErrorCode = 0xF
)

func (c ErrorCode) String() string {
	switch c {
	case ERROR_NONE:
		return "no error"
	case ERROR_ADDRESS:
		return "address error"
	case ERROR_PROTECTION_VIOLATION:
		return "protection violation"
	case ERROR_LENGTH_ZERO:
		return "length is zero"
	case ERROR_LENGTH_TOO_HIGH:
		return "length is too high"
	case ERROR_UNEXPECTED_COMMAND:
		return "unexpected command or CAN DLC"
	case ERROR_UNEXPECTED_SUBSERVICE:
		return "unexpected subservice in request service"
	case ERROR_BOOTLOADER_RANGE:
		return "address error (bootloader code range is prohibited to be changed)"
	case ERROR_BOUNDARY_VIOLATION:
		return "boundary violation"
	case ERROR_CHECKSUM:
		return "checksum error"
	case ERROR_DATA:
		return "data error (e.g. wrong filler byte value)"
	case ERROR_TIMEOUT:
		return "end of time (timeout)"
	case ERROR_FINGERPRINT_NOT_WRITTEN:
		return "fingerprint not written"
	}
	return fmt.Sprintf("unknown error %#02x", byte(c))
}

// Known reports whether c is part of the bootloader's code table
func (c ErrorCode) Known() bool {
	switch c {
	case 0x3, 0x4, 0x9:
		return false
	}
	return c <= 0xF
}

// DeviceError is the decoded form of a non-zero response status byte.
type DeviceError struct {
	Op       string
	Status   byte
	Memory   ErrorCode
	Protocol ErrorCode
}

// DecodeStatus splits a response status byte into its memory (high nibble)
// and protocol (low nibble) error codes.
func DecodeStatus(status byte) DeviceError {
	return DeviceError{
		Status:   status,
		Memory:   ErrorCode(status >> 4),
		Protocol: ErrorCode(status & 0x0f),
	}
}

// Failed is true as soon as either nibble carries an error
func (e DeviceError) Failed() bool {
	return e.Memory != ERROR_NONE || e.Protocol != ERROR_NONE
}

func (e *DeviceError) Error() string {
	res := "device error"
	if e.Op != "" {
		res = e.Op + ": " + res
	}
	res += fmt.Sprintf(" %#02x", e.Status)
	if e.Memory != ERROR_NONE {
		res += ", memory error: " + e.Memory.String()
	}
	if e.Protocol != ERROR_NONE {
		res += ", protocol error: " + e.Protocol.String()
	}
	return res
}

// NoResponseError means the device did not send a single byte before the read timeout.
type NoResponseError struct {
	Op string
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("%s: no answer", e.Op)
}

// ShortResponseError means fewer bytes than expected arrived before the read timeout.
type ShortResponseError struct {
	Op   string
	Want int
	Got  []byte
}

func (e *ShortResponseError) Error() string {
	return fmt.Sprintf("%s: too short answer, got %d of %d bytes (% X)", e.Op, len(e.Got), e.Want, e.Got)
}

// UnexpectedAckError is a complete reply with zero status that still is not
// the acknowledgment the command asked for.
type UnexpectedAckError struct {
	Op   string
	Want []byte
	Got  []byte
}

func (e *UnexpectedAckError) Error() string {
	return fmt.Sprintf("%s: unexpected acknowledgment % X, want % X", e.Op, e.Got, e.Want)
}

// ShortWriteError means the transport accepted fewer bytes than the frame holds.
type ShortWriteError struct {
	Op      string
	Written int
	Want    int
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("%s: too less written bytes (%d of %d)", e.Op, e.Written, e.Want)
}

// ChecksumMismatchError reports a command frame whose trailing checksum is wrong.
type ChecksumMismatchError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("frame checksum mismatch: expected %#02x, got %#02x", e.Expected, e.Actual)
}
