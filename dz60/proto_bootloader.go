package dz60

import (
	"fmt"

	"github.com/pkg/errors"
)

/*
Serial bootloader frame:
guint8		sync0 (0x1C);
guint8		sync1 (0xDA);
guint8		dest;
guint8		src;
guint8		cmd;
guint8		payload[];
guint8		checksum; // low byte of sum(dest .. payload[n-1])

Reply to connect:	1C DA tool ecu 00
Reply to commands:	1C DA tool ecu 01 status

Legacy program row checksum: low byte of sum(addrHi, addrLo, len, data)
*/

const (
	SYNC0 byte = 0x1C
	SYNC1 byte = 0xDA

	RESPONSE_LEN         = 6
	CONNECT_RESPONSE_LEN = 4 // after SYNC0 was seen

	RESPONSE_CMD byte = 0x01

	MAX_ROW_LEN = 8

	DEFAULT_TOOL_ID byte = 0xDE // diag equipment
	DEFAULT_ECU_ID  byte = 0x0E
)

type Command byte

const (
	COMMAND_CONNECT           Command = 0x00
	COMMAND_CONTROL           Command = 0x01
	COMMAND_ERASE             Command = 0x02
	COMMAND_READ              Command = 0x03
	COMMAND_PROGRAM           Command = 0x04
	COMMAND_WRITE_FINGERPRINT Command = 0x06
	COMMAND_SET_ID            Command = 0x07
)

func (c Command) String() string {
	switch c {
	case COMMAND_CONNECT:
		return "CONNECT"
	case COMMAND_CONTROL:
		return "CONTROL"
	case COMMAND_ERASE:
		return "ERASE"
	case COMMAND_READ:
		return "READ"
	case COMMAND_PROGRAM:
		return "PROGRAM"
	case COMMAND_WRITE_FINGERPRINT:
		return "WRITE FINGERPRINT"
	case COMMAND_SET_ID:
		return "SET ID"
	}
	return fmt.Sprintf("Unknown command %02x", byte(c))
}

type ControlSubCommand byte

const (
	CONTROL_SUB_RESET   ControlSubCommand = 0x11
	CONTROL_SUB_SCAN    ControlSubCommand = 0x22
	CONTROL_SUB_RUN_APP ControlSubCommand = 0x52
)

// Checksum is the low byte of the plain sum of b
func Checksum(b []byte) (cs byte) {
	for _, c := range b {
		cs += c
	}
	return cs
}

// RowChecksum is the checksum older tools appended to a program row: it
// covers address, length and data of the payload but not the frame header
// and not the timeout byte.
func RowChecksum(payload []byte) byte {
	if len(payload) < 4 {
		return Checksum(payload)
	}
	return Checksum(payload[:3]) + Checksum(payload[4:])
}

// Frame is a command sent from the tool to the ECU. When NoChecksum is set
// the trailing checksum byte is left out, as older tools did for everything
// except program frames. RowChecksum selects the older program row checksum.
type Frame struct {
	Dest        byte
	Src         byte
	Cmd         Command
	Payload     []byte
	NoChecksum  bool
	RowChecksum bool
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame cmd: %s, dest: %#02x, src: %#02x, payload: % X", f.Cmd, f.Dest, f.Src, f.Payload)
}

func (f *Frame) ToWire() (payload []byte, err error) {
	payload = make([]byte, 0, len(f.Payload)+6)
	payload = append(payload, SYNC0, SYNC1, f.Dest, f.Src, byte(f.Cmd))
	payload = append(payload, f.Payload...)
	switch {
	case f.NoChecksum:
	case f.RowChecksum:
		payload = append(payload, RowChecksum(f.Payload))
	default:
		payload = append(payload, Checksum(payload[2:]))
	}
	return payload, nil
}

// FromWire parses a checksummed command frame
func (f *Frame) FromWire(payload []byte) (err error) {
	if len(payload) < 6 {
		return errors.Wrapf(eFrameTooShort, "%d bytes", len(payload))
	}
	if payload[0] != SYNC0 || payload[1] != SYNC1 {
		return eBadSync
	}
	body := payload[2 : len(payload)-1]
	if cs := Checksum(body); cs != payload[len(payload)-1] {
		return &ChecksumMismatchError{Expected: cs, Actual: payload[len(payload)-1]}
	}
	f.Dest = body[0]
	f.Src = body[1]
	f.Cmd = Command(body[2])
	f.Payload = append([]byte(nil), body[3:]...)
	f.NoChecksum = false
	f.RowChecksum = false
	return nil
}

// Response is the fixed size reply of the bootloader to erase, program and
// fingerprint commands.
type Response struct {
	Dest   byte
	Src    byte
	Cmd    byte
	Status byte
}

func (r *Response) String() string {
	return fmt.Sprintf("Response dest: %#02x, src: %#02x, cmd: %#02x, status: %#02x", r.Dest, r.Src, r.Cmd, r.Status)
}

func (r *Response) FromWire(payload []byte) (err error) {
	if len(payload) != RESPONSE_LEN {
		return errors.Wrapf(eFrameTooShort, "response needs %d bytes, got %d", RESPONSE_LEN, len(payload))
	}
	if payload[0] != SYNC0 || payload[1] != SYNC1 {
		return eBadSync
	}
	r.Dest = payload[2]
	r.Src = payload[3]
	r.Cmd = payload[4]
	r.Status = payload[5]
	return nil
}

func (r *Response) ToWire() (payload []byte, err error) {
	return []byte{SYNC0, SYNC1, r.Dest, r.Src, r.Cmd, r.Status}, nil
}

// From reports whether r is addressed to toolID and comes from ecuID
func (r *Response) From(toolID, ecuID byte) bool {
	return r.Dest == toolID && r.Src == ecuID && r.Cmd == RESPONSE_CMD
}

// AckResponse is the positive reply of the ECU to the tool
func AckResponse(toolID, ecuID byte) []byte {
	b, _ := (&Response{Dest: toolID, Src: ecuID, Cmd: RESPONSE_CMD}).ToWire()
	return b
}

// ConnectAck is what follows SYNC0 when the bootloader accepts a connect request
func ConnectAck(toolID, ecuID byte) []byte {
	return []byte{SYNC1, toolID, ecuID, 0x00}
}

// ProgramPayload lays out a program row: address (big endian), length,
// timeout (not supported by the bootloader, always 0) and the data.
func ProgramPayload(addr uint16, data []byte) []byte {
	p := make([]byte, 0, len(data)+4)
	p = append(p, byte(addr>>8), byte(addr&0x00ff), byte(len(data)), 0x00)
	return append(p, data...)
}
