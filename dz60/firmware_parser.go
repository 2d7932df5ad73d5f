package dz60

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sigurn/crc16"
)

const MEMORY_SIZE = 0x10000

// MemoryImage is the flat 64k address space of the target as described by an
// S19 file. Addresses not covered by any record are 0xFF and not Used.
type MemoryImage struct {
	Data [MEMORY_SIZE]byte
	Used [MEMORY_SIZE]bool
}

func NewMemoryImage() *MemoryImage {
	m := &MemoryImage{}
	for i := range m.Data {
		m.Data[i] = 0xff
	}
	return m
}

// UsedCount is the number of defined bytes
func (m *MemoryImage) UsedCount() (n int) {
	for _, u := range m.Used {
		if u {
			n++
		}
	}
	return
}

// CRC is the CRC-16/CCITT-FALSE of the whole image including filler bytes.
func (m *MemoryImage) CRC() uint16 {
	return crc16.Checksum(m.Data[:], crc16.MakeTable(crc16.CRC16_CCITT_FALSE))
}

func (m *MemoryImage) String() string {
	return fmt.Sprintf("Memory image: %d bytes used, CRC %#04x", m.UsedCount(), m.CRC())
}

// MalformedRecordError is returned for a line that is not a well formed S-record.
type MalformedRecordError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed S-record in line %d (%q): %s", e.Line, e.Text, e.Reason)
}

type parseConfig struct {
	verifyChecksum bool
}

type ParseOption func(*parseConfig)

// WithChecksumValidation turns on the verification of the trailing record
// checksum. It is off by default: the field is read but not checked.
func WithChecksumValidation(verify bool) ParseOption {
	return func(c *parseConfig) {
		c.verifyChecksum = verify
	}
}

// ParseSRecordFile reads a whole S19 file into a MemoryImage
func ParseSRecordFile(path string, opts ...ParseOption) (m *MemoryImage, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading S19 file")
	}
	defer f.Close()
	return ParseSRecord(f, opts...)
}

// ParseSRecord decodes the S1 records of r. All other record types are skipped.
func ParseSRecord(r io.Reader, opts ...ParseOption) (m *MemoryImage, err error) {
	cfg := parseConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	m = NewMemoryImage()
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if len(line) == 0 {
			continue
		}
		if err = m.decodeRecord(line, cfg.verifyChecksum); err != nil {
			if mre, ok := err.(*MalformedRecordError); ok {
				mre.Line = lineno
			}
			return nil, err
		}
	}
	if err = sc.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading S19 input")
	}
	return m, nil
}

func (m *MemoryImage) decodeRecord(line string, verify bool) error {
	malformed := func(reason string) error {
		return &MalformedRecordError{Text: line, Reason: reason}
	}

	if len(line) < 4 {
		return malformed("record too short")
	}
	if line[0] != 'S' {
		return malformed("record does not start with 'S'")
	}
	if line[:2] != "S1" {
		return nil
	}

	raw, err := parseHexBytes(line[2:])
	if err != nil {
		return malformed(err.Error())
	}
	// count covers address, data and checksum
	count := int(raw[0])
	if count < 3 {
		return malformed(fmt.Sprintf("byte count %d too small for an S1 record", count))
	}
	if len(raw)-1 != count {
		return malformed(fmt.Sprintf("byte count %d does not match record length %d", count, len(raw)-1))
	}

	if verify {
		want := ^Checksum(raw[:len(raw)-1])
		if got := raw[len(raw)-1]; got != want {
			return malformed(fmt.Sprintf("checksum %#02x, expected %#02x", got, want))
		}
	}

	addr := int(raw[1])<<8 | int(raw[2])
	data := raw[3 : len(raw)-1]
	if addr+len(data) > MEMORY_SIZE {
		return malformed(fmt.Sprintf("record at %#04x with %d bytes runs past 0xffff", addr, len(data)))
	}
	for _, b := range data {
		m.Data[addr] = b
		m.Used[addr] = true
		addr++
	}
	return nil
}

func parseHexBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, errors.New("odd number of hex digits")
	}
	res := make([]byte, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		b, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			return nil, errors.Errorf("invalid hex byte %q", s[i:i+2])
		}
		res = append(res, byte(b))
	}
	return res, nil
}
