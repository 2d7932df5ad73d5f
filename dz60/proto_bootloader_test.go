package dz60

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{"empty", []byte{}, 0x00},
		{"single byte", []byte{0x42}, 0x42},
		{"connect frame body", []byte{0x0E, 0xDE, 0x00}, 0xEC},
		{"overflow", []byte{0xFF, 0xFF, 0x03}, 0x01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.expected {
				t.Errorf("Checksum() = %#02x, want %#02x", got, tt.expected)
			}
		})
	}
}

func TestFrameToWire(t *testing.T) {
	f := &Frame{Dest: 0x0E, Src: 0xDE, Cmd: COMMAND_ERASE, Payload: []byte{0x19, 0x00}}
	got, err := f.ToWire()
	if err != nil {
		t.Fatalf("ToWire() error = %v", err)
	}
	want := []byte{0x1C, 0xDA, 0x0E, 0xDE, 0x02, 0x19, 0x00, 0x07}
	if !bytes.Equal(got, want) {
		t.Errorf("ToWire() = % X, want % X", got, want)
	}

	f.NoChecksum = true
	got, _ = f.ToWire()
	if !bytes.Equal(got, want[:len(want)-1]) {
		t.Errorf("ToWire() without checksum = % X", got)
	}
}

func TestRowChecksum(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    byte
	}{
		{"single byte", ProgramPayload(0x1900, []byte{0xAA}), 0xC4},
		{"full row", ProgramPayload(0x2000, []byte{1, 2, 3, 4, 5, 6, 7, 8}), 0x4C},
		{"timeout byte ignored", []byte{0x19, 0x00, 0x01, 0xFF, 0xAA}, 0xC4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RowChecksum(tt.payload); got != tt.want {
				t.Errorf("RowChecksum() = %#02x, want %#02x", got, tt.want)
			}
		})
	}

	f := &Frame{Dest: 0x0E, Src: 0xDE, Cmd: COMMAND_PROGRAM, Payload: ProgramPayload(0x1900, []byte{0xAA}), RowChecksum: true}
	got, _ := f.ToWire()
	want := []byte{0x1C, 0xDA, 0x0E, 0xDE, 0x04, 0x19, 0x00, 0x01, 0x00, 0xAA, 0xC4}
	if !bytes.Equal(got, want) {
		t.Errorf("ToWire() = % X, want % X", got, want)
	}
}

func TestResponseFrom(t *testing.T) {
	var r Response
	if err := r.FromWire(AckResponse(0xDE, 0x0E)); err != nil {
		t.Fatal(err)
	}
	if !r.From(0xDE, 0x0E) || r.From(0x0E, 0xDE) {
		t.Errorf("From() wrong for %v", &r)
	}
	if err := r.FromWire([]byte{0x1C, 0x00, 0xDE, 0x0E, 0x01, 0x00}); err != eBadSync {
		t.Errorf("FromWire() error = %v, want %v", err, eBadSync)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	frames := []*Frame{
		{Dest: 0x0E, Src: 0xDE, Cmd: COMMAND_CONNECT},
		{Dest: 0x0E, Src: 0xDE, Cmd: COMMAND_CONTROL, Payload: []byte{byte(CONTROL_SUB_RUN_APP)}},
		{Dest: 0x01, Src: 0x02, Cmd: COMMAND_PROGRAM, Payload: ProgramPayload(0x2000, []byte{1, 2, 3, 4, 5, 6, 7, 8})},
		{Dest: 0xFF, Src: 0xFF, Cmd: COMMAND_WRITE_FINGERPRINT, Payload: []byte{0x99, 0x99, 0x99, 0x99, 0x99, 0x99}},
	}
	for _, f := range frames {
		t.Run(f.Cmd.String(), func(t *testing.T) {
			b, err := f.ToWire()
			if err != nil {
				t.Fatalf("ToWire() error = %v", err)
			}
			var got Frame
			if err := got.FromWire(b); err != nil {
				t.Fatalf("FromWire() error = %v", err)
			}
			if got.Dest != f.Dest || got.Src != f.Src || got.Cmd != f.Cmd || !bytes.Equal(got.Payload, f.Payload) {
				t.Errorf("FromWire() = %v, want %v", &got, f)
			}

			for i := 5; i < len(b)-1; i++ {
				corrupt := append([]byte(nil), b...)
				corrupt[i] ^= 0x01
				var e *ChecksumMismatchError
				if err := new(Frame).FromWire(corrupt); !errors.As(err, &e) {
					t.Errorf("payload byte %d corrupted: FromWire() error = %v, want checksum mismatch", i, err)
				}
			}
		})
	}
}

func TestFrameFromWireErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", []byte{0x1C, 0xDA, 0x0E}, eFrameTooShort},
		{"bad sync", []byte{0x1C, 0xDB, 0x0E, 0xDE, 0x00, 0xEC}, eBadSync},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := new(Frame).FromWire(tt.data)
			if errors.Cause(err) != tt.want {
				t.Errorf("FromWire() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResponseFromWire(t *testing.T) {
	var r Response
	if err := r.FromWire([]byte{0x1C, 0xDA, 0xDE, 0x0E, 0x01, 0x1C}); err != nil {
		t.Fatalf("FromWire() error = %v", err)
	}
	if r.Dest != 0xDE || r.Src != 0x0E || r.Cmd != 0x01 || r.Status != 0x1C {
		t.Errorf("FromWire() = %v", &r)
	}
	b, _ := r.ToWire()
	if !bytes.Equal(b, []byte{0x1C, 0xDA, 0xDE, 0x0E, 0x01, 0x1C}) {
		t.Errorf("ToWire() = % X", b)
	}

	if err := r.FromWire([]byte{0x1C, 0xDA, 0xDE}); errors.Cause(err) != eFrameTooShort {
		t.Errorf("FromWire() short error = %v", err)
	}
}

func TestProgramPayload(t *testing.T) {
	got := ProgramPayload(0x1234, []byte{0xAA, 0xBB})
	want := []byte{0x12, 0x34, 0x02, 0x00, 0xAA, 0xBB}
	if !bytes.Equal(got, want) {
		t.Errorf("ProgramPayload() = % X, want % X", got, want)
	}
}

func TestAcks(t *testing.T) {
	if got := AckResponse(0xDE, 0x0E); !bytes.Equal(got, []byte{0x1C, 0xDA, 0xDE, 0x0E, 0x01, 0x00}) {
		t.Errorf("AckResponse() = % X", got)
	}
	if got := ConnectAck(0xDE, 0x0E); !bytes.Equal(got, []byte{0xDA, 0xDE, 0x0E, 0x00}) {
		t.Errorf("ConnectAck() = % X", got)
	}
}
