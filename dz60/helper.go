package dz60

import (
	"fmt"
	"strings"
	"time"
)

// ToBCD packs the two lowest decimal digits of v into one byte, e.g. 23 -> 0x23
func ToBCD(v int) byte {
	v %= 100
	if v < 0 {
		v = -v
	}
	return byte(v/10)<<4 | byte(v%10)
}

// FromBCD is the inverse of ToBCD for valid BCD bytes
func FromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

// FingerprintBytes encodes t as the six BCD bytes the bootloader stores as
// download fingerprint: year (two digits), month, day, hour, minute, second.
func FingerprintBytes(t time.Time) []byte {
	return []byte{
		ToBCD(t.Year()),
		ToBCD(int(t.Month())),
		ToBCD(t.Day()),
		ToBCD(t.Hour()),
		ToBCD(t.Minute()),
		ToBCD(t.Second()),
	}
}

// HexString renders b as upper case hex pairs separated by spaces
func HexString(b []byte) string {
	sb := strings.Builder{}
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}
