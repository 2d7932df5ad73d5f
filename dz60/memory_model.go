package dz60

import (
	"fmt"

	"github.com/pkg/errors"
)

// MC9S08DZ60 sector layout as seen by the bootloader
const (
	IDENT_SECTOR_START   uint16 = 0x1080
	IDENT_SECTOR_LEN     uint16 = 0x280
	BL_HW_SECTOR_START   uint16 = 0x1300
	BL_HW_SECTOR_LEN     uint16 = 0x100
	EEPROM_START         uint16 = 0x1400
	EEPROM_END           uint16 = 0x1800 // exclusive
	EEPROM_SECTOR_LEN    uint16 = 0x8
	FLASH_START          uint16 = 0x1900
	FLASH_END            uint16 = 0xF400 // exclusive, last sector starts below
	FLASH_SECTOR_LEN     uint16 = 0x300
	VECTOR_SECTOR_START  uint16 = 0xFD00
	VECTOR_SECTOR_LEN    uint16 = 0x300
	RESET_VECTOR_ADDRESS uint16 = 0xFFFE
)

// Area is a contiguous run of bytes to program inside one sector.
type Area struct {
	Start uint16
	Data  []byte
}

func (a Area) Len() int {
	return len(a.Data)
}

// End is the last address covered by the area
func (a Area) End() uint16 {
	return a.Start + uint16(len(a.Data)) - 1
}

func (a Area) String() string {
	return fmt.Sprintf("Area %#04x - %#04x (%#x)", a.Start, a.End(), a.Len())
}

// Sector is a range the bootloader erases as a whole.
type Sector struct {
	Start  uint16
	Length uint16
	Used   bool
	Areas  []Area
}

func NewSector(start, length uint16) (Sector, error) {
	if length == 0 {
		return Sector{}, errors.Errorf("sector %#04x has zero length", start)
	}
	if int(start)+int(length) > MEMORY_SIZE {
		return Sector{}, errors.Errorf("sector %#04x with length %#x exceeds the address space", start, length)
	}
	return Sector{Start: start, Length: length}, nil
}

func mustSector(start, length uint16) Sector {
	s, err := NewSector(start, length)
	if err != nil {
		panic(err)
	}
	return s
}

// End is the last address of the sector
func (s *Sector) End() uint16 {
	return s.Start + s.Length - 1
}

func (s *Sector) Contains(addr uint16) bool {
	return addr >= s.Start && addr <= s.End()
}

func (s *Sector) IsVector() bool {
	return s.Start == VECTOR_SECTOR_START
}

func (s *Sector) addArea(start uint16, data []byte) {
	if len(data) == 0 {
		return
	}
	if int(start)+len(data)-1 > int(s.End()) || start < s.Start {
		panic(fmt.Sprintf("area %#04x+%d outside of sector %#04x - %#04x", start, len(data), s.Start, s.End()))
	}
	s.Areas = append(s.Areas, Area{Start: start, Data: data})
}

func (s *Sector) String() string {
	return fmt.Sprintf("Sector %#04x - %#04x", s.Start, s.End())
}

// DZ60Sectors returns the ordered sector list of the MC9S08DZ60 bootloader.
func DZ60Sectors() []Sector {
	sectors := []Sector{
		mustSector(IDENT_SECTOR_START, IDENT_SECTOR_LEN),
		mustSector(BL_HW_SECTOR_START, BL_HW_SECTOR_LEN),
	}
	for s := EEPROM_START; s < EEPROM_END; s += EEPROM_SECTOR_LEN {
		sectors = append(sectors, mustSector(s, EEPROM_SECTOR_LEN))
	}
	for s := FLASH_START; s < FLASH_END; s += FLASH_SECTOR_LEN {
		sectors = append(sectors, mustSector(s, FLASH_SECTOR_LEN))
	}
	return append(sectors, mustSector(VECTOR_SECTOR_START, VECTOR_SECTOR_LEN))
}

// AddressInfo names well known addresses of the DZ60 memory map. It returns
// an empty string for addresses without a special meaning.
func AddressInfo(addr uint16) string {
	switch {
	case addr == 0x17E0:
		return "EEPROM SCI Baud Rate"
	case addr == 0x17E8:
		return "EEPROM CAN Baud Rate"
	case addr == 0x17F0:
		return "EEPROM Fingerprint of bootloader"
	case addr == 0x17F8:
		return "EEPROM ECU ID"
	case addr >= 0x1900 && addr <= 0xEAFF:
		return "Application software"
	case addr == 0xFFAC:
		return "BootLoader Configuration Register"
	case addr == 0xFFAE:
		return "FTRIM bit"
	case addr == 0xFFAF:
		return "TRIM value"
	case addr >= 0xFFB0 && addr <= 0xFFB7:
		return "Backdoor key"
	case addr == 0xFFBD:
		return "Flash and EEPROM Protection Register"
	case addr == 0xFFBF:
		return "Flash and EEPROM Options Register"
	case addr >= 0xFFC0 && addr <= 0xFFFD:
		return "Interrupt vector"
	case addr == RESET_VECTOR_ADDRESS:
		return "Reset vector"
	}
	return ""
}
