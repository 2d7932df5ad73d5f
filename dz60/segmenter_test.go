package dz60

import (
	"bytes"
	"testing"
)

func imageWith(addrs ...int) *MemoryImage {
	m := NewMemoryImage()
	for _, a := range addrs {
		m.Data[a] = byte(a)
		m.Used[a] = true
	}
	return m
}

func TestSegmentGapThreshold(t *testing.T) {
	tests := []struct {
		name      string
		addrs     []int
		wantAreas []Area
	}{
		{
			name:      "single byte",
			addrs:     []int{0x2000},
			wantAreas: []Area{{0x2000, []byte{0x00}}},
		},
		{
			name:  "gap equal to threshold merges",
			addrs: []int{0x2000, 0x2008},
			wantAreas: []Area{{0x2000, []byte{
				0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x08,
			}}},
		},
		{
			name:  "three bytes then gap equal to threshold",
			addrs: []int{0x2000, 0x2001, 0x2002, 0x2002 + DefaultGapThreshold + 1},
			wantAreas: []Area{{0x2000, []byte{
				0x00, 0x01, 0x02, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x0A,
			}}},
		},
		{
			name:  "gap above threshold splits",
			addrs: []int{0x2000, 0x2009},
			wantAreas: []Area{
				{0x2000, []byte{0x00}},
				{0x2009, []byte{0x09}},
			},
		},
		{
			name:  "trailing gap dropped",
			addrs: []int{0x2000, 0x2001},
			wantAreas: []Area{
				{0x2000, []byte{0x00, 0x01}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segment(imageWith(tt.addrs...), DZ60Sectors(), DefaultGapThreshold)
			if len(got) != 1 {
				t.Fatalf("Segment() returned %d sectors, want 1", len(got))
			}
			if got[0].Start != 0x1F00 || !got[0].Used {
				t.Errorf("Segment() sector = %v", &got[0])
			}
			areas := got[0].Areas
			if len(areas) != len(tt.wantAreas) {
				t.Fatalf("Segment() areas = %v, want %v", areas, tt.wantAreas)
			}
			for i := range areas {
				if areas[i].Start != tt.wantAreas[i].Start || !bytes.Equal(areas[i].Data, tt.wantAreas[i].Data) {
					t.Errorf("area %d = %v % X, want %v % X", i, areas[i], areas[i].Data, tt.wantAreas[i], tt.wantAreas[i].Data)
				}
			}
		})
	}
}

func TestSegmentSectorEnd(t *testing.T) {
	// open area with a short gap running into the end of the sector
	got := Segment(imageWith(0x1BFA), DZ60Sectors(), DefaultGapThreshold)
	if len(got) != 1 || len(got[0].Areas) != 1 {
		t.Fatalf("Segment() = %v", got)
	}
	a := got[0].Areas[0]
	if a.Start != 0x1BFA || a.End() != 0x1BFF {
		t.Errorf("area = %v, want 0x1bfa - 0x1bff", a)
	}
}

func TestSegmentDoesNotCrossSectors(t *testing.T) {
	got := Segment(imageWith(0x1BFF, 0x1C00), DZ60Sectors(), DefaultGapThreshold)
	if len(got) != 2 {
		t.Fatalf("Segment() returned %d sectors, want 2", len(got))
	}
	if got[0].Start != 0x1900 || got[1].Start != 0x1C00 {
		t.Errorf("Segment() sectors = %v, %v", &got[0], &got[1])
	}
}

func TestSegmentUnusedSectorsDropped(t *testing.T) {
	if got := Segment(NewMemoryImage(), DZ60Sectors(), DefaultGapThreshold); len(got) != 0 {
		t.Errorf("Segment() of an empty image = %v", got)
	}

	// bytes outside of any sector are ignored
	if got := Segment(imageWith(0x0100, 0x1800, 0xF400), DZ60Sectors(), DefaultGapThreshold); len(got) != 0 {
		t.Errorf("Segment() of unmapped bytes = %v", got)
	}
}

func TestSegmentCoversUsedBytes(t *testing.T) {
	addrs := []int{0x1080, 0x1085, 0x1300, 0x1400, 0x17F8, 0x17FF, 0x1900, 0x1920, 0x1921, 0x3000, 0x3007, 0xFFFE, 0xFFFF}
	img := imageWith(addrs...)
	layout := DZ60Sectors()
	sectors := Segment(img, layout, DefaultGapThreshold)

	covered := map[int]bool{}
	for i, s := range sectors {
		if i > 0 && s.Start <= sectors[i-1].End() {
			t.Errorf("sector %v not ascending", &s)
		}
		for j, a := range s.Areas {
			if a.Len() == 0 || !s.Contains(a.Start) || !s.Contains(a.End()) {
				t.Errorf("area %v outside of %v", a, &s)
			}
			if j > 0 && a.Start <= s.Areas[j-1].End() {
				t.Errorf("area %v overlaps %v", a, s.Areas[j-1])
			}
			if !img.Used[int(a.Start)] {
				t.Errorf("area %v does not start on a defined byte", a)
			}
			for k, b := range a.Data {
				addr := int(a.Start) + k
				if b != img.Data[addr] {
					t.Errorf("area byte %#04x = %#02x, want %#02x", addr, b, img.Data[addr])
				}
				covered[addr] = true
			}
		}
	}
	for _, a := range addrs {
		if !covered[a] {
			t.Errorf("address %#04x not covered", a)
		}
	}

	if len(layout[0].Areas) != 0 || layout[0].Used {
		t.Error("Segment() modified the layout")
	}
}
