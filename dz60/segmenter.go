package dz60

// One frame costs 6 bytes besides the data, so a run of 7 or fewer undefined
// bytes is cheaper to send as filler than to start a new frame.
const DefaultGapThreshold = 7

// Segment fills every sector of layout with the areas to program from img and
// returns only the sectors that hold at least one defined byte. Gaps of up to
// threshold undefined bytes are merged into the surrounding area; longer gaps
// split it. The layout slice is not modified.
func Segment(img *MemoryImage, layout []Sector, threshold int) []Sector {
	res := make([]Sector, 0, len(layout))
	for _, s := range layout {
		s.Areas = nil
		s.Used = false
		segmentSector(img, &s, threshold)
		if s.Used {
			res = append(res, s)
		}
	}
	return res
}

func segmentSector(img *MemoryImage, s *Sector, threshold int) {
	open := false
	var start uint16
	gapCount := 0
	var data []byte

	for a := int(s.Start); a <= int(s.End()); a++ {
		if img.Used[a] {
			s.Used = true
			if !open {
				open = true
				start = uint16(a)
				data = nil
			}
			data = append(data, img.Data[a])
			gapCount = 0
			continue
		}

		if !open {
			continue
		}
		data = append(data, img.Data[a])
		gapCount++
		if gapCount > threshold {
			s.addArea(start, data[:len(data)-gapCount])
			open = false
			gapCount = 0
		}
	}

	if open {
		s.addArea(start, data)
	}
}
