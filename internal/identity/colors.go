package identity

// cursorColors is the fixed palette shared by every client. Order matters:
// the seed hash indexes into it, so reordering would recolor existing
// sessions.
var cursorColors = []string{
	"#ec4899",
	"#f97316",
	"#facc15",
	"#22c55e",
	"#0ea5e9",
	"#6366f1",
	"#a855f7",
	"#ef4444",
}

// PaletteSize reports the number of assignable cursor colors.
func PaletteSize() int {
	return len(cursorColors)
}

// ColorFromSeed deterministically maps a seed string to a palette color
// using a 32-bit signed wraparound hash over the seed's UTF-16 code units.
// The same seed yields the same color on every platform.
func ColorFromSeed(seed string) string {
	var hash int32
	for _, unit := range utf16CodeUnits(seed) {
		hash = hash<<5 - hash + int32(unit)
	}
	magnitude := int64(hash)
	if magnitude < 0 {
		magnitude = -magnitude
	}
	return cursorColors[magnitude%int64(len(cursorColors))]
}

// utf16CodeUnits expands the string the way JavaScript's charCodeAt walks
// it: runes above the BMP become surrogate pairs.
func utf16CodeUnits(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r < 0x10000 {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xd800+(r>>10)), uint16(0xdc00+(r&0x3ff)))
	}
	return units
}
