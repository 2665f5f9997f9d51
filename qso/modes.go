package qso

import "strings"

// Mode labels in table order; the slice index is the stored mode id and index
// 0 is the "no mode" sentinel.
var modeList = []string{"N/A", "CW", "AM", "FM", "LSB", "USB", "RTTY", "PSK31", "PSK63", "FT8", "FT4"}

var modeNumbers = func() map[string]int {
	m := make(map[string]int, len(modeList))
	for i, name := range modeList {
		m[name] = i
	}
	return m
}()

// SimpleMode groups modes for score reporting.
type SimpleMode int

const (
	SimpleNone SimpleMode = iota
	SimpleCW
	SimplePhone
	SimpleData
)

// modeToSimple maps mode ids (bandList order) to simple-mode groups.
var modeToSimple = []SimpleMode{
	SimpleNone,  // N/A
	SimpleCW,    // CW
	SimplePhone, // AM
	SimplePhone, // FM
	SimplePhone, // LSB
	SimplePhone, // USB
	SimpleData,  // RTTY
	SimpleData,  // PSK31
	SimpleData,  // PSK63
	SimpleData,  // FT8
	SimpleData,  // FT4
}

// ModeNumber maps a wire mode label to its table id. The second return is
// false for unknown modes.
func ModeNumber(label string) (int, bool) {
	id, ok := modeNumbers[strings.ToUpper(strings.TrimSpace(label))]
	return id, ok
}

// ModeName returns the label for a mode id, or "N/A" when out of range.
func ModeName(id int) string {
	if id < 0 || id >= len(modeList) {
		return modeList[0]
	}
	return modeList[id]
}

// SimpleModeFor returns the reporting group for a mode id.
func SimpleModeFor(id int) SimpleMode {
	if id < 0 || id >= len(modeToSimple) {
		return SimpleNone
	}
	return modeToSimple[id]
}

// ModeCount returns the number of mode table entries including the sentinel.
func ModeCount() int {
	return len(modeList)
}
