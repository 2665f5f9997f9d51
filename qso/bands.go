package qso

import "strings"

// Band labels as transmitted by the logging program, in table order. The slice
// index is the stored band id; index 0 is the "no band" sentinel. Contest
// bands only.
var bandList = []string{"N/A", "1.8", "3.5", "7", "14", "21", "28", "50", "144", "420"}

// bandTitles are the human-readable names matching bandList by index. Exposed
// for the reporting layer.
var bandTitles = []string{"No Band", "160M", "80M", "40M", "20M", "15M", "10M", "6M", "2M", "70cm"}

var bandNumbers = func() map[string]int {
	m := make(map[string]int, len(bandList))
	for i, name := range bandList {
		m[name] = i
	}
	return m
}()

// BandNumber maps a wire band label to its table id. The second return is
// false when the label is not a supported contest band.
func BandNumber(label string) (int, bool) {
	id, ok := bandNumbers[strings.TrimSpace(label)]
	return id, ok
}

// BandLabel returns the wire label for a band id (e.g. "14"), or the "N/A"
// sentinel when the id is out of range.
func BandLabel(id int) string {
	if id < 0 || id >= len(bandList) {
		return bandList[0]
	}
	return bandList[id]
}

// BandTitle returns the display name for a band id, or "No Band" when the id
// is out of range.
func BandTitle(id int) string {
	if id < 0 || id >= len(bandTitles) {
		return bandTitles[0]
	}
	return bandTitles[id]
}

// BandCount returns the number of band table entries including the sentinel.
func BandCount() int {
	return len(bandList)
}
