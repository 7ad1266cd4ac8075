package render

import "image/color"

// Travel-time bin breakpoints in minutes. Upper bounds are inclusive:
// exactly 120 falls in "91-120", 121 falls in ">120".
var breaks = []float64{15, 30, 60, 90, 120}

// Labels for the six travel-time bins, in order.
var Labels = []string{"0-15", "16-30", "31-60", "61-90", "91-120", ">120"}

// MissingLabel is the legend text for centroids with no transit route.
const MissingLabel = "No Public Transit Available"

// Diverging six-class palette, green through yellow to red, dark red for
// the worst bin.
var palette = []color.RGBA{
	{R: 0x1a, G: 0x96, B: 0x41, A: 0xff}, // 0-15
	{R: 0xa6, G: 0xd9, B: 0x6a, A: 0xff}, // 16-30
	{R: 0xff, G: 0xff, B: 0xbf, A: 0xff}, // 31-60
	{R: 0xfd, G: 0xae, B: 0x61, A: 0xff}, // 61-90
	{R: 0xd7, G: 0x19, B: 0x1c, A: 0xff}, // 91-120
	{R: 0x7f, G: 0x00, B: 0x00, A: 0xff}, // >120
}

// missingColor fills polygons whose travel time is unavailable.
var missingColor = color.RGBA{R: 0xc8, G: 0xc8, B: 0xc8, A: 0xff}

// BinIndex returns the bin for a travel time in minutes.
func BinIndex(minutes float64) int {
	for i, upper := range breaks {
		if minutes <= upper {
			return i
		}
	}
	return len(breaks)
}

// BinLabel returns the label for a travel time in minutes.
func BinLabel(minutes float64) string {
	return Labels[BinIndex(minutes)]
}

// BinColor returns the fill color for a travel time; nil minutes (no
// transit route) maps to the missing color.
func BinColor(minutes *float64) color.RGBA {
	if minutes == nil {
		return missingColor
	}
	return palette[BinIndex(*minutes)]
}
