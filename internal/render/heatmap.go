package render

import (
	"math"
	"strings"
)

// ramp runs from the lowest to the highest value.
const ramp = " .:-=+*#%@"

// Heatmap draws im onto a width x height character canvas. Row 0 is the
// top of the picture (highest y), column 0 its left edge (lowest x).
// Each canvas character shows the cell under its centre.
func Heatmap(im Image, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	lines := make([]string, height)
	if im.NX == 0 || im.NY == 0 {
		blank := strings.Repeat(" ", width)
		for i := range lines {
			lines[i] = blank
		}
		return lines
	}

	lo, hi := im.Range()
	span := hi - lo
	levels := len(ramp) - 1

	var sb strings.Builder
	for row := 0; row < height; row++ {
		y := cellIndex(height-1-row, height, im.NY)
		sb.Reset()
		for col := 0; col < width; col++ {
			x := cellIndex(col, width, im.NX)
			level := 0
			if span > 0 {
				level = int(math.Round((im.At(x, y) - lo) / span * float64(levels)))
			} else if hi != 0 {
				level = levels
			}
			sb.WriteByte(ramp[level])
		}
		lines[row] = sb.String()
	}
	return lines
}

// cellIndex maps canvas position i of n onto one of cells grid cells.
func cellIndex(i, n, cells int) int {
	c := int((float64(i) + 0.5) * float64(cells) / float64(n))
	if c >= cells {
		c = cells - 1
	}
	return c
}
