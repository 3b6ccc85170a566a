package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// sampleSeries picks width evenly spaced points from series, or returns
// it whole when it already fits.
func sampleSeries(series []float64, width int) []float64 {
	if len(series) <= width {
		return append([]float64(nil), series...)
	}
	sampled := make([]float64, 0, width)
	step := float64(len(series)-1) / float64(width-1)
	for i := 0; i < width; i++ {
		idx := int(math.Round(float64(i) * step))
		idx = max(0, min(len(series)-1, idx))
		sampled = append(sampled, series[idx])
	}
	return sampled
}

func bounds(series []float64) (minV, maxV float64) {
	minV, maxV = series[0], series[0]
	for _, v := range series[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	return minV, maxV
}

func lineChart(series []float64, width, height int) []string {
	width = max(8, width)
	height = max(3, height)
	if len(series) == 0 {
		return []string{strings.Repeat(".", width)}
	}
	sampled := sampleSeries(series, width)
	minV, maxV := bounds(sampled)

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	center := height / 2
	lastRow := center
	for x, v := range sampled {
		row := center
		if maxV > minV {
			ratio := (v - minV) / (maxV - minV)
			row = height - 1 - int(math.Round(ratio*float64(height-1)))
		}
		row = max(0, min(height-1, row))
		grid[row][x] = '●'
		if x > 0 {
			lo, hi := min(row, lastRow), max(row, lastRow)
			for rr := lo + 1; rr < hi; rr++ {
				if grid[rr][x-1] == ' ' {
					grid[rr][x-1] = '│'
				}
			}
		}
		lastRow = row
	}

	lines := make([]string, 0, height)
	for r := 0; r < height; r++ {
		label := "         │"
		switch r {
		case 0:
			label = fmt.Sprintf("%8.3f ┤", maxV)
		case height - 1:
			label = fmt.Sprintf("%8.3f ┤", minV)
		}
		lines = append(lines, label+string(grid[r]))
	}
	return lines
}

var sparkChars = []rune("▁▂▃▄▅▆▇█")

func sparkline(series []float64, width int) string {
	width = max(4, width)
	if len(series) == 0 {
		return strings.Repeat(".", width)
	}
	sampled := sampleSeries(series, width)
	minV, maxV := bounds(sampled)
	if maxV == minV {
		return strings.Repeat(string(sparkChars[len(sparkChars)-2]), width)
	}
	var b strings.Builder
	b.Grow(width)
	for _, v := range sampled {
		r := (v - minV) / (maxV - minV)
		pos := int(math.Round(r * float64(len(sparkChars)-1)))
		b.WriteRune(sparkChars[max(0, min(len(sparkChars)-1, pos))])
	}
	for i := len(sampled); i < width; i++ {
		b.WriteRune(sparkChars[0])
	}
	return b.String()
}

// topIndices returns the indices of the n largest values, largest first.
// Ties keep index order.
func topIndices(values []float64, n int) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })
	if n < len(idx) {
		idx = idx[:n]
	}
	return idx
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func fitHeight(s string, h int) string {
	if h <= 0 {
		return s
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
