// thermal-capture - thermal camera streaming and temperature measurement
//  Copyright (C) 2021, The Thermaline Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package irtemp

import (
	"math"

	"github.com/thermaline/thermal-capture/tiny1c"
)

// Converter turns a raw sensor code into degrees Celsius. It must be
// monotonic so that code space extremes map to temperature extremes.
type Converter func(code uint16) float32

// CodeToCelsius is the sensor's documented code scaling: code/64
// above absolute zero.
func CodeToCelsius(code uint16) float32 {
	return float32(float64(code)/64.0 - 273.15)
}

// RegionStats summarises the temperatures over a region of a frame.
//
// Max and Min are the converted extreme codes. Avg is the conversion
// of the truncated integer mean of the raw codes, not the mean of
// converted values; callers comparing against other tooling for this
// sensor family rely on getting bit identical results.
type RegionStats struct {
	Max float32
	Min float32
	Avg float32
}

// NewCalculator returns a Calculator using the given Converter, or
// CodeToCelsius if convert is nil.
func NewCalculator(convert Converter) *Calculator {
	if convert == nil {
		convert = CodeToCelsius
	}
	return &Calculator{convert: convert}
}

// Calculator computes temperature statistics over regions of a
// temperature frame. Invalid regions are reported with ok == false,
// never as errors: an out of range query is an answerable question
// with an empty answer.
type Calculator struct {
	convert Converter
}

// PointTemp returns the temperature at (x, y). ok is false when the
// point lies outside the frame.
func (c *Calculator) PointTemp(frame *tiny1c.TempFrame, x, y int) (float32, bool) {
	if frame == nil || x < 0 || x >= frame.Width || y < 0 || y >= frame.Height {
		return 0, false
	}
	return c.convert(frame.At(x, y)), true
}

// RectTemp returns the temperature statistics over the w by h
// rectangle with top left corner (x, y). ok is false when the
// rectangle is empty or not fully inside the frame.
func (c *Calculator) RectTemp(frame *tiny1c.TempFrame, x, y, w, h int) (RegionStats, bool) {
	if frame == nil || x < 0 || y < 0 || w <= 0 || h <= 0 ||
		x+w > frame.Width || y+h > frame.Height {
		return RegionStats{}, false
	}

	var acc codeAccum
	acc.reset()
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			acc.add(frame.At(col, row))
		}
	}
	return acc.stats(c.convert), true
}

// LineTemp returns the temperature statistics over the cells the
// discrete line from (x1, y1) to (x2, y2) passes through, endpoints
// included. ok is false when either endpoint lies outside the frame.
func (c *Calculator) LineTemp(frame *tiny1c.TempFrame, x1, y1, x2, y2 int) (RegionStats, bool) {
	if frame == nil ||
		x1 < 0 || x1 >= frame.Width || y1 < 0 || y1 >= frame.Height ||
		x2 < 0 || x2 >= frame.Width || y2 < 0 || y2 >= frame.Height {
		return RegionStats{}, false
	}

	var acc codeAccum
	acc.reset()

	// Bresenham walk.
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := step(x1, x2)
	sy := step(y1, y2)
	err := dx + dy

	x, y := x1, y1
	for {
		acc.add(frame.At(x, y))
		if x == x2 && y == y2 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
	return acc.stats(c.convert), true
}

// codeAccum aggregates raw codes so that conversion happens exactly
// once per statistic.
type codeAccum struct {
	max   uint16
	min   uint16
	sum   uint64
	count uint64
}

func (a *codeAccum) reset() {
	a.min = math.MaxUint16
}

func (a *codeAccum) add(code uint16) {
	if code > a.max {
		a.max = code
	}
	if code < a.min {
		a.min = code
	}
	a.sum += uint64(code)
	a.count++
}

func (a *codeAccum) stats(convert Converter) RegionStats {
	return RegionStats{
		Max: convert(a.max),
		Min: convert(a.min),
		Avg: convert(uint16(a.sum / a.count)),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func step(from, to int) int {
	if from < to {
		return 1
	}
	if from > to {
		return -1
	}
	return 0
}
