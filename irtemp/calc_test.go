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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaline/thermal-capture/tiny1c"
)

// gridFrame returns a 4x4 frame with codes 0..15 laid out row by row.
func gridFrame() *tiny1c.TempFrame {
	frame := tiny1c.NewTempFrame(4, 4)
	for i := range frame.Pix {
		frame.Pix[i] = uint16(i)
	}
	return frame
}

func TestCodeToCelsius(t *testing.T) {
	assert.InDelta(t, -273.15, CodeToCelsius(0), 0.0001)
	assert.InDelta(t, 26.85, CodeToCelsius(64*300), 0.0001)
	assert.InDelta(t, 21.99, CodeToCelsius(18889), 0.01)
}

func TestPointTemp(t *testing.T) {
	calc := NewCalculator(nil)
	frame := gridFrame()

	temp, ok := calc.PointTemp(frame, 2, 1)
	require.True(t, ok)
	assert.Equal(t, CodeToCelsius(6), temp)

	for _, p := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		_, ok := calc.PointTemp(frame, p[0], p[1])
		assert.False(t, ok, "point (%d,%d) should be rejected", p[0], p[1])
	}

	_, ok = calc.PointTemp(nil, 0, 0)
	assert.False(t, ok)
}

func TestRectTemp(t *testing.T) {
	calc := NewCalculator(nil)
	frame := gridFrame()

	// The centre square covers codes 5, 6, 9 and 10.
	stats, ok := calc.RectTemp(frame, 1, 1, 2, 2)
	require.True(t, ok)
	assert.Equal(t, CodeToCelsius(10), stats.Max)
	assert.Equal(t, CodeToCelsius(5), stats.Min)
	assert.Equal(t, CodeToCelsius(7), stats.Avg) // (5+6+9+10)/4 truncates to 7
}

func TestRectTempWholeFrame(t *testing.T) {
	calc := NewCalculator(nil)
	stats, ok := calc.RectTemp(gridFrame(), 0, 0, 4, 4)
	require.True(t, ok)
	assert.Equal(t, CodeToCelsius(15), stats.Max)
	assert.Equal(t, CodeToCelsius(0), stats.Min)
	assert.Equal(t, CodeToCelsius(7), stats.Avg) // 120/16 truncates to 7
}

func TestRectTempAverageTruncatesBeforeConversion(t *testing.T) {
	calc := NewCalculator(nil)
	frame := tiny1c.NewTempFrame(2, 1)
	frame.Pix[0] = 1
	frame.Pix[1] = 2

	stats, ok := calc.RectTemp(frame, 0, 0, 2, 1)
	require.True(t, ok)
	// (1+2)/2 is 1 in code space; the average must not be computed
	// from converted values.
	assert.Equal(t, CodeToCelsius(1), stats.Avg)
}

func TestRectTempInvalidRegions(t *testing.T) {
	calc := NewCalculator(nil)
	frame := gridFrame()

	invalid := [][4]int{
		{0, 0, 0, 1},  // zero width
		{0, 0, 1, 0},  // zero height
		{-1, 0, 2, 2}, // negative origin
		{3, 3, 2, 2},  // spills right and below
		{0, 0, 5, 1},  // too wide
	}
	for _, r := range invalid {
		_, ok := calc.RectTemp(frame, r[0], r[1], r[2], r[3])
		assert.False(t, ok, "rect %v should be rejected", r)
	}
}

func TestLineTempHorizontalMatchesRect(t *testing.T) {
	calc := NewCalculator(nil)
	frame := gridFrame()

	line, ok := calc.LineTemp(frame, 0, 2, 3, 2)
	require.True(t, ok)
	rect, ok := calc.RectTemp(frame, 0, 2, 4, 1)
	require.True(t, ok)
	assert.Equal(t, rect, line)
}

func TestLineTempDiagonal(t *testing.T) {
	calc := NewCalculator(nil)
	frame := gridFrame()

	// The main diagonal visits codes 0, 5, 10 and 15.
	stats, ok := calc.LineTemp(frame, 0, 0, 3, 3)
	require.True(t, ok)
	assert.Equal(t, CodeToCelsius(15), stats.Max)
	assert.Equal(t, CodeToCelsius(0), stats.Min)
	assert.Equal(t, CodeToCelsius(7), stats.Avg) // 30/4 truncates to 7
}

func TestLineTempSinglePoint(t *testing.T) {
	calc := NewCalculator(nil)
	stats, ok := calc.LineTemp(gridFrame(), 2, 2, 2, 2)
	require.True(t, ok)
	assert.Equal(t, CodeToCelsius(10), stats.Max)
	assert.Equal(t, CodeToCelsius(10), stats.Min)
	assert.Equal(t, CodeToCelsius(10), stats.Avg)
}

func TestLineTempDirectionIndependent(t *testing.T) {
	calc := NewCalculator(nil)
	frame := gridFrame()

	forward, ok := calc.LineTemp(frame, 0, 1, 3, 2)
	require.True(t, ok)
	backward, ok := calc.LineTemp(frame, 3, 2, 0, 1)
	require.True(t, ok)
	assert.Equal(t, forward.Max, backward.Max)
	assert.Equal(t, forward.Min, backward.Min)
}

func TestLineTempRejectsEndpointsOutsideFrame(t *testing.T) {
	calc := NewCalculator(nil)
	frame := gridFrame()

	_, ok := calc.LineTemp(frame, 0, 0, 4, 3)
	assert.False(t, ok)
	_, ok = calc.LineTemp(frame, -1, 0, 3, 3)
	assert.False(t, ok)
}

func TestCalculatorWithCustomConverter(t *testing.T) {
	calc := NewCalculator(func(code uint16) float32 { return float32(code) * 10 })
	frame := gridFrame()

	temp, ok := calc.PointTemp(frame, 1, 0)
	require.True(t, ok)
	assert.Equal(t, float32(10), temp)

	stats, ok := calc.RectTemp(frame, 0, 0, 2, 1)
	require.True(t, ok)
	assert.Equal(t, float32(10), stats.Max)
	assert.Equal(t, float32(0), stats.Min)
}
