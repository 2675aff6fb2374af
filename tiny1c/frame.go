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

package tiny1c

// TempFrame holds one temperature plane as raw 16-bit sensor codes in
// row major order. The codes are sensor specific; see the irtemp
// package for converting them to degrees.
type TempFrame struct {
	Width  int
	Height int
	Pix    []uint16
}

func NewTempFrame(width, height int) *TempFrame {
	return &TempFrame{
		Width:  width,
		Height: height,
		Pix:    make([]uint16, width*height),
	}
}

// At returns the sensor code at (x, y).
func (f *TempFrame) At(x, y int) uint16 {
	return f.Pix[y*f.Width+x]
}

// CreateCopy returns a snapshot of the frame. Frames returned by
// Camera are reused on the next acquisition so take a copy before
// keeping one around.
func (f *TempFrame) CreateCopy() *TempFrame {
	out := NewTempFrame(f.Width, f.Height)
	copy(out.Pix, f.Pix)
	return out
}

// CopyFrom overwrites the frame with the contents of src, resizing if
// the dimensions differ.
func (f *TempFrame) CopyFrom(src *TempFrame) {
	if len(f.Pix) != len(src.Pix) {
		f.Pix = make([]uint16, len(src.Pix))
	}
	f.Width = src.Width
	f.Height = src.Height
	copy(f.Pix, src.Pix)
}
