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

import (
	"encoding/binary"
	"fmt"
)

// OutputMode selects which planes the device carries in each raw
// frame.
type OutputMode int

const (
	// OutputImageAndTemp splits each raw frame into an image plane on
	// top and a temperature plane below it, each half the frame
	// height.
	OutputImageAndTemp OutputMode = iota

	// OutputImageOnly uses the full frame height for image data.
	OutputImageOnly

	// OutputTempOnly uses the full frame height for temperature data.
	OutputTempOnly
)

func (m OutputMode) String() string {
	switch m {
	case OutputImageAndTemp:
		return "image+temp"
	case OutputImageOnly:
		return "image"
	case OutputTempOnly:
		return "temp"
	}
	return fmt.Sprintf("OutputMode(%d)", int(m))
}

// PlaneDims returns the pixel dimensions of the image and temperature
// planes that a raw frame of width x height holds in this mode.
// Absent planes report zero dimensions.
func (m OutputMode) PlaneDims(width, height int) (imageWidth, imageHeight, tempWidth, tempHeight int) {
	switch m {
	case OutputImageAndTemp:
		return width, height / 2, width, height / 2
	case OutputImageOnly:
		return width, height, 0, 0
	case OutputTempOnly:
		return 0, 0, width, height
	}
	return 0, 0, 0, 0
}

// frameBuffers holds the working buffers for a streaming session.
// They are allocated on stream start and dropped again when the
// stream stops.
type frameBuffers struct {
	raw   []byte
	image []byte
	temp  []byte

	tempFrame *TempFrame

	imageWidth  int
	imageHeight int
	imageBytes  int
	tempWidth   int
	tempHeight  int
	tempBytes   int
}

func newFrameBuffers(param *CameraParam, mode OutputMode) (*frameBuffers, error) {
	if mode == OutputImageAndTemp && param.Height%2 != 0 {
		return nil, fmt.Errorf("frame height %d can't be split into equal planes", param.Height)
	}

	b := new(frameBuffers)
	b.imageWidth, b.imageHeight, b.tempWidth, b.tempHeight = mode.PlaneDims(param.Width, param.Height)

	// Both planes arrive as 2 bytes per pixel and must exactly cover
	// the raw frame.
	b.imageBytes = b.imageWidth * b.imageHeight * 2
	b.tempBytes = b.tempWidth * b.tempHeight * 2
	if b.imageBytes+b.tempBytes != param.FrameBytes {
		return nil, fmt.Errorf("planes cover %d bytes but frames have %d",
			b.imageBytes+b.tempBytes, param.FrameBytes)
	}

	b.raw = make([]byte, param.FrameBytes)
	if b.imageBytes > 0 {
		// Capacity for an eventual BGR conversion of the plane.
		b.image = make([]byte, b.imageBytes, b.imageWidth*b.imageHeight*3)
	}
	if b.tempBytes > 0 {
		b.temp = make([]byte, b.tempBytes)
		b.tempFrame = NewTempFrame(b.tempWidth, b.tempHeight)
	}
	return b, nil
}

// split copies the image and temperature planes out of the raw frame.
func (b *frameBuffers) split() error {
	return splitRaw(b.raw, b.imageBytes, b.tempBytes, b.image, b.temp)
}

// decodeTemp unpacks the little endian temperature plane into the
// frame's code grid.
func (b *frameBuffers) decodeTemp() {
	for i := range b.tempFrame.Pix {
		b.tempFrame.Pix[i] = binary.LittleEndian.Uint16(b.temp[2*i:])
	}
}

// splitRaw cuts a raw frame into its planes: the image plane occupies
// the first imageSize bytes and the temperature plane the tempSize
// bytes after it.
func splitRaw(raw []byte, imageSize, tempSize int, image, temp []byte) error {
	if len(raw) < imageSize+tempSize {
		return ErrShortBuffer
	}
	copy(image, raw[:imageSize])
	copy(temp, raw[imageSize:imageSize+tempSize])
	return nil
}
