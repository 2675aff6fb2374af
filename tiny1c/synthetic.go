// thermal-capture - thermal camera streaming and temperature measurement
//  Copyright (C) 2022, The Thermaline Project
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
	"errors"
	"fmt"
	"time"
)

// SyntheticTransport produces deterministic frames with no camera
// attached. It backs the daemons' simulate modes and the test rigs.
//
// The device it emulates always emits combined frames: an image plane
// carrying a luma ramp on top and a temperature plane below. The
// temperature plane holds the ambient code with a small warm square
// that wanders across the frame. Until the mode switch command
// arrives the plane carries uncalibrated preview values, as the real
// sensor does.
type SyntheticTransport struct {
	Width  int
	Height int
	FPS    int

	VendorID  uint16
	ProductID uint16
	Ambient   float64 // degrees Celsius
	HotSpot   float64 // degrees Celsius

	open      bool
	streaming bool
	tempMode  bool
	frameNum  int
	lastFrame time.Time
}

// NewSyntheticTransport returns a SyntheticTransport advertising a
// single camera with the given raw frame geometry. An fps of 0
// disables frame pacing.
func NewSyntheticTransport(width, height, fps int) *SyntheticTransport {
	return &SyntheticTransport{
		Width:     width,
		Height:    height,
		FPS:       fps,
		VendorID:  DefaultVendorID,
		ProductID: DefaultProductID,
		Ambient:   22,
		HotSpot:   36,
	}
}

func (t *SyntheticTransport) Enumerate() ([]DeviceInfo, error) {
	return []DeviceInfo{{
		VendorID:  t.VendorID,
		ProductID: t.ProductID,
		Name:      "synthetic tiny1c",
	}}, nil
}

func (t *SyntheticTransport) StreamFormats(dev DeviceInfo) ([]StreamFormat, error) {
	return []StreamFormat{{
		Width:  t.Width,
		Height: t.Height,
		FPS:    []int{t.FPS},
		Format: FourCC('Y', 'U', 'Y', 'V'),
	}}, nil
}

func (t *SyntheticTransport) Open(dev DeviceInfo) error {
	if t.open {
		return errors.New("synthetic camera already open")
	}
	t.open = true
	return nil
}

func (t *SyntheticTransport) Close() error {
	t.open = false
	t.streaming = false
	t.tempMode = false
	return nil
}

func (t *SyntheticTransport) StartStream(param CameraParam) error {
	if !t.open {
		return errors.New("synthetic camera not open")
	}
	t.streaming = true
	t.lastFrame = time.Now()
	return nil
}

func (t *SyntheticTransport) StopStream(keepPreview bool) error {
	t.streaming = false
	if !keepPreview {
		t.tempMode = false
	}
	return nil
}

func (t *SyntheticTransport) SendModeSwitch(path PreviewPath, mode Y16Mode) error {
	if !t.streaming {
		return errors.New("mode switch needs an active stream")
	}
	t.tempMode = path == PreviewPath0 && mode == Y16ModeTemperature
	return nil
}

func (t *SyntheticTransport) AcquireFrame(buf []byte, timeout time.Duration) error {
	if !t.streaming {
		return errors.New("synthetic camera not streaming")
	}
	if len(buf) < t.Width*t.Height*2 {
		return fmt.Errorf("frame buffer too small: %d bytes", len(buf))
	}
	t.pace()
	t.fill(buf)
	t.frameNum++
	return nil
}

// pace holds frame delivery to the advertised rate, like a real
// camera would.
func (t *SyntheticTransport) pace() {
	if t.FPS <= 0 {
		return
	}
	interval := time.Second / time.Duration(t.FPS)
	if elapsed := time.Since(t.lastFrame); elapsed < interval {
		time.Sleep(interval - elapsed)
	}
	t.lastFrame = time.Now()
}

func (t *SyntheticTransport) fill(buf []byte) {
	width := t.Width
	imageBytes := width * (t.Height / 2) * 2

	for i := 0; i < imageBytes; i++ {
		buf[i] = byte(i/(width*2) + t.frameNum)
	}

	tempWidth := width
	tempHeight := t.Height / 2
	ambient := codeForCelsius(t.Ambient)
	hot := codeForCelsius(t.HotSpot)

	blob := 3
	span := tempWidth - blob
	if tempHeight-blob < span {
		span = tempHeight - blob
	}
	pos := 0
	if span > 0 {
		pos = (t.frameNum * 3) % span
	}

	for y := 0; y < tempHeight; y++ {
		for x := 0; x < tempWidth; x++ {
			var code uint16
			switch {
			case !t.tempMode:
				// Preview values, nothing like plausible codes.
				code = uint16(3000 + (x+y+t.frameNum)%64)
			case x >= pos && x < pos+blob && y >= pos && y < pos+blob:
				code = hot
			default:
				code = ambient
			}
			binary.LittleEndian.PutUint16(buf[imageBytes+2*(y*tempWidth+x):], code)
		}
	}
}

// codeForCelsius is the inverse of the sensor's code scaling
// (code/64 - 273.15).
func codeForCelsius(celsius float64) uint16 {
	return uint16((celsius + 273.15) * 64)
}
