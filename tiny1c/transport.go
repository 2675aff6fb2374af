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
	"fmt"
	"time"
)

// DeviceInfo identifies an attached camera as reported by the
// transport during enumeration.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Name      string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%04x:%04x %s", d.VendorID, d.ProductID, d.Name)
}

// PixelFormat is the FourCC code of a stream format. The camera
// passes it through to the transport untouched.
type PixelFormat uint32

// FourCC builds a PixelFormat from its four character code.
func FourCC(a, b, c, d byte) PixelFormat {
	return PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

func (f PixelFormat) String() string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// StreamFormat describes one stream configuration offered by a
// device. FPS lists the frame rates available at this resolution,
// preferred first.
type StreamFormat struct {
	Width  int
	Height int
	FPS    []int
	Format PixelFormat
}

// CameraParam holds the stream parameters negotiated when a camera
// was opened. Camera methods hand out copies so callers can hold on
// to them.
type CameraParam struct {
	Device       DeviceInfo
	Width        int
	Height       int
	FPS          int
	Format       PixelFormat
	FrameBytes   int
	FrameTimeout time.Duration
}

// Transport is the device access layer underneath a Camera. The real
// implementation wraps the vendor UVC stack; see the sockcam package
// and SyntheticTransport for in-tree implementations.
//
// A Transport carries at most one device session at a time and is
// called from a single goroutine.
type Transport interface {
	// Enumerate reports the cameras currently attached.
	Enumerate() ([]DeviceInfo, error)

	// StreamFormats reports the stream configurations a device
	// offers, preferred first.
	StreamFormats(dev DeviceInfo) ([]StreamFormat, error)

	// Open claims the device for streaming.
	Open(dev DeviceInfo) error

	// Close releases the device.
	Close() error

	// StartStream begins frame delivery with the given parameters.
	StartStream(param CameraParam) error

	// StopStream halts frame delivery. With keepPreview set the
	// device keeps its internal preview pipeline warm so a later
	// StartStream skips the sensor warmup.
	StopStream(keepPreview bool) error

	// AcquireFrame blocks until the next frame has been copied into
	// buf or the timeout passes. Implementations return
	// ErrFrameTimeout when no frame arrived in time.
	AcquireFrame(buf []byte, timeout time.Duration) error
}

// PreviewPath selects which device pipeline a vendor command applies
// to.
type PreviewPath int

// Y16Mode selects what the device feeds into the 16-bit plane of each
// frame.
type Y16Mode int

const (
	PreviewPath0 PreviewPath = 0

	Y16ModeTemperature Y16Mode = 4
)

// Commander is the vendor command channel used to switch the 16-bit
// plane to calibrated temperature output while streaming. A Transport
// that can carry commands implements Commander as well and New picks
// it up automatically.
type Commander interface {
	SendModeSwitch(path PreviewPath, mode Y16Mode) error
}
