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

package headers

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"gopkg.in/yaml.v1"
)

// Field names used in the yaml preamble a camera service sends before
// its frame stream.
const (
	XResolution = "x-resolution"
	YResolution = "y-resolution"
	FPS         = "fps"
	FrameSize   = "frame-size"
	Brand       = "brand"
	Model       = "model"
	VendorID    = "vendor-id"
	ProductID   = "product-id"
	PixelFormat = "pixel-format"
)

// HeaderInfo describes the camera and frame geometry behind a frame
// stream.
type HeaderInfo struct {
	resX        int
	resY        int
	fps         int
	framesize   int
	brand       string
	model       string
	vendorID    int
	productID   int
	pixelFormat string
}

// ResX returns the frame width in pixels.
func (h *HeaderInfo) ResX() int {
	return h.resX
}

// ResY returns the frame height in pixels.
func (h *HeaderInfo) ResY() int {
	return h.resY
}

// FPS returns the frame rate of the stream.
func (h *HeaderInfo) FPS() int {
	return h.fps
}

// FrameSize returns the number of bytes in each frame on the wire.
func (h *HeaderInfo) FrameSize() int {
	return h.framesize
}

// Brand returns the camera brand.
func (h *HeaderInfo) Brand() string {
	return h.brand
}

// Model returns the camera model.
func (h *HeaderInfo) Model() string {
	return h.model
}

// VendorID returns the USB vendor ID of the camera.
func (h *HeaderInfo) VendorID() int {
	return h.vendorID
}

// ProductID returns the USB product ID of the camera.
func (h *HeaderInfo) ProductID() int {
	return h.productID
}

// PixelFormat returns the FourCC name of the stream's pixel format.
func (h *HeaderInfo) PixelFormat() string {
	return h.pixelFormat
}

// ReadHeaderInfo consumes the yaml preamble from reader, up to and
// including the blank line that terminates it.
func ReadHeaderInfo(reader *bufio.Reader) (*HeaderInfo, error) {
	var buf bytes.Buffer
	for {
		line, err := reader.ReadString(byte('\n'))
		if err != nil {
			return nil, err
		}
		if strings.Trim(line, " ") == "\n" {
			break
		}
		buf.WriteString(line)
	}
	h := make(map[string]interface{})
	if err := yaml.Unmarshal(buf.Bytes(), &h); err != nil {
		return nil, err
	}

	return &HeaderInfo{
		resX:        toInt(h[XResolution]),
		resY:        toInt(h[YResolution]),
		fps:         toInt(h[FPS]),
		framesize:   toInt(h[FrameSize]),
		brand:       toStr(h[Brand]),
		model:       toStr(h[Model]),
		vendorID:    toInt(h[VendorID]),
		productID:   toInt(h[ProductID]),
		pixelFormat: toStr(h[PixelFormat]),
	}, nil
}

// WriteHeader writes fields as a yaml preamble followed by the
// terminating blank line. Use the package's field name constants as
// keys. The preamble goes out as a single write so it forms one
// message on packet oriented sockets.
func WriteHeader(w io.Writer, fields map[string]interface{}) error {
	out, err := yaml.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

func toInt(v interface{}) int {
	out, ok := v.(int)
	if !ok {
		return 0
	}
	return out
}

func toStr(v interface{}) string {
	out, ok := v.(string)
	if !ok {
		return ""
	}
	return out
}
