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

// Package sockcam implements tiny1c.Transport on top of the unix
// socket served by the USB bridge helper. The helper owns the vendor
// UVC stack and fronts exactly one camera.
//
// The bridge sends a yaml header describing the camera as its first
// packet. After that the client drives it with single packet text
// commands ("open", "start <w> <h> <fps>", "y16 <path> <mode>",
// "stop <keep>", "close") which it answers with "ok" or "err: <msg>".
// While a stream is running the bridge interleaves frame packets of
// exactly the negotiated frame size; replies are short and never
// padded, so packet size tells the two apart.
package sockcam

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/thermaline/thermal-capture/headers"
	"github.com/thermaline/thermal-capture/tiny1c"
)

const (
	// Commands wait this long for their reply. Mode switches can
	// take a while when the sensor is still settling.
	replyTimeout = 10 * time.Second

	headerPacketSize = 4096
)

// Transport talks to the bridge helper at the given socket path. It
// connects lazily on first use and is not goroutine safe.
type Transport struct {
	path       string
	conn       *net.UnixConn
	header     *headers.HeaderInfo
	frameBytes int
	scratch    []byte
}

// New returns a Transport for the bridge socket at path. No
// connection is made until the transport is first used.
func New(path string) *Transport {
	return &Transport{path: path}
}

// Enumerate reports the camera behind the bridge, if one is attached.
func (t *Transport) Enumerate() ([]tiny1c.DeviceInfo, error) {
	if err := t.connect(); err != nil {
		return nil, err
	}
	if t.header.VendorID() == 0 {
		// The bridge is up but has no camera to offer.
		return nil, nil
	}
	return []tiny1c.DeviceInfo{{
		VendorID:  uint16(t.header.VendorID()),
		ProductID: uint16(t.header.ProductID()),
		Name:      strings.TrimSpace(t.header.Brand() + " " + t.header.Model()),
	}}, nil
}

// StreamFormats reports the single stream configuration the bridge
// negotiated with the camera.
func (t *Transport) StreamFormats(dev tiny1c.DeviceInfo) ([]tiny1c.StreamFormat, error) {
	if err := t.connect(); err != nil {
		return nil, err
	}
	if t.header.ResX() == 0 || t.header.ResY() == 0 {
		return nil, nil
	}
	return []tiny1c.StreamFormat{{
		Width:  t.header.ResX(),
		Height: t.header.ResY(),
		FPS:    []int{t.header.FPS()},
		Format: formatFromName(t.header.PixelFormat()),
	}}, nil
}

// Open asks the bridge to claim the camera.
func (t *Transport) Open(dev tiny1c.DeviceInfo) error {
	if err := t.connect(); err != nil {
		return err
	}
	return t.command("open")
}

// StartStream asks the bridge to begin frame delivery.
func (t *Transport) StartStream(param tiny1c.CameraParam) error {
	if t.conn == nil {
		return errNotConnected
	}
	err := t.command(fmt.Sprintf("start %d %d %d", param.Width, param.Height, param.FPS))
	if err != nil {
		return err
	}
	t.frameBytes = param.FrameBytes
	t.scratch = make([]byte, param.FrameBytes)
	t.conn.SetReadBuffer(param.FrameBytes * 20)
	return nil
}

// StopStream halts frame delivery. The reply can arrive behind frames
// already in flight; those are drained on the way to it.
func (t *Transport) StopStream(keepPreview bool) error {
	if t.conn == nil {
		return errNotConnected
	}
	keep := 0
	if keepPreview {
		keep = 1
	}
	err := t.command(fmt.Sprintf("stop %d", keep))
	t.frameBytes = 0
	return err
}

// SendModeSwitch asks the bridge to issue a vendor y16 command on the
// running stream.
func (t *Transport) SendModeSwitch(path tiny1c.PreviewPath, mode tiny1c.Y16Mode) error {
	if t.conn == nil {
		return errNotConnected
	}
	return t.command(fmt.Sprintf("y16 %d %d", int(path), int(mode)))
}

// AcquireFrame reads the next frame packet into buf. Reply packets
// left over from earlier commands are skipped.
func (t *Transport) AcquireFrame(buf []byte, timeout time.Duration) error {
	if t.conn == nil {
		return errNotConnected
	}
	t.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return tiny1c.ErrFrameTimeout
			}
			return err
		}
		if n == len(buf) {
			return nil
		}
	}
}

// Close releases the camera and drops the bridge connection.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	// Best effort; the bridge also releases the camera when the
	// connection drops.
	t.command("close")
	err := t.conn.Close()
	t.conn = nil
	t.header = nil
	t.frameBytes = 0
	t.scratch = nil
	return err
}

var errNotConnected = errors.New("bridge not connected")

func (t *Transport) connect() error {
	if t.conn != nil {
		return nil
	}
	conn, err := net.DialUnix("unixpacket", nil, &net.UnixAddr{
		Net:  "unixpacket",
		Name: t.path,
	})
	if err != nil {
		return fmt.Errorf("dialing bridge: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(replyTimeout))
	packet := make([]byte, headerPacketSize)
	n, err := conn.Read(packet)
	if err != nil {
		conn.Close()
		return fmt.Errorf("reading bridge header: %v", err)
	}
	header, err := headers.ReadHeaderInfo(bufio.NewReader(bytes.NewReader(packet[:n])))
	if err != nil {
		conn.Close()
		return fmt.Errorf("parsing bridge header: %v", err)
	}

	t.conn = conn
	t.header = header
	return nil
}

// command sends cmd as one packet and waits for the bridge's reply,
// draining any frame packets that arrive ahead of it.
func (t *Transport) command(cmd string) error {
	if _, err := t.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("sending %q: %v", cmd, err)
	}

	buf := t.scratch
	if buf == nil {
		buf = make([]byte, 512)
	}
	t.conn.SetReadDeadline(time.Now().Add(replyTimeout))
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			return fmt.Errorf("awaiting reply to %q: %v", cmd, err)
		}
		if t.frameBytes > 0 && n == t.frameBytes {
			continue
		}
		reply := string(buf[:n])
		switch {
		case reply == "ok":
			return nil
		case strings.HasPrefix(reply, "err: "):
			return fmt.Errorf("bridge: %s", strings.TrimPrefix(reply, "err: "))
		default:
			return fmt.Errorf("unexpected reply to %q: %q", cmd, reply)
		}
	}
}

func formatFromName(name string) tiny1c.PixelFormat {
	if len(name) != 4 {
		return 0
	}
	return tiny1c.FourCC(name[0], name[1], name[2], name[3])
}
