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
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

const (
	// DefaultVendorID and DefaultProductID match the Tiny1C and P2
	// family camera modules.
	DefaultVendorID  = 0x0BDA
	DefaultProductID = 0x5840

	// DefaultFrameTimeout bounds a single frame acquisition.
	DefaultFrameTimeout = time.Second

	// DefaultStabilisation is how long the sensor needs after stream
	// start before it will accept the temperature mode switch.
	DefaultStabilisation = 5 * time.Second
)

var (
	ErrNoDevice     = errors.New("no matching camera device")
	ErrNotOpen      = errors.New("camera not open")
	ErrStreaming    = errors.New("streaming already active")
	ErrNotStreaming = errors.New("streaming not active")
	ErrFrameTimeout = errors.New("frame timeout")
	ErrShortBuffer  = errors.New("raw frame too short for configured planes")
	ErrAcquireBusy  = errors.New("frame acquisition already in progress")
	ErrNoImagePlane = errors.New("output mode has no image plane")
	ErrNoTempPlane  = errors.New("output mode has no temperature plane")
)

// ModeSwitchError reports that the temperature mode switch failed
// after stream start. The stream itself is still running; the 16-bit
// plane just carries preview data instead of temperature codes.
type ModeSwitchError struct {
	cause error
}

func (e *ModeSwitchError) Error() string {
	return fmt.Sprintf("temperature mode switch failed: %v", e.cause)
}

// New returns a new Camera using the given transport. If the
// transport also implements Commander it is used for the temperature
// mode switch.
func New(transport Transport) *Camera {
	c := &Camera{
		transport:    transport,
		vendorID:     DefaultVendorID,
		productID:    DefaultProductID,
		outputMode:   OutputImageAndTemp,
		frameTimeout: DefaultFrameTimeout,
		sleep:        time.Sleep,
		log:          func(string) {},
	}
	if commander, ok := transport.(Commander); ok {
		c.commander = commander
	}
	return c
}

// Camera manages a streaming session with a Tiny1C class thermal
// camera. It is not goroutine safe: serialise use externally. The one
// concession is that a frame acquisition started while another is in
// flight fails with ErrAcquireBusy instead of corrupting the working
// buffers.
type Camera struct {
	transport Transport
	commander Commander

	vendorID     uint16
	productID    uint16
	outputMode   OutputMode
	frameTimeout time.Duration
	sleep        func(time.Duration)
	log          func(string)

	open      bool
	streaming bool
	tempArmed bool
	param     *CameraParam
	buffers   *frameBuffers
	acquiring int32
}

func (c *Camera) SetLogFunc(log func(string)) {
	c.log = log
}

// SetSleepFunc overrides the stabilisation wait. It exists so tests
// don't have to sit through the real thing.
func (c *Camera) SetSleepFunc(sleep func(time.Duration)) {
	c.sleep = sleep
}

// SetCommander overrides the command channel picked up from the
// transport, for devices with a separate command path.
func (c *Camera) SetCommander(commander Commander) {
	c.commander = commander
}

// SetDeviceMatch changes the vendor and product IDs that Open looks
// for.
func (c *Camera) SetDeviceMatch(vendorID, productID uint16) {
	c.vendorID = vendorID
	c.productID = productID
}

// SetOutputMode changes the plane layout used for subsequent streams.
// It can't be changed while streaming.
func (c *Camera) SetOutputMode(mode OutputMode) error {
	if c.streaming {
		return ErrStreaming
	}
	c.outputMode = mode
	return nil
}

// SetFrameTimeout changes how long a single frame acquisition may
// take.
func (c *Camera) SetFrameTimeout(timeout time.Duration) {
	c.frameTimeout = timeout
	if c.param != nil {
		c.param.FrameTimeout = timeout
	}
}

// ListDevices reports the cameras the transport can currently see,
// whether or not they match the configured vendor and product IDs.
func (c *Camera) ListDevices() ([]DeviceInfo, error) {
	return c.transport.Enumerate()
}

// Open finds the first attached camera matching the configured vendor
// and product IDs, picks the device's preferred stream format and
// opens it.
//
// Opening an already open camera succeeds without touching the device
// and returns the parameters negotiated the first time. Long standing
// callers treat Open as "ensure open", surprising as that is.
func (c *Camera) Open() (*CameraParam, error) {
	if c.open {
		return c.paramCopy(), nil
	}

	devs, err := c.transport.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %v", err)
	}
	dev, found := matchDevice(devs, c.vendorID, c.productID)
	if !found {
		return nil, ErrNoDevice
	}

	formats, err := c.transport.StreamFormats(dev)
	if err != nil {
		return nil, fmt.Errorf("reading stream formats of %v: %v", dev, err)
	}
	if len(formats) == 0 || len(formats[0].FPS) == 0 {
		return nil, fmt.Errorf("%v offers no usable stream format", dev)
	}
	format := formats[0]

	if err := c.transport.Open(dev); err != nil {
		return nil, fmt.Errorf("opening %v: %v", dev, err)
	}

	c.param = &CameraParam{
		Device:       dev,
		Width:        format.Width,
		Height:       format.Height,
		FPS:          format.FPS[0],
		Format:       format.Format,
		FrameBytes:   format.Width * format.Height * 2,
		FrameTimeout: c.frameTimeout,
	}
	c.open = true
	c.log(fmt.Sprintf("opened %v (%dx%d@%dfps)", dev, format.Width, format.Height, format.FPS[0]))
	return c.paramCopy(), nil
}

// StartStream allocates the working buffers and starts frame
// delivery. The camera must be open and not already streaming. If the
// device refuses to start the buffers are released again and the
// camera stays open.
//
// With tempMode set the sensor is left alone for the stabilisation
// period after stream start and then switched to temperature output.
// A failed switch is reported as *ModeSwitchError with the stream
// still running; the caller decides whether image only frames are
// worth keeping. stabilisation <= 0 selects DefaultStabilisation.
func (c *Camera) StartStream(tempMode bool, stabilisation time.Duration) error {
	if !c.open {
		return ErrNotOpen
	}
	if c.streaming {
		return ErrStreaming
	}

	buffers, err := newFrameBuffers(c.param, c.outputMode)
	if err != nil {
		return err
	}
	if err := c.transport.StartStream(*c.param); err != nil {
		return fmt.Errorf("starting stream: %v", err)
	}
	c.buffers = buffers
	c.streaming = true

	if !tempMode {
		return nil
	}

	if stabilisation <= 0 {
		stabilisation = DefaultStabilisation
	}
	c.log(fmt.Sprintf("waiting %s for sensor stabilisation", stabilisation))
	c.sleep(stabilisation)

	if c.commander == nil {
		return &ModeSwitchError{cause: errors.New("transport has no command channel")}
	}
	if err := c.commander.SendModeSwitch(PreviewPath0, Y16ModeTemperature); err != nil {
		return &ModeSwitchError{cause: err}
	}
	c.tempArmed = true
	c.log("temperature mode enabled")
	return nil
}

// StopStream halts frame delivery and drops the working buffers,
// returning the camera to the open state. The device keeps its own
// preview pipeline warm so a later StartStream skips the sensor
// warmup. Stopping a stopped camera is a no-op.
func (c *Camera) StopStream() error {
	if !c.streaming {
		return nil
	}
	err := c.transport.StopStream(true)
	c.streaming = false
	c.tempArmed = false
	c.buffers = nil
	if err != nil {
		return fmt.Errorf("stopping stream: %v", err)
	}
	return nil
}

// Close stops streaming if necessary and releases the device. Closing
// a closed camera is a no-op. State is torn down even when the device
// reports errors on the way.
func (c *Camera) Close() error {
	if !c.open {
		return nil
	}
	stopErr := c.StopStream()
	closeErr := c.transport.Close()
	c.open = false
	c.param = nil
	if stopErr != nil {
		return stopErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing camera: %v", closeErr)
	}
	return nil
}

// RawFrame acquires the next frame and returns it undemultiplexed.
// The returned slice is reused by the next acquisition: copy it if
// you want to keep it.
func (c *Camera) RawFrame() ([]byte, error) {
	if err := c.beginAcquire(); err != nil {
		return nil, err
	}
	defer c.endAcquire()

	if err := c.nextFrame(); err != nil {
		return nil, err
	}
	return c.buffers.raw, nil
}

// ImageFrame acquires the next frame and returns its image plane, 2
// bytes per pixel in the stream's pixel format. Same reuse caveat as
// RawFrame.
func (c *Camera) ImageFrame() ([]byte, error) {
	if err := c.beginAcquire(); err != nil {
		return nil, err
	}
	defer c.endAcquire()

	if !c.streaming {
		return nil, ErrNotStreaming
	}
	if c.buffers.imageBytes == 0 {
		return nil, ErrNoImagePlane
	}
	if err := c.nextFrame(); err != nil {
		return nil, err
	}
	if err := c.buffers.split(); err != nil {
		return nil, err
	}
	return c.buffers.image, nil
}

// TemperatureFrame acquires the next frame and returns its decoded
// temperature plane. The returned frame is reused by the next
// acquisition: snapshot it with CreateCopy before keeping it.
func (c *Camera) TemperatureFrame() (*TempFrame, error) {
	if err := c.beginAcquire(); err != nil {
		return nil, err
	}
	defer c.endAcquire()

	if !c.streaming {
		return nil, ErrNotStreaming
	}
	if c.buffers.tempBytes == 0 {
		return nil, ErrNoTempPlane
	}
	if err := c.nextFrame(); err != nil {
		return nil, err
	}
	if err := c.buffers.split(); err != nil {
		return nil, err
	}
	c.buffers.decodeTemp()
	return c.buffers.tempFrame, nil
}

// Params returns a copy of the parameters negotiated at open time, or
// nil if the camera isn't open.
func (c *Camera) Params() *CameraParam {
	return c.paramCopy()
}

// CameraInfo returns the raw frame dimensions and rate of the open
// camera, or zeros if it isn't open.
func (c *Camera) CameraInfo() (width, height, fps int) {
	if c.param == nil {
		return 0, 0, 0
	}
	return c.param.Width, c.param.Height, c.param.FPS
}

func (c *Camera) Opened() bool {
	return c.open
}

func (c *Camera) Streaming() bool {
	return c.streaming
}

// TempArmed reports whether the device has acknowledged the switch to
// temperature output for the current stream.
func (c *Camera) TempArmed() bool {
	return c.tempArmed
}

func (c *Camera) nextFrame() error {
	if !c.streaming {
		return ErrNotStreaming
	}
	if err := c.transport.AcquireFrame(c.buffers.raw, c.frameTimeout); err != nil {
		if err == ErrFrameTimeout {
			return err
		}
		return fmt.Errorf("acquiring frame: %v", err)
	}
	return nil
}

func (c *Camera) beginAcquire() error {
	if !atomic.CompareAndSwapInt32(&c.acquiring, 0, 1) {
		return ErrAcquireBusy
	}
	return nil
}

func (c *Camera) endAcquire() {
	atomic.StoreInt32(&c.acquiring, 0)
}

func (c *Camera) paramCopy() *CameraParam {
	if c.param == nil {
		return nil
	}
	param := *c.param
	return &param
}

func matchDevice(devs []DeviceInfo, vendorID, productID uint16) (DeviceInfo, bool) {
	for _, dev := range devs {
		if dev.VendorID == vendorID && dev.ProductID == productID {
			return dev, true
		}
	}
	return DeviceInfo{}, false
}
