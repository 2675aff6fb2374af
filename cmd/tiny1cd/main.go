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

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/TheCacophonyProject/window"
	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/thermaline/thermal-capture/headers"
	"github.com/thermaline/thermal-capture/loglimiter"
	"github.com/thermaline/thermal-capture/tiny1c"
	"github.com/thermaline/thermal-capture/tiny1c/sockcam"
)

const (
	framesHz = 25 // approx

	frameLogIntervalFirstMin = 15 * framesHz
	frameLogInterval         = 60 * 5 * framesHz

	framesPerSdNotify = 5 * framesHz

	frameLoopSize = 4

	// Give up on a stream that only produces timeouts and reset the
	// camera instead.
	maxConsecutiveTimeouts = 10

	timeoutLogInterval = 30 * time.Second

	// Raw frame geometry of the simulated camera.
	simWidth  = 256
	simHeight = 384
)

var (
	version = "<not set>"
	state   = newCameraState()
)

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Simulate   bool   `arg:"-s,--simulate" help:"use a synthetic camera instead of the USB bridge"`
	Quick      bool   `arg:"-q,--quick" help:"don't cycle camera power on startup"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/tiny1cd.yaml"
	arg.MustParse(&args)
	return args
}

// acquireErr marks frame acquisition failures, which reset the camera
// rather than kill the daemon.
type acquireErr struct {
	cause error
}

func (e *acquireErr) Error() string {
	return e.cause.Error()
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	log.Print("starting d-bus service")
	if err := startService(state, conf.SnapshotDir); err != nil {
		return err
	}
	deleteSnapshots(conf.SnapshotDir)

	if !args.Simulate {
		log.Print("host initialisation")
		if _, err := host.Init(); err != nil {
			return err
		}
		if !args.Quick {
			if err := cycleCameraPower(conf.PowerPin); err != nil {
				return err
			}
		}
	}

	for {
		camera := tiny1c.New(newTransport(conf, args.Simulate))
		camera.SetLogFunc(func(t string) { log.Print(t) })
		camera.SetDeviceMatch(conf.VendorID, conf.ProductID)
		camera.SetFrameTimeout(conf.FrameTimeout)
		if err := camera.SetOutputMode(conf.OutputMode); err != nil {
			return err
		}

		log.Print("opening camera")
		param, err := camera.Open()
		if err != nil {
			return err
		}
		state.setCamera(*param)

		err = runCamera(conf, camera, param)
		if err != nil {
			if _, isAcquireErr := err.(*acquireErr); !isAcquireErr {
				return err
			}
			log.Printf("camera error: %v", err)
		}

		state.clearCamera()
		log.Print("closing camera")
		camera.Close()

		if !args.Simulate {
			if err := cycleCameraPower(conf.PowerPin); err != nil {
				return err
			}
		}
	}
}

func newTransport(conf *Config, simulate bool) tiny1c.Transport {
	if simulate {
		synthetic := tiny1c.NewSyntheticTransport(simWidth, simHeight, framesHz)
		synthetic.VendorID = conf.VendorID
		synthetic.ProductID = conf.ProductID
		return synthetic
	}
	return sockcam.New(conf.BridgeSocket)
}

// runCamera streams for as long as the recording window allows,
// sleeping through the gaps between windows.
func runCamera(conf *Config, camera *tiny1c.Camera, param *tiny1c.CameraParam) error {
	win := window.New(conf.WindowStart, conf.WindowEnd)

	for {
		if until := win.Until(); until > 0 {
			log.Printf("waiting %s for recording window", until)
			waitForWindow(win)
		}
		if err := streamWindow(conf, camera, param, win); err != nil {
			return err
		}
	}
}

// waitForWindow sleeps until the recording window opens, waking often
// enough to keep feeding the watchdog.
func waitForWindow(win *window.Window) {
	for {
		until := win.Until()
		if until <= 0 {
			return
		}
		if until > time.Minute {
			until = time.Minute
		}
		time.Sleep(until)
		daemon.SdNotify(false, "WATCHDOG=1")
	}
}

func streamWindow(conf *Config, camera *tiny1c.Camera, param *tiny1c.CameraParam, win *window.Window) error {
	log.Print("starting stream")
	err := camera.StartStream(conf.TemperatureMode, conf.Stabilisation)
	if _, isModeSwitch := err.(*tiny1c.ModeSwitchError); isModeSwitch {
		log.Printf("continuing with preview data: %v", err)
	} else if err != nil {
		return err
	}
	defer camera.StopStream()

	_, _, tempWidth, tempHeight := conf.OutputMode.PlaneDims(param.Width, param.Height)
	hasTemp := tempWidth > 0

	var loop *tiny1c.FrameLoop
	var wire []byte
	if hasTemp {
		loop = tiny1c.NewFrameLoop(frameLoopSize, tempWidth, tempHeight)
		state.setLoop(loop)
		defer state.setLoop(nil)
		wire = make([]byte, tempWidth*tempHeight*2)
	}

	fields, wireBytes := headerFields(conf, param)
	conn := dialFrameOutput(conf.FrameOutput, wireBytes, fields)
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	log.Print("reading frames")
	timeoutLog := loglimiter.New(timeoutLogInterval)
	totalFrames := 0
	notifyCount := 0
	timeouts := 0
	for {
		if !win.Active() {
			log.Print("recording window closed, stopping stream")
			return nil
		}

		if hasTemp {
			frame, err := camera.TemperatureFrame()
			if err == tiny1c.ErrFrameTimeout {
				if timeouts++; timeouts >= maxConsecutiveTimeouts {
					return &acquireErr{err}
				}
				timeoutLog.Print("frame timeout")
				continue
			} else if err != nil {
				return &acquireErr{err}
			}
			loop.Current().CopyFrom(frame)
			loop.Move()
			encodeFramePix(wire, frame)
		} else {
			raw, err := camera.RawFrame()
			if err == tiny1c.ErrFrameTimeout {
				if timeouts++; timeouts >= maxConsecutiveTimeouts {
					return &acquireErr{err}
				}
				timeoutLog.Print("frame timeout")
				continue
			} else if err != nil {
				return &acquireErr{err}
			}
			wire = raw
		}
		timeouts = 0
		totalFrames++

		if notifyCount++; notifyCount >= framesPerSdNotify {
			daemon.SdNotify(false, "WATCHDOG=1")
			notifyCount = 0
		}
		if totalFrames%frameLogIntervalFirstMin == 0 &&
			totalFrames <= 60*framesHz || totalFrames%frameLogInterval == 0 {
			log.Printf("%d frames for this stream", totalFrames)
		}

		if conn != nil {
			if _, err := conn.Write(wire); err != nil {
				log.Printf("dropping frame relay: %v", err)
				conn.Close()
				conn = nil
			}
		}
	}
}

// headerFields describes what the relay will carry: the decoded
// temperature plane when there is one, the camera's raw frames
// otherwise.
func headerFields(conf *Config, param *tiny1c.CameraParam) (map[string]interface{}, int) {
	_, _, tempWidth, tempHeight := conf.OutputMode.PlaneDims(param.Width, param.Height)

	fields := map[string]interface{}{
		headers.FPS:       param.FPS,
		headers.Model:     param.Device.Name,
		headers.VendorID:  int(param.Device.VendorID),
		headers.ProductID: int(param.Device.ProductID),
	}
	if tempWidth > 0 {
		wireBytes := tempWidth * tempHeight * 2
		fields[headers.XResolution] = tempWidth
		fields[headers.YResolution] = tempHeight
		fields[headers.FrameSize] = wireBytes
		fields[headers.PixelFormat] = "Y16 "
		return fields, wireBytes
	}
	fields[headers.XResolution] = param.Width
	fields[headers.YResolution] = param.Height
	fields[headers.FrameSize] = param.FrameBytes
	fields[headers.PixelFormat] = param.Format.String()
	return fields, param.FrameBytes
}

// dialFrameOutput connects to the frame consumer and sends the stream
// header. The relay is optional: with no consumer listening the daemon
// still answers temperature queries over d-bus.
func dialFrameOutput(path string, wireBytes int, fields map[string]interface{}) *net.UnixConn {
	log.Print("dialing frame output socket")
	conn, err := connectToFrameOutput(path)
	if err != nil {
		log.Printf("frame output unavailable (%v), continuing without relay", err)
		return nil
	}
	conn.SetWriteBuffer(wireBytes * 20)

	buf := new(bytes.Buffer)
	if err := headers.WriteHeader(buf, fields); err == nil {
		_, err = conn.Write(buf.Bytes())
	}
	if err != nil {
		log.Printf("frame output handshake failed (%v), continuing without relay", err)
		conn.Close()
		return nil
	}
	return conn
}

func encodeFramePix(dst []byte, frame *tiny1c.TempFrame) {
	for i, code := range frame.Pix {
		binary.LittleEndian.PutUint16(dst[2*i:], code)
	}
}

func logConfig(conf *Config) {
	log.Printf("bridge socket: %s", conf.BridgeSocket)
	log.Printf("frame output: %s", conf.FrameOutput)
	log.Printf("snapshot dir: %s", conf.SnapshotDir)
	log.Printf("power pin: %s", conf.PowerPin)
	log.Printf("device match: %04x:%04x", conf.VendorID, conf.ProductID)
	log.Printf("output mode: %s", conf.OutputMode)
	log.Printf("temperature mode: %v (stabilisation %s)", conf.TemperatureMode, conf.Stabilisation)
	log.Printf("frame timeout: %s", conf.FrameTimeout)
	if !conf.WindowStart.IsZero() {
		log.Printf("recording window: %02d:%02d to %02d:%02d",
			conf.WindowStart.Hour(), conf.WindowStart.Minute(),
			conf.WindowEnd.Hour(), conf.WindowEnd.Minute())
	}
}

func cycleCameraPower(pinName string) error {
	if pinName == "" {
		return nil
	}

	pin := gpioreg.ByName(pinName)

	log.Print("turning camera power off")
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to set camera power pin low: %v", err)
	}
	time.Sleep(2 * time.Second)

	log.Print("turning camera power on")
	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to set camera power pin high: %v", err)
	}

	log.Print("waiting for camera startup")
	time.Sleep(5 * time.Second)
	log.Print("camera should be ready")
	return nil
}

func connectToFrameOutput(path string) (*net.UnixConn, error) {
	return net.DialUnix("unixpacket", nil, &net.UnixAddr{
		Net:  "unixpacket",
		Name: path,
	})
}
