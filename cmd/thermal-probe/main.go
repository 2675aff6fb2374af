// thermal-capture - thermal camera streaming and temperature measurement
//  Copyright (C) 2023, The Thermaline Project
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

// thermal-probe drives a single camera session from the command line:
// open, stream, switch to temperature output and read some
// temperatures. Useful for checking a camera without the daemon.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	arg "github.com/alexflint/go-arg"

	"github.com/thermaline/thermal-capture/irtemp"
	"github.com/thermaline/thermal-capture/tiny1c"
	"github.com/thermaline/thermal-capture/tiny1c/sockcam"
)

var version = "<not set>"

type Args struct {
	Socket        string `arg:"--socket" help:"path to the USB bridge socket"`
	Simulate      bool   `arg:"-s,--simulate" help:"use a synthetic camera instead of the USB bridge"`
	List          bool   `arg:"-l,--list" help:"list attached cameras and exit"`
	NoTemp        bool   `arg:"--no-temp" help:"skip the temperature mode switch"`
	Stabilisation int    `arg:"--stabilisation" help:"seconds to wait before the temperature mode switch (0 for default)"`
	Frames        int    `arg:"-n,--frames" help:"number of frames to read"`
	Point         string `arg:"--point" help:"probe a pixel, as X,Y"`
	Rect          string `arg:"--rect" help:"probe a rectangle, as X,Y,W,H"`
	Line          string `arg:"--line" help:"probe a line, as X1,Y1,X2,Y2"`
	Still         string `arg:"--still" help:"write the last temperature frame to this PNG file"`
	Timestamps    bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.Socket = "/var/run/tiny1c-bridge"
	args.Frames = 10
	arg.MustParse(&args)
	return args
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
	if args.Frames < 1 {
		args.Frames = 1
	}

	var transport tiny1c.Transport
	if args.Simulate {
		transport = tiny1c.NewSyntheticTransport(256, 384, 25)
	} else {
		transport = sockcam.New(args.Socket)
	}
	camera := tiny1c.New(transport)
	camera.SetLogFunc(func(t string) { log.Print(t) })

	if args.List {
		devices, err := camera.ListDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			log.Print("no cameras attached")
			return nil
		}
		for _, device := range devices {
			log.Printf("%v", device)
		}
		return nil
	}

	if _, err := camera.Open(); err != nil {
		return err
	}
	defer camera.Close()

	stabilisation := time.Duration(args.Stabilisation) * time.Second
	err := camera.StartStream(!args.NoTemp, stabilisation)
	if _, isModeSwitch := err.(*tiny1c.ModeSwitchError); isModeSwitch {
		log.Printf("continuing with preview data: %v", err)
	} else if err != nil {
		return err
	}

	log.Printf("reading %d frames", args.Frames)
	var frame *tiny1c.TempFrame
	t0 := time.Now()
	for i := 0; i < args.Frames; i++ {
		frame, err = camera.TemperatureFrame()
		if err != nil {
			return err
		}
	}
	log.Printf("%.1f Hz", float64(args.Frames)/time.Since(t0).Seconds())

	if err := probe(&args, frame); err != nil {
		return err
	}

	if args.Still != "" {
		if err := writeStill(args.Still, frame); err != nil {
			return err
		}
		log.Printf("wrote %s", args.Still)
	}
	return nil
}

func probe(args *Args, frame *tiny1c.TempFrame) error {
	calc := irtemp.NewCalculator(nil)

	if args.Point == "" && args.Rect == "" && args.Line == "" {
		args.Point = fmt.Sprintf("%d,%d", frame.Width/2, frame.Height/2)
	}

	if args.Point != "" {
		v, err := parseInts(args.Point, 2)
		if err != nil {
			return fmt.Errorf("--point: %v", err)
		}
		temp, ok := calc.PointTemp(frame, v[0], v[1])
		if !ok {
			return fmt.Errorf("--point: outside %dx%d frame", frame.Width, frame.Height)
		}
		log.Printf("point (%d,%d): %.2f°C", v[0], v[1], temp)
	}

	if args.Rect != "" {
		v, err := parseInts(args.Rect, 4)
		if err != nil {
			return fmt.Errorf("--rect: %v", err)
		}
		stats, ok := calc.RectTemp(frame, v[0], v[1], v[2], v[3])
		if !ok {
			return fmt.Errorf("--rect: outside %dx%d frame", frame.Width, frame.Height)
		}
		log.Printf("rect (%d,%d %dx%d): max %.2f°C min %.2f°C avg %.2f°C",
			v[0], v[1], v[2], v[3], stats.Max, stats.Min, stats.Avg)
	}

	if args.Line != "" {
		v, err := parseInts(args.Line, 4)
		if err != nil {
			return fmt.Errorf("--line: %v", err)
		}
		stats, ok := calc.LineTemp(frame, v[0], v[1], v[2], v[3])
		if !ok {
			return fmt.Errorf("--line: outside %dx%d frame", frame.Width, frame.Height)
		}
		log.Printf("line (%d,%d)-(%d,%d): max %.2f°C min %.2f°C avg %.2f°C",
			v[0], v[1], v[2], v[3], stats.Max, stats.Min, stats.Avg)
	}
	return nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values", n)
	}
	out := make([]int, n)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad value %q", part)
		}
		out[i] = v
	}
	return out, nil
}

// writeStill saves the frame as a 16 bit PNG with its values
// stretched over the full grey range.
func writeStill(filename string, frame *tiny1c.TempFrame) error {
	g16 := image.NewGray16(image.Rect(0, 0, frame.Width, frame.Height))
	var valMax uint16
	var valMin uint16 = math.MaxUint16
	for _, code := range frame.Pix {
		if code > valMax {
			valMax = code
		}
		if code < valMin {
			valMin = code
		}
	}
	var norm uint16
	if valMax > valMin {
		norm = math.MaxUint16 / (valMax - valMin)
	}
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			g16.SetGray16(x, y, color.Gray16{Y: (frame.At(x, y) - valMin) * norm})
		}
	}

	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, g16)
}
