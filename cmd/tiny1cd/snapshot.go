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
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path"
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

const (
	snapshotName    = "still.png"
	rawSnapshotName = "still-raw.png"

	snapshotsPerSecond = 2
)

var (
	previousSnapshotID = 0
	snapshotMu         sync.Mutex

	// The bucket bounds how often snapshot requests reach the disk.
	snapshotBucket = ratelimit.NewBucketWithRateAndClock(
		snapshotsPerSecond, 1, new(realClock))
)

// newSnapshot writes the most recent temperature frame to the
// snapshot directory as a 16-bit PNG. Values are stretched over the
// full grey range unless raw is set. Requests arriving faster than
// the rate limit, or repeating a frame already written, quietly keep
// the previous still.
func newSnapshot(dir string, raw bool) error {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()

	if snapshotBucket.TakeAvailable(1) == 0 {
		return nil
	}

	frame := state.recentFrame()
	if frame == nil {
		return errNoFrames
	}

	g16 := image.NewGray16(image.Rect(0, 0, frame.Width, frame.Height))
	// Max and min are needed for normalization of the frame
	var valMax uint16
	var valMin uint16 = math.MaxUint16
	var id int
	for _, code := range frame.Pix {
		id += int(code)
		valMax = maxUint16(valMax, code)
		valMin = minUint16(valMin, code)
	}

	// Check if frame had already been processed
	if id == previousSnapshotID {
		return nil
	}
	previousSnapshotID = id

	// A flat frame normalises to black.
	var norm uint16
	if valMax > valMin {
		norm = math.MaxUint16 / (valMax - valMin)
	}
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			code := frame.At(x, y)
			if raw {
				g16.SetGray16(x, y, color.Gray16{Y: code})
			} else {
				g16.SetGray16(x, y, color.Gray16{Y: (code - valMin) * norm})
			}
		}
	}

	filename := snapshotName
	if raw {
		filename = rawSnapshotName
	}
	out, err := os.Create(path.Join(dir, filename))
	if err != nil {
		return err
	}
	defer out.Close()

	return png.Encode(out, g16)
}

func deleteSnapshots(dir string) {
	deleteSnapshotFile(dir, snapshotName)
	deleteSnapshotFile(dir, rawSnapshotName)
}

func deleteSnapshotFile(dir, basename string) {
	if err := os.Remove(path.Join(dir, basename)); err != nil && !os.IsNotExist(err) {
		log.Printf("error deleting snapshot image: %v", err)
	}
}

func maxUint16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

func minUint16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

// realClock implements ratelimit.Clock in terms of standard time
// functions.
type realClock struct{}

// Now implements Clock.Now by calling time.Now.
func (realClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock.Sleep by calling time.Sleep.
func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
