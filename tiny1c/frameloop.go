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

import "sync"

// NewFrameLoop returns a FrameLoop of size preallocated temperature
// frames with the given dimensions. Size must be at least 3 for
// CopyRecent to stay clear of the frame being written.
func NewFrameLoop(size, width, height int) *FrameLoop {
	frames := make([]*TempFrame, size)
	for i := range frames {
		frames[i] = NewTempFrame(width, height)
	}
	return &FrameLoop{
		size:   size,
		frames: frames,
	}
}

// FrameLoop stores the last few temperature frames in a loop that is
// overwritten as it goes round. It lets one goroutine keep writing
// frames while others take copies of the most recent complete one.
// Beware: all frames returned by Move and Current will at some point
// be overwritten.
type FrameLoop struct {
	size         int
	currentIndex int
	moves        int
	frames       []*TempFrame
	mu           sync.Mutex
}

// Move advances the loop and returns the new current frame for the
// writer to fill.
func (fl *FrameLoop) Move() *TempFrame {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.currentIndex = (fl.currentIndex + 1) % fl.size
	fl.moves++
	return fl.frames[fl.currentIndex]
}

// Current returns the frame most recently handed out by Move.
func (fl *FrameLoop) Current() *TempFrame {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	return fl.frames[fl.currentIndex]
}

// CopyRecent returns a copy of the most recent fully written frame,
// or nil if the loop hasn't gone around far enough yet. The current
// frame is skipped as the writer may still be filling it.
func (fl *FrameLoop) CopyRecent() *TempFrame {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.moves < 2 {
		return nil
	}
	previousIndex := (fl.currentIndex - 1 + fl.size) % fl.size
	return fl.frames[previousIndex].CreateCopy()
}
