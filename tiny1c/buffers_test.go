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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRaw(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	image := make([]byte, 6)
	temp := make([]byte, 2)

	require.NoError(t, splitRaw(raw, 6, 2, image, temp))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, image)
	assert.Equal(t, []byte{7, 8}, temp)
}

func TestSplitRawShortBuffer(t *testing.T) {
	raw := []byte{1, 2, 3}
	err := splitRaw(raw, 2, 2, make([]byte, 2), make([]byte, 2))
	assert.Equal(t, ErrShortBuffer, err)
}

func TestSplitRawSinglePlane(t *testing.T) {
	raw := []byte{9, 9, 9, 9}
	temp := make([]byte, 4)
	require.NoError(t, splitRaw(raw, 0, 4, nil, temp))
	assert.Equal(t, raw, temp)
}

func TestPlaneDims(t *testing.T) {
	iw, ih, tw, th := OutputImageAndTemp.PlaneDims(256, 384)
	assert.Equal(t, []int{256, 192, 256, 192}, []int{iw, ih, tw, th})

	iw, ih, tw, th = OutputImageOnly.PlaneDims(256, 384)
	assert.Equal(t, []int{256, 384, 0, 0}, []int{iw, ih, tw, th})

	iw, ih, tw, th = OutputTempOnly.PlaneDims(256, 384)
	assert.Equal(t, []int{0, 0, 256, 384}, []int{iw, ih, tw, th})
}

func TestFrameBuffersCoverFrame(t *testing.T) {
	param := &CameraParam{Width: 256, Height: 384, FrameBytes: 256 * 384 * 2}

	buffers, err := newFrameBuffers(param, OutputImageAndTemp)
	require.NoError(t, err)
	assert.Len(t, buffers.raw, param.FrameBytes)
	assert.Equal(t, buffers.imageBytes+buffers.tempBytes, param.FrameBytes)
	assert.Len(t, buffers.image, 256*192*2)
	assert.Equal(t, 256*192*3, cap(buffers.image))
	assert.Equal(t, 256, buffers.tempFrame.Width)
	assert.Equal(t, 192, buffers.tempFrame.Height)
}

func TestFrameBuffersRejectOddHeightSplit(t *testing.T) {
	param := &CameraParam{Width: 10, Height: 5, FrameBytes: 100}
	_, err := newFrameBuffers(param, OutputImageAndTemp)
	assert.Error(t, err)
}

func TestFrameBuffersRejectMismatchedFrameSize(t *testing.T) {
	param := &CameraParam{Width: 10, Height: 4, FrameBytes: 99}
	_, err := newFrameBuffers(param, OutputImageAndTemp)
	assert.Error(t, err)
}
