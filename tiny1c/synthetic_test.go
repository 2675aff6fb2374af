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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticCameraSession(t *testing.T) {
	transport := NewSyntheticTransport(16, 16, 0)
	camera := newTestCamera(transport)

	devs, err := camera.ListDevices()
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, "synthetic tiny1c", devs[0].Name)

	param, err := camera.Open()
	require.NoError(t, err)
	assert.Equal(t, 16*16*2, param.FrameBytes)

	require.NoError(t, camera.StartStream(true, 0))
	require.True(t, camera.TempArmed())

	frame, err := camera.TemperatureFrame()
	require.NoError(t, err)
	assert.Equal(t, 16, frame.Width)
	assert.Equal(t, 8, frame.Height)

	require.NoError(t, camera.Close())
}

func TestSyntheticTemperatureCodes(t *testing.T) {
	transport := NewSyntheticTransport(16, 16, 0)
	camera := newTestCamera(transport)
	_, err := camera.Open()
	require.NoError(t, err)
	require.NoError(t, camera.StartStream(true, 0))

	frame, err := camera.TemperatureFrame()
	require.NoError(t, err)

	// Corner pixels sit at ambient, and somewhere there is a hot
	// spot.
	ambient := codeForCelsius(transport.Ambient)
	hot := codeForCelsius(transport.HotSpot)
	assert.Equal(t, ambient, frame.At(15, 7))

	found := false
	for _, code := range frame.Pix {
		if code == hot {
			found = true
			break
		}
	}
	assert.True(t, found, "expected a hot spot in the frame")
}

func TestSyntheticPreviewValuesBeforeModeSwitch(t *testing.T) {
	transport := NewSyntheticTransport(16, 16, 0)
	camera := newTestCamera(transport)
	_, err := camera.Open()
	require.NoError(t, err)
	require.NoError(t, camera.StartStream(false, 0))

	frame, err := camera.TemperatureFrame()
	require.NoError(t, err)

	// Preview values are far away from plausible temperature codes.
	ambient := codeForCelsius(transport.Ambient)
	assert.NotEqual(t, ambient, frame.At(0, 0))
	assert.True(t, frame.At(0, 0) < 4000)
}

func TestSyntheticHotSpotMoves(t *testing.T) {
	transport := NewSyntheticTransport(32, 32, 0)
	camera := newTestCamera(transport)
	_, err := camera.Open()
	require.NoError(t, err)
	require.NoError(t, camera.StartStream(true, 0))

	first, err := camera.TemperatureFrame()
	require.NoError(t, err)
	firstCopy := first.CreateCopy()

	second, err := camera.TemperatureFrame()
	require.NoError(t, err)

	assert.NotEqual(t, firstCopy.Pix, second.Pix)
}

func TestSyntheticStopWithoutPreviewDropsTempMode(t *testing.T) {
	transport := NewSyntheticTransport(16, 16, 0)
	require.NoError(t, transport.Open(DeviceInfo{}))
	require.NoError(t, transport.StartStream(CameraParam{}))
	require.NoError(t, transport.SendModeSwitch(PreviewPath0, Y16ModeTemperature))
	assert.True(t, transport.tempMode)

	// Keeping the device side preview also keeps temperature mode.
	require.NoError(t, transport.StopStream(true))
	assert.True(t, transport.tempMode)

	require.NoError(t, transport.StartStream(CameraParam{}))
	require.NoError(t, transport.StopStream(false))
	assert.False(t, transport.tempMode)
}
