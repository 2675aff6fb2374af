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
	"errors"
	"sync"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/thermaline/thermal-capture/irtemp"
	"github.com/thermaline/thermal-capture/tiny1c"
)

const (
	dbusName = "org.thermaline.tiny1cd"
	dbusPath = "/org/thermaline/tiny1cd"
)

var (
	calc = irtemp.NewCalculator(nil)

	errNoFrames   = errors.New("no frames yet")
	errNoCamera   = errors.New("camera not open")
	errOutOfFrame = errors.New("query outside frame")
)

// cameraState is what the d-bus service reads from the streaming loop:
// the recent temperature frames and the parameters of the open camera.
// The streaming side updates it as sessions and windows come and go.
type cameraState struct {
	mu   sync.Mutex
	loop *tiny1c.FrameLoop
	info tiny1c.CameraParam
}

func newCameraState() *cameraState {
	return &cameraState{}
}

func (s *cameraState) setCamera(info tiny1c.CameraParam) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

func (s *cameraState) clearCamera() {
	s.mu.Lock()
	s.info = tiny1c.CameraParam{}
	s.loop = nil
	s.mu.Unlock()
}

func (s *cameraState) setLoop(loop *tiny1c.FrameLoop) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

func (s *cameraState) cameraInfo() tiny1c.CameraParam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// recentFrame returns a copy of the most recent complete temperature
// frame, or nil if there isn't one yet.
func (s *cameraState) recentFrame() *tiny1c.TempFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop == nil {
		return nil
	}
	return s.loop.CopyRecent()
}

type service struct {
	state *cameraState
	dir   string
}

func startService(state *cameraState, dir string) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{
		state: state,
		dir:   dir,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")

	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// TakeSnapshot will save the next frame as a still
func (s *service) TakeSnapshot() *dbus.Error {
	return dbusErr("TakeSnapshot", newSnapshot(s.dir, false))
}

// TakeRawSnapshot will save the next frame as an unnormalised still
func (s *service) TakeRawSnapshot() *dbus.Error {
	return dbusErr("TakeRawSnapshot", newSnapshot(s.dir, true))
}

// PointTemp reads the temperature at a pixel of the most recent
// frame, in degrees Celsius.
func (s *service) PointTemp(x, y int32) (float64, *dbus.Error) {
	frame := s.state.recentFrame()
	if frame == nil {
		return 0, dbusErr("PointTemp", errNoFrames)
	}
	temp, ok := calc.PointTemp(frame, int(x), int(y))
	if !ok {
		return 0, dbusErr("PointTemp", errOutOfFrame)
	}
	return float64(temp), nil
}

// RectTemp reports the max, min and average temperature over a
// rectangle of the most recent frame.
func (s *service) RectTemp(x, y, w, h int32) (float64, float64, float64, *dbus.Error) {
	frame := s.state.recentFrame()
	if frame == nil {
		return 0, 0, 0, dbusErr("RectTemp", errNoFrames)
	}
	stats, ok := calc.RectTemp(frame, int(x), int(y), int(w), int(h))
	if !ok {
		return 0, 0, 0, dbusErr("RectTemp", errOutOfFrame)
	}
	return float64(stats.Max), float64(stats.Min), float64(stats.Avg), nil
}

// LineTemp reports the max, min and average temperature along a line
// across the most recent frame.
func (s *service) LineTemp(x1, y1, x2, y2 int32) (float64, float64, float64, *dbus.Error) {
	frame := s.state.recentFrame()
	if frame == nil {
		return 0, 0, 0, dbusErr("LineTemp", errNoFrames)
	}
	stats, ok := calc.LineTemp(frame, int(x1), int(y1), int(x2), int(y2))
	if !ok {
		return 0, 0, 0, dbusErr("LineTemp", errOutOfFrame)
	}
	return float64(stats.Max), float64(stats.Min), float64(stats.Avg), nil
}

// CameraInfo reports the open camera's name and raw frame geometry.
func (s *service) CameraInfo() (string, int32, int32, int32, *dbus.Error) {
	info := s.state.cameraInfo()
	if info.Width == 0 {
		return "", 0, 0, 0, dbusErr("CameraInfo", errNoCamera)
	}
	return info.Device.Name, int32(info.Width), int32(info.Height), int32(info.FPS), nil
}

func dbusErr(method string, err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return &dbus.Error{
		Name: dbusName + "." + method,
		Body: []interface{}{err.Error()},
	}
}
