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
	"fmt"
	"io/ioutil"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/thermaline/thermal-capture/tiny1c"
)

type Config struct {
	BridgeSocket    string
	FrameOutput     string
	SnapshotDir     string
	PowerPin        string
	VendorID        uint16
	ProductID       uint16
	OutputMode      tiny1c.OutputMode
	TemperatureMode bool
	Stabilisation   time.Duration
	FrameTimeout    time.Duration
	WindowStart     time.Time
	WindowEnd       time.Time
}

func (conf *Config) Validate() error {
	if conf.FrameTimeout <= 0 {
		return errors.New("frame-timeout-ms must be positive")
	}
	if conf.Stabilisation < 0 {
		return errors.New("stabilisation-secs can't be negative")
	}
	if conf.WindowStart.IsZero() && !conf.WindowEnd.IsZero() {
		return errors.New("window-end is set but window-start isn't")
	}
	if !conf.WindowStart.IsZero() && conf.WindowEnd.IsZero() {
		return errors.New("window-start is set but window-end isn't")
	}
	return nil
}

type rawConfig struct {
	BridgeSocket      string `yaml:"bridge-socket"`
	FrameOutput       string `yaml:"frame-output"`
	SnapshotDir       string `yaml:"snapshot-dir"`
	PowerPin          string `yaml:"power-pin"`
	VendorID          int    `yaml:"vendor-id"`
	ProductID         int    `yaml:"product-id"`
	OutputMode        string `yaml:"output-mode"`
	TemperatureMode   bool   `yaml:"temperature-mode"`
	StabilisationSecs int    `yaml:"stabilisation-secs"`
	FrameTimeoutMS    int    `yaml:"frame-timeout-ms"`
	WindowStart       string `yaml:"window-start"`
	WindowEnd         string `yaml:"window-end"`
}

var defaultConfig = rawConfig{
	BridgeSocket:      "/var/run/tiny1c-bridge",
	FrameOutput:       "/var/run/tiny1c-frames",
	SnapshotDir:       "/var/spool/tiny1c",
	PowerPin:          "GPIO23",
	VendorID:          tiny1c.DefaultVendorID,
	ProductID:         tiny1c.DefaultProductID,
	OutputMode:        "image+temp",
	TemperatureMode:   true,
	StabilisationSecs: 5,
	FrameTimeoutMS:    1000,
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	raw := defaultConfig
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, err
	}

	if raw.VendorID < 1 || raw.VendorID > 0xFFFF {
		return nil, errors.New("vendor-id out of range")
	}
	if raw.ProductID < 1 || raw.ProductID > 0xFFFF {
		return nil, errors.New("product-id out of range")
	}
	mode, err := parseOutputMode(raw.OutputMode)
	if err != nil {
		return nil, err
	}

	conf := &Config{
		BridgeSocket:    raw.BridgeSocket,
		FrameOutput:     raw.FrameOutput,
		SnapshotDir:     raw.SnapshotDir,
		PowerPin:        raw.PowerPin,
		VendorID:        uint16(raw.VendorID),
		ProductID:       uint16(raw.ProductID),
		OutputMode:      mode,
		TemperatureMode: raw.TemperatureMode,
		Stabilisation:   time.Duration(raw.StabilisationSecs) * time.Second,
		FrameTimeout:    time.Duration(raw.FrameTimeoutMS) * time.Millisecond,
	}

	const timeOnly = "15:04"
	if raw.WindowStart != "" {
		t, err := time.Parse(timeOnly, raw.WindowStart)
		if err != nil {
			return nil, errors.New("invalid window-start")
		}
		conf.WindowStart = t
	}
	if raw.WindowEnd != "" {
		t, err := time.Parse(timeOnly, raw.WindowEnd)
		if err != nil {
			return nil, errors.New("invalid window-end")
		}
		conf.WindowEnd = t
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func parseOutputMode(name string) (tiny1c.OutputMode, error) {
	switch name {
	case "image+temp":
		return tiny1c.OutputImageAndTemp, nil
	case "image":
		return tiny1c.OutputImageOnly, nil
	case "temp":
		return tiny1c.OutputTempOnly, nil
	}
	return 0, fmt.Errorf("unknown output-mode %q", name)
}
