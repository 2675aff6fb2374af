package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaline/thermal-capture/tiny1c"
)

func TestAllDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(""))
	require.NoError(t, err)
	require.NoError(t, conf.Validate())

	assert.Equal(t, Config{
		BridgeSocket:    "/var/run/tiny1c-bridge",
		FrameOutput:     "/var/run/tiny1c-frames",
		SnapshotDir:     "/var/spool/tiny1c",
		PowerPin:        "GPIO23",
		VendorID:        0x0BDA,
		ProductID:       0x5840,
		OutputMode:      tiny1c.OutputImageAndTemp,
		TemperatureMode: true,
		Stabilisation:   5 * time.Second,
		FrameTimeout:    time.Second,
	}, *conf)
}

func TestAllSet(t *testing.T) {
	// All config set at non-default values.
	config := []byte(`
bridge-socket: "/tmp/bridge"
frame-output: "/tmp/frames"
snapshot-dir: "/tmp/snaps"
power-pin: "PIN"
vendor-id: 0x1A2B
product-id: 0x3C4D
output-mode: "temp"
temperature-mode: false
stabilisation-secs: 2
frame-timeout-ms: 250
window-start: 17:10
window-end: 07:20
`)

	conf, err := ParseConfig(config)
	require.NoError(t, err)
	require.NoError(t, conf.Validate())

	assert.Equal(t, Config{
		BridgeSocket:    "/tmp/bridge",
		FrameOutput:     "/tmp/frames",
		SnapshotDir:     "/tmp/snaps",
		PowerPin:        "PIN",
		VendorID:        0x1A2B,
		ProductID:       0x3C4D,
		OutputMode:      tiny1c.OutputTempOnly,
		TemperatureMode: false,
		Stabilisation:   2 * time.Second,
		FrameTimeout:    250 * time.Millisecond,
		WindowStart:     time.Date(0, 1, 1, 17, 10, 0, 0, time.UTC),
		WindowEnd:       time.Date(0, 1, 1, 07, 20, 0, 0, time.UTC),
	}, *conf)
}

func TestInvalidWindowStart(t *testing.T) {
	conf, err := ParseConfig([]byte("window-start: 25:10"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "invalid window-start")
}

func TestInvalidWindowEnd(t *testing.T) {
	conf, err := ParseConfig([]byte("window-end: 25:10"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "invalid window-end")
}

func TestWindowEndWithoutStart(t *testing.T) {
	conf, err := ParseConfig([]byte("window-end: 09:10"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "window-end is set but window-start isn't")
}

func TestWindowStartWithoutEnd(t *testing.T) {
	conf, err := ParseConfig([]byte("window-start: 09:10"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "window-start is set but window-end isn't")
}

func TestUnknownOutputMode(t *testing.T) {
	conf, err := ParseConfig([]byte("output-mode: sepia"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, `unknown output-mode "sepia"`)
}

func TestDeviceIDRange(t *testing.T) {
	conf, err := ParseConfig([]byte("vendor-id: 0"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "vendor-id out of range")

	conf, err = ParseConfig([]byte("product-id: 0x10000"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "product-id out of range")
}

func TestFrameTimeoutMustBePositive(t *testing.T) {
	conf, err := ParseConfig([]byte("frame-timeout-ms: 0"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "frame-timeout-ms must be positive")
}

func TestNegativeStabilisationRejected(t *testing.T) {
	conf, err := ParseConfig([]byte("stabilisation-secs: -1"))
	assert.Nil(t, conf)
	assert.EqualError(t, err, "stabilisation-secs can't be negative")
}
