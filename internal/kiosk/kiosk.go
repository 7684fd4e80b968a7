// Package kiosk reports the power state of the machine driving a display.
// Raspberry Pi kiosks usually run from a UPS hat with an I2C fuel gauge;
// anything else reports a fixed mains-powered state.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	appLog "confagenda/internal/log"
)

// Power is the kiosk's power state.
type Power struct {
	// Percent is the battery level in 0–100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, 0 when unknown.
	VoltageMv int `json:"voltage_mv"`
	// Source names the reader: "i2c" or "static".
	Source string `json:"source"`
	// Low is set below LowPercent.
	Low bool `json:"low"`
}

// LowPercent is the level at which Power.Low is set.
const LowPercent = 20

// Reader obtains the current power state.
type Reader interface {
	Read(ctx context.Context) (Power, error)
}

// StaticReader reports a fixed state. It serves machines without a fuel
// gauge and tests.
type StaticReader struct {
	Percent   int
	VoltageMv int
}

// NewStaticReader reports a fully charged, mains-powered kiosk.
func NewStaticReader() StaticReader {
	return StaticReader{Percent: 100}
}

func (s StaticReader) Read(context.Context) (Power, error) {
	return newPower(s.Percent, s.VoltageMv, "static"), nil
}

func newPower(pct, mv int, source string) Power {
	pct = min(max(pct, 0), 100)
	return Power{Percent: pct, VoltageMv: mv, Source: source, Low: pct < LowPercent}
}

// Fuel gauge registers (PiSugar3 layout).
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A

	// DefaultAddr is the fuel gauge's 7-bit I2C address.
	DefaultAddr = 0x57
)

var (
	hostOnce sync.Once
	hostErr  error
)

// I2CReader reads a fuel gauge over I2C.
type I2CReader struct {
	bus  string
	addr uint16
}

// NewI2CReader reads the gauge at addr on bus ("" opens the first bus).
func NewI2CReader(bus string, addr uint16) *I2CReader {
	return &I2CReader{bus: bus, addr: addr}
}

func (r *I2CReader) Read(ctx context.Context) (Power, error) {
	if runtime.GOOS != "linux" {
		return Power{}, errors.New("kiosk: i2c unavailable on " + runtime.GOOS)
	}
	if err := ctx.Err(); err != nil {
		return Power{}, err
	}
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return Power{}, fmt.Errorf("kiosk: init host: %w", hostErr)
	}

	bus, err := i2creg.Open(r.bus)
	if err != nil {
		return Power{}, fmt.Errorf("kiosk: open i2c bus %q: %w", r.bus, err)
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("kiosk: read register %#x: %w", reg, err)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Power{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Power{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Power{}, err
	}
	return newPower(int(pct), int(uint16(high)<<8|uint16(low)), "i2c"), nil
}

// DefaultReader probes the fuel gauge once and falls back to a static
// reader when there is none.
func DefaultReader(ctx context.Context) Reader {
	if runtime.GOOS != "linux" {
		return NewStaticReader()
	}
	r := NewI2CReader("", DefaultAddr)
	if _, err := r.Read(ctx); err != nil {
		appLog.Debug("no kiosk fuel gauge, reporting static power", "err", err)
		return NewStaticReader()
	}
	appLog.Info("kiosk fuel gauge found", "addr", fmt.Sprintf("%#x", DefaultAddr))
	return r
}
