//go:build rp2040

package main

import (
	"image/color"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"heatsense/core"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 10
	zAxis         = 2

	// 2 s at the 1 MHz timer
	displayInterval = 2000000
)

var white = color.RGBA{255, 255, 255, 255}

// statusDisplay renders heater and probe state on an SSD1306. Updates are
// slow I2C transfers and run from the main loop only.
type statusDisplay struct {
	dev      ssd1306.Device
	platform *core.Platform
	last     uint32
	message  string
}

func newStatusDisplay(p *core.Platform) *statusDisplay {
	dev := ssd1306.NewI2C(i2cBus)
	dev.Configure(ssd1306.Config{
		Width:    displayWidth,
		Height:   displayHeight,
		Address:  0x3C,
		VccState: ssd1306.SWITCHCAPVCC,
	})
	dev.ClearDisplay()
	return &statusDisplay{dev: dev, platform: p}
}

// SetMessage replaces the bottom line. Used as the debug writer.
func (d *statusDisplay) SetMessage(msg string) {
	d.message = msg
}

// Update redraws at most once per displayInterval.
func (d *statusDisplay) Update(now uint32) {
	if now-d.last < displayInterval {
		return
	}
	d.last = now

	d.dev.ClearBuffer()
	y := int16(lineHeight)
	for h := 0; h < d.platform.Heaters(); h++ {
		line := "H" + itoa(h) + " " + formatCentis(d.platform.Temperature(h)) + "C"
		if d.platform.HeaterFault(h) {
			line += " FAULT"
		}
		d.line(y, line)
		y += lineHeight
	}

	probe := d.platform.Probe()
	line := probe.Type().String() + " " + itoa(int(probe.ScaledReading()))
	switch probe.Stopped(zAxis) {
	case core.EndstopHit:
		line += " HIT"
	case core.EndstopNear:
		line += " near"
	}
	d.line(y, line)

	if d.message != "" {
		d.line(displayHeight-2, d.message)
	}
	d.dev.Display()
}

func (d *statusDisplay) line(y int16, s string) {
	tinyfont.WriteLine(&d.dev, &proggy.TinySZ8pt7b, 0, y, s, white)
}

// formatCentis renders v with one decimal without pulling in fmt.
func formatCentis(v float32) string {
	neg := v < 0
	if neg {
		v = -v
	}
	tenths := int(v*10 + 0.5)
	s := itoa(tenths/10) + "." + itoa(tenths%10)
	if neg {
		return "-" + s
	}
	return s
}
