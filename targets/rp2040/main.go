//go:build rp2040

package main

import (
	"machine"
	"runtime"
	"time"

	"heatsense/core"
	"heatsense/protocol"
)

var (
	inputBuffer *protocol.FifoBuffer
	server      *core.CommandServer

	// Debug counters
	msgerrors uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	initUSB()
	if err := i2cBus.Configure(i2cConfig); err != nil {
		return
	}

	platform, err := core.NewPlatform(core.PlatformConfig{
		ADC:              newRPADC(),
		Pins:             rpPins{},
		PWM:              newRPPWM(),
		Backing:          newEEPROM(),
		NvAddress:        nvAddress,
		HeaterChannels:   []core.ADCChannel{bedChannel, hotEndChannel},
		HeaterPins:       []core.PWMPin{bedHeaterPin, hotEndHeaterPin},
		HeaterCycleTicks: heaterCycleTicks,
		ProbeChannel:     probeChannel,
		ModulationPin:    modulationPin,
		ProbeInputPin:    probeInputPin,
		TimerFreq:        timerFreq,
		FreeMemory:       freeMemory,
	})
	if err != nil {
		return
	}

	// the display needs time to start from a cold reboot
	time.Sleep(100 * time.Millisecond)
	display := newStatusDisplay(platform)
	core.SetDebugWriter(display.SetMessage)
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	// A failed load has already installed defaults
	_ = platform.Init(hardwareTime())

	inputBuffer = protocol.NewFifoBuffer(256)
	server = core.NewCommandServer(platform, writeUSB)
	server.AddConstant("MCU", "rp2040")

	go usbReaderLoop()

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1000})
	machine.Watchdog.Start()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					server.Reset()
				}
			}()

			if usbWasDisconnected && inputBuffer.Available() > 0 {
				usbWasDisconnected = false
				server.Reset()
			}

			if inputBuffer.Available() > 0 {
				if n := server.Receive(inputBuffer.Data()); n > 0 {
					inputBuffer.Pop(n)
				}
			}

			now := hardwareTime()
			platform.Poll(now)
			display.Update(now)
		}()

		machine.Watchdog.Update()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if usbAvailable() > 0 {
			data, err := usbRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}
			if inputBuffer.Write([]byte{data}) == 0 {
				// Buffer full
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB writes encoded frames to USB, handling partial writes
func writeUSB(result []byte) {
	written := 0
	for written < len(result) {
		n, err := usbWrite(result[written:])
		if err != nil || n == 0 {
			// likely disconnect
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
}

// freeMemory reports heap not yet claimed by the allocator.
func freeMemory() uint32 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return uint32(ms.HeapSys - ms.HeapInuse)
}

// itoa converts int to string without importing strconv (for embedded)
func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	negative := i < 0
	if negative {
		i = -i
	}

	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}
