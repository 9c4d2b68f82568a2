//go:build rp2040

package main

import (
	"machine"
	"time"

	"gopdac/core"
)

var link *core.Link

func main() {
	// A watchdog left armed by a previous reset command would fire again
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitDebug()
	InitClock()
	core.TimerInit()

	core.InitCoreCommands()
	core.InitDACCommands()

	// Channel 1 is the PIO R-2R ladder, channel 2 an MCP4725 on I2C0
	bus, err := NewRPI2CBus(0)
	if err != nil {
		return
	}
	driver := NewRPDACDriver(NewLadder(), bus)
	if dac, err := core.NewPeripheral(driver.Hardware(), rp2040ChannelMap); err != nil {
		core.DebugPrintln("[DAC] init failed: " + err.Error())
	} else {
		core.SetDACPeripheral(dac)
	}

	// Every command is registered; compress the dictionary once
	core.GetGlobalDictionary().BuildDictionary()

	link = core.NewLink(USBWriteBytes)
	core.SetResetHandler(watchdogReset)

	go usbReaderLoop()

	for {
		UpdateSystemTime()
		link.Poll()
		time.Sleep(10 * time.Microsecond)
	}
}

// watchdogReset reboots through the watchdog, which re-enumerates USB
// more reliably than SYSRESETREQ on this chip
func watchdogReset() {
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
		return
	}
	if err := machine.Watchdog.Start(); err != nil {
		return
	}
	for {
		time.Sleep(time.Millisecond)
	}
}

// usbReaderLoop moves bytes from the CDC endpoint into the link
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			link.Errors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		for USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				link.Errors++
				break
			}
			if !link.Feed(b) {
				// Let the main loop drain the FIFO
				time.Sleep(time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}
