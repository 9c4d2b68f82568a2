//go:build stm32f4

package main

import (
	"device/arm"
	"time"

	"gopdac/core"
)

var link *core.Link

func main() {
	InitSerial()
	InitClock()
	core.TimerInit()

	core.InitCoreCommands()
	core.InitDACCommands()

	driver := NewSTM32DACDriver()
	if dac, err := core.NewPeripheral(driver.Hardware(), core.DefaultChannelMap); err != nil {
		core.DebugPrintln("[DAC] init failed: " + err.Error())
	} else {
		core.SetDACPeripheral(dac)
		initDMAInterrupts()
	}

	core.GetGlobalDictionary().BuildDictionary()

	link = core.NewLink(SerialWriteBytes)
	core.SetResetHandler(arm.SystemReset)

	go serialReaderLoop()

	for {
		UpdateSystemTime()
		link.Poll()
		time.Sleep(10 * time.Microsecond)
	}
}

// serialReaderLoop moves received UART bytes into the link. A full FIFO
// drops the byte; the host resends the frame.
func serialReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			link.Errors++
			time.Sleep(100 * time.Millisecond)
			go serialReaderLoop()
		}
	}()

	for {
		for SerialAvailable() > 0 {
			b, err := SerialRead()
			if err != nil {
				link.Errors++
				break
			}
			link.Feed(b)
		}
		time.Sleep(100 * time.Microsecond)
	}
}
