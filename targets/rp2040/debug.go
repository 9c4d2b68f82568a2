//go:build rp2040

package main

import (
	"machine"

	"gopdac/core"
)

// The protocol owns USB, so debug text goes to UART0 (GP0/GP1)
const debugBaud = 115200

// InitDebug routes core debug output to UART0. Output stays off until
// core.SetDebugEnabled is called.
func InitDebug() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: debugBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	if err != nil {
		return
	}
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.InitAsyncDebug()
}
