//go:build stm32f4

package main

import (
	"machine"
)

// serialBaud matches the host default in dacctl
const serialBaud = 250000

// InitSerial configures the board's default UART (USART2 on PA2/PA3)
func InitSerial() {
	err := machine.Serial.Configure(machine.UARTConfig{BaudRate: serialBaud})
	if err != nil {
		return
	}
}

// SerialAvailable returns the number of received bytes waiting
func SerialAvailable() int {
	return machine.Serial.Buffered()
}

// SerialRead reads a single byte
func SerialRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// SerialWriteBytes writes data, returning how much was accepted
func SerialWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
