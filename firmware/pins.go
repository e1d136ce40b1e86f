//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_US = 2000 // one frame every 2ms (500 frames/s)
	NUM_CHANNELS       = 2

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Activity LED, lit while any channel is above LED_THRESHOLD
	PIN_LED       = machine.LED
	LED_THRESHOLD = 2600

	// Serial configuration
	// Frame: NUM_CHANNELS little-endian int16 = 4 bytes.
	// 500 frames/s * 4 bytes = 2,000 bytes/sec, 20,000 baud at 8N1.
	// 115200 provides ~5.7x headroom.
	UART_BAUD_RATE = 115200
)

// ADC pins, channel 0 first
var PIN_ADC = [NUM_CHANNELS]machine.Pin{machine.A1, machine.A2}
