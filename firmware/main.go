//go:build tinygo

//go:generate tinygo flash -target=xiao

// Firmware for the EMG front end: samples two ADC channels and streams them
// as fixed size binary frames, the layout emgkb expects with the default
// frame configuration (sample_bytes 2, byte_order little).
package main

import (
	"machine"
	"time"
)

var (
	adcs [NUM_CHANNELS]machine.ADC
	uart = machine.UART0

	frame [NUM_CHANNELS * 2]byte

	// Host sends 'p' to pause and 'r' to resume streaming
	paused bool
)

func main() {
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	for i, pin := range PIN_ADC {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(adcConfig)
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	interval := time.Duration(SAMPLE_INTERVAL_US) * time.Microsecond
	next := time.Now()
	for {
		processSerial()

		now := time.Now()
		if now.Before(next) {
			time.Sleep(50 * time.Microsecond)
			continue
		}
		next = next.Add(interval)
		// Fell behind, resync instead of bursting
		if now.Sub(next) > interval {
			next = now.Add(interval)
		}

		active := sampleFrame()
		if active {
			PIN_LED.High()
		} else {
			PIN_LED.Low()
		}
		if !paused {
			uart.Write(frame[:])
		}
	}
}

// sampleFrame reads every channel into frame and reports whether any of them
// is above LED_THRESHOLD.
func sampleFrame() bool {
	active := false
	for i := range adcs {
		// Get returns a left aligned 16 bit value
		v := adcs[i].Get() >> (16 - ADC_RESOLUTION)
		if v > LED_THRESHOLD {
			active = true
		}
		s := int16(v)
		frame[2*i] = byte(s)
		frame[2*i+1] = byte(s >> 8)
	}
	return active
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}
		switch data {
		case 'p':
			paused = true
		case 'r':
			paused = false
		}
	}
}
