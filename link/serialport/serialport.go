//go:build !tinygo

// Package serialport opens the physical UART backing the comm task's
// byte stream to the controller, grounded on driver/mjolnir's Open.
package serialport

import (
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/tarm/serial"
)

// defaultBaud matches the reference controller link's fixed baud rate.
const defaultBaud = 115200

// readTimeout bounds a single Read so the receive goroutine can
// periodically heartbeat and notice shutdown even with no bytes
// arriving on the wire.
const readTimeout = 100 * time.Millisecond

// Open opens dev, or if empty, tries the platform's usual default
// device names in order.
func Open(dev string) (io.ReadWriteCloser, error) {
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyAMA0", "/dev/ttyUSB0", "/dev/ttyUSB1")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("serialport: no device specified")
	}
	var firstErr error
	for _, d := range devices {
		c := &serial.Config{Name: d, Baud: defaultBaud, ReadTimeout: readTimeout}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
