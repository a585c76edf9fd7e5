package main

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3/bcm283x"

	"github.com/fmfi-svt-deadlock/reader-sw/reader"
)

// Board GPIO assignments, in the style of lcd.go's LCD_CS/LCD_RST/...
// pin vars: one bcm283x pin per board signal, chosen to not collide
// with the LCD HAT's own pins (GPIO8/24/25/27).
var (
	RFChipReset = bcm283x.GPIO22
	RFChipIRQ   = bcm283x.GPIO23

	PinStatusRed   = bcm283x.GPIO5
	PinStatusGreen = bcm283x.GPIO6
	PinLockRed     = bcm283x.GPIO13
	PinLockGreen   = bcm283x.GPIO19
	PinBuzzer      = bcm283x.GPIO26
	PinWatchdog    = bcm283x.GPIO16
)

// boardOutputs drives the four status LEDs directly and the buzzer by
// toggling a GPIO pin at the half-period the UI task asks for, the
// ticks being in a 2 MHz clock domain (see reader.Outputs).
type boardOutputs struct {
	leds    [4]gpio.PinOut
	buzzer  gpio.PinOut
	mu      sync.Mutex
	stop    chan struct{} // non-nil while a tone goroutine is running
	running sync.WaitGroup
}

func newBoardOutputs() (*boardOutputs, error) {
	b := &boardOutputs{
		leds:   [4]gpio.PinOut{PinStatusRed, PinStatusGreen, PinLockRed, PinLockGreen},
		buzzer: PinBuzzer,
	}
	for _, p := range b.leds {
		if err := p.Out(gpio.Low); err != nil {
			return nil, err
		}
	}
	if err := b.buzzer.Out(gpio.Low); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *boardOutputs) SetLED(l reader.LED, on bool) {
	if int(l) < 0 || int(l) >= len(b.leds) {
		return
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	b.leds[l].Out(level)
}

// SetBuzzer starts (or restarts, or stops) a goroutine square-waving
// the buzzer pin at halfPeriodTicks/2MHz seconds per edge. 0 stops it.
func (b *boardOutputs) SetBuzzer(halfPeriodTicks uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
		b.running.Wait()
		b.buzzer.Out(gpio.Low)
	}
	if halfPeriodTicks == 0 {
		return
	}
	half := time.Duration(halfPeriodTicks) * time.Second / 2_000_000
	stop := make(chan struct{})
	b.stop = stop
	b.running.Add(1)
	go func() {
		defer b.running.Done()
		level := gpio.Low
		t := time.NewTicker(half)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if level == gpio.Low {
					level = gpio.High
				} else {
					level = gpio.Low
				}
				b.buzzer.Out(level)
			}
		}
	}()
}

// gpioWatchdog kicks an external watchdog IC by toggling its trigger
// pin, the reader.Watchdog the master resets once every task has
// heartbeated within its window.
type gpioWatchdog struct {
	pin   gpio.PinOut
	level gpio.Level
}

func (w *gpioWatchdog) Reset() {
	if w.level == gpio.Low {
		w.level = gpio.High
	} else {
		w.level = gpio.Low
	}
	w.pin.Out(w.level)
}

// boardSerial reads the Raspberry Pi's CPU serial number out of
// /proc/cpuinfo, the analogue of readVersion's /proc/cmdline parse in
// cmd/controller/main.go, but for the "Serial" field instead of the
// kernel command line.
func boardSerial() (string, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if ok && strings.TrimSpace(k) == "Serial" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", sc.Err()
}
