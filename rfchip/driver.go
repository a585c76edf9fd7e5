package rfchip

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

var errTooManyDevices = errors.New("rfchip: driver registry full")

// oscillatorSettle is the wait after reset release before the chip's
// crystal oscillator is guaranteed stable.
const oscillatorSettle = 40 * time.Microsecond

// Start transitions Stop -> RfOff: releases reset, waits for oscillator
// settle, soft-resets the chip, masks every communication interrupt
// (RxComplete and Error included; each transceive enables those two for
// its own duration), configures the IRQ pin, binds the interrupt
// channel, applies cfg via reconfigure, and finally applies the default
// parameters (106 kbit/s, ISO 14443 type A).
func (d *Driver) Start(cfg *Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireState("start", StateStop); err != nil {
		return err
	}

	if d.reset != nil {
		if err := d.reset.Out(gpio.High); err != nil {
			return fmt.Errorf("rfchip: start: release reset: %w", err)
		}
	}
	time.Sleep(oscillatorSettle)

	if err := d.bus.Write(regCommand, cmdSoftReset); err != nil {
		return fmt.Errorf("rfchip: start: soft reset: %w", err)
	}
	if err := d.waitIdleLocked(); err != nil {
		return fmt.Errorf("rfchip: start: soft reset: %w", err)
	}

	// Mask all communication interrupts; prepare enables RxComplete and
	// Error per transceive.
	if err := d.bus.Write(regComIEn, irqSet1); err != nil {
		return fmt.Errorf("rfchip: start: mask irqs: %w", err)
	}

	if cfg.Interrupt.Pin != nil {
		if err := cfg.Interrupt.Pin.In(gpio.PullUp, gpio.RisingEdge); err != nil {
			return fmt.Errorf("rfchip: start: configure irq pin: %w", err)
		}
	}
	d.binding = cfg.Interrupt
	if err := register(d); err != nil {
		return fmt.Errorf("rfchip: start: %w", err)
	}
	d.irqMu.Lock()
	d.waiter = nil
	d.interruptPending = false
	d.irqMu.Unlock()

	if cfg.Interrupt.Pin != nil {
		go d.irqLoop(cfg.Interrupt.Pin, cfg.Interrupt.Peripheral, cfg.Interrupt.Channel)
	}

	d.config = cfg
	if err := d.reconfigure(cfg); err != nil {
		unregister(d)
		return fmt.Errorf("rfchip: start: reconfigure: %w", err)
	}

	d.state = StateRfOff

	if err := d.setParametersLocked(Params{RxSpeed: Speed106k, TxSpeed: Speed106k, Mode: ModeA}); err != nil {
		return fmt.Errorf("rfchip: start: default params: %w", err)
	}
	return nil
}

// irqLoop is the stand-in for external-interrupt registration: one
// goroutine per bound IRQ pin, blocking on WaitForEdge and handing each
// rising edge to the shared dispatch entry point (registry.go), exactly
// as a real external-interrupt vector would call into the driver's ISR.
func (d *Driver) irqLoop(pin gpio.PinIO, peripheral string, channel int) {
	for {
		if !pin.WaitForEdge(-1) {
			return
		}
		// Checked under registryMu, not mu: a caller may hold the bus lock
		// across a transceive that is waiting for this very edge. binding
		// only changes while d is out of the registry.
		registryMu.Lock()
		stillBound := false
		for _, slot := range registry {
			if slot == d && d.binding.Pin == pin {
				stillBound = true
			}
		}
		registryMu.Unlock()
		if !stillBound {
			return
		}
		dispatchInterrupt(peripheral, channel)
	}
}

// ActivateRF transitions RfOff -> Ready: sets both TX drivers on.
func (d *Driver) ActivateRF() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireState("activate_rf", StateRfOff); err != nil {
		return err
	}
	if err := d.bus.SetBits(regTxControl, txControlTx1RFEn|txControlTx2RFEn); err != nil {
		return fmt.Errorf("rfchip: activate_rf: %w", err)
	}
	d.state = StateReady
	return nil
}

// DeactivateRF transitions Ready -> RfOff: clears both TX drivers.
func (d *Driver) DeactivateRF() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireState("deactivate_rf", StateReady); err != nil {
		return err
	}
	if err := d.bus.ClearBits(regTxControl, txControlTx1RFEn|txControlTx2RFEn); err != nil {
		return fmt.Errorf("rfchip: deactivate_rf: %w", err)
	}
	d.state = StateRfOff
	return nil
}

// Stop transitions any state to Stop, deregistering the interrupt
// binding and letting irqLoop exit on its next edge or pin close.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	unregister(d)
	d.binding = InterruptBinding{}
	d.state = StateStop
	return nil
}

func (d *Driver) waitIdleLocked() error {
	const maxPolls = 10000
	for i := 0; i < maxPolls; i++ {
		irq, err := d.bus.Read(regComIrq)
		if err != nil {
			return err
		}
		if irq&irqIdle != 0 {
			return nil
		}
	}
	return fmt.Errorf("rfchip: timed out waiting for idle")
}
