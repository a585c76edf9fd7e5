package rfchip

import "sync"

// MaxDevices bounds the driver registry, mirroring the fixed-capacity
// ISR-to-task dispatch table of spec §4.2's interrupt handler. One RF
// chip per board is the expected case.
const MaxDevices = 1

var (
	registryMu sync.Mutex
	registry   [MaxDevices]*Driver
)

// register adds d to the registry under its interrupt binding. It is the
// explicit, bounded stand-in for the source's global driver-registry
// singleton (DESIGN NOTES: "keep explicit").
func register(d *Driver) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i, slot := range registry {
		if slot == nil {
			registry[i] = d
			return nil
		}
	}
	return errTooManyDevices
}

func unregister(d *Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i, slot := range registry {
		if slot == d {
			registry[i] = nil
		}
	}
}

// dispatchInterrupt is the shared "ISR" entry point: it walks the bounded
// registry under the OS lock standing in (registryMu), finds the driver
// bound to (peripheral, channel), and resumes it. Only one reader per
// channel is ever registered.
func dispatchInterrupt(peripheral string, channel int) {
	registryMu.Lock()
	var target *Driver
	for _, slot := range registry {
		if slot == nil {
			continue
		}
		if slot.binding.Peripheral == peripheral && slot.binding.Channel == channel {
			target = slot
			break
		}
	}
	registryMu.Unlock()
	if target == nil {
		return
	}
	target.signalInterrupt()
}

// signalInterrupt implements the well-known wake-up race closure of
// spec §5: set interruptPending under irqMu, then either hand the waiter
// its wakeup directly or leave the flag for it to observe. irqMu, not
// mu, so this can always run even while a transceive is blocked in wait.
func (d *Driver) signalInterrupt() {
	d.irqMu.Lock()
	d.interruptPending = true
	waiter := d.waiter
	d.irqMu.Unlock()
	if waiter != nil {
		select {
		case waiter <- wakeInterrupt:
		default:
		}
	}
}
