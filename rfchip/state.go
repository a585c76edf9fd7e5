// Package rfchip implements the low-level driver for the board's RF
// chip: register programming, the state machine of spec §4.2, the
// frame-level transceive protocol with cooperative suspension on the
// chip's IRQ line, and the self-test extended feature.
package rfchip

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fmfi-svt-deadlock/reader-sw/regio"
	"periph.io/x/conn/v3/gpio"
)

// State is one of the five states the driver's lifecycle machine can be in.
type State int

const (
	StateUninit State = iota
	StateStop
	StateRfOff
	StateReady
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateStop:
		return "stop"
	case StateRfOff:
		return "rf-off"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	default:
		return "invalid"
	}
}

// ErrBadState is returned when an operation is invoked in a state other
// than one of its documented source states. State is never mutated when
// this is returned.
var ErrBadState = errors.New("rfchip: bad state")

// MaxUID is the maximum length of a reconstructed card UID.
const MaxUID = 10

// ResponseBufferSize is the size of the response buffer; the chip's
// FIFO never holds more than this in one frame.
const ResponseBufferSize = 64

// wakeReason is why a suspended transceive returned.
type wakeReason int

const (
	wakeInterrupt wakeReason = iota
	wakeTimeout
)

// Driver is one instance of the RF-chip driver. mu is the bus-lock
// Lock/Unlock exposes to callers that share one Driver between
// goroutines across a sequence of calls (e.g. picc.FindCards), per spec
// §5 "no concurrent use of one RF chip from multiple tasks (exclusion is
// the caller's responsibility)"; methods that form part of such a
// sequence (TransceiveShort/Standard/Anticollision, GetResponse,
// GetResponseLength) take no lock of their own, trusting that contract,
// so they never fight a Lock the caller already holds. Standalone
// lifecycle calls (Init, Start, ActivateRF, ...) still take mu
// themselves since nothing else holds it around them.
//
// irqMu is a second, independent lock guarding only waiter and
// interruptPending, the hand-off between a suspended transceive and the
// interrupt dispatcher (registry.go's signalInterrupt), which runs on a
// different goroutine and must be able to deliver a wakeup no matter
// what mu is doing.
type Driver struct {
	bus   regio.Bus
	reset gpio.PinIO

	config *Config // borrowed, last-applied

	response          [ResponseBufferSize]byte
	respLength        int
	respReadBytes     int
	// in [1,8] after a normal completion; after a collision, nvb%8 and
	// so may be 0 (see handleCollision).
	respLastValidBits uint8

	// waiter is the "thread-reference slot": a depth-1 channel the
	// suspended transceive blocks on, and the interrupt dispatcher (or a
	// pending flag) resumes through. Exactly one goroutine may wait on it
	// at a time, matching the single-thread-reference-slot invariant.
	// Guarded by irqMu, not mu.
	irqMu            sync.Mutex
	waiter           chan wakeReason
	interruptPending bool

	mu    sync.Mutex
	state State

	// binding records the (peripheral, channel) this driver is registered
	// under, for deregistration on Stop.
	binding InterruptBinding
}

// New creates an uninitialised driver bound to a register bus and a
// reset GPIO line. No hardware is touched.
func New(bus regio.Bus, resetPin gpio.PinIO) *Driver {
	return &Driver{
		bus:   bus,
		reset: resetPin,
		state: StateUninit,
	}
}

// Init transitions Uninit -> Stop. No hardware is touched.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateUninit {
		return fmt.Errorf("rfchip: init: %w", ErrBadState)
	}
	d.state = StateStop
	return nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Lock is the PCD bus-lock operation: callers sharing one Driver between
// goroutines must hold it for the duration of any sequence of operations
// that must not interleave with another caller's.
func (d *Driver) Lock() { d.mu.Lock() }

// Unlock releases a held Lock.
func (d *Driver) Unlock() { d.mu.Unlock() }

// requireState fails with ErrBadState unless the current state is one of
// allowed. This is the spec's fail-if-not-in-allowed-state phrasing of
// the source's (inverted-sense) CheckState macro; see DESIGN.md Open
// Question 3.
func (d *Driver) requireState(op string, allowed ...State) error {
	for _, s := range allowed {
		if d.state == s {
			return nil
		}
	}
	return fmt.Errorf("rfchip: %s: in state %s: %w", op, d.state, ErrBadState)
}
