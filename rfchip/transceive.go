package rfchip

import (
	"errors"
	"fmt"
	"time"
)

// Result is the outcome of a transceive operation, the PCD error
// taxonomy of spec §7.
type Result int

const (
	ResultOk Result = iota
	ResultOkCollision
	ResultOkTimeout
	ResultRxOverflow
	ResultTxOverflow
	ResultError
	ResultTxError
	ResultRxError
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "ok"
	case ResultOkCollision:
		return "ok-collision"
	case ResultOkTimeout:
		return "ok-timeout"
	case ResultRxOverflow:
		return "rx-overflow"
	case ResultTxOverflow:
		return "tx-overflow"
	case ResultError:
		return "error"
	case ResultTxError:
		return "tx-error"
	case ResultRxError:
		return "rx-error"
	default:
		return "invalid"
	}
}

// frameKind distinguishes the three transceive entry points only for
// diagnostics; the wire behaviour is fully parameterised.
type frameKind int

const (
	frameShort frameKind = iota
	frameStandard
	frameAnticollision
)

type frameParams struct {
	kind                frameKind
	txNbits             uint8 // bits to send in the last byte, [0,7] (0 = whole byte)
	rxAlign             uint8 // [0,7]
	collisionsPossible  bool
}

// TransceiveShort sends a single 7-bit frame (e.g. REQA/WUPA) and
// collects the response. Collisions are possible on this frame. Part of
// the bus-lock sequence documented on Driver: callers issuing several
// transceives back to back (picc.FindCards) hold Lock across all of
// them; a standalone call is safe without it.
func (d *Driver) TransceiveShort(data7 byte, timeout time.Duration) (Result, error) {
	return d.transceive([]byte{data7}, frameParams{kind: frameShort, txNbits: 7, collisionsPossible: true}, timeout)
}

// TransceiveStandard sends a complete byte-aligned frame with no
// collision handling (e.g. SELECT). See TransceiveShort on locking.
func (d *Driver) TransceiveStandard(buf []byte, timeout time.Duration) (Result, error) {
	return d.transceive(buf, frameParams{kind: frameStandard, txNbits: 0, collisionsPossible: false}, timeout)
}

// TransceiveAnticollision sends an anticollision frame with partial
// final byte and aligned response. The driver requires 106 kbit/s mode
// A. See TransceiveShort on locking.
func (d *Driver) TransceiveAnticollision(buf []byte, txNbits, rxAlign uint8, timeout time.Duration) (Result, error) {
	return d.transceive(buf, frameParams{kind: frameAnticollision, txNbits: txNbits, rxAlign: rxAlign, collisionsPossible: true}, timeout)
}

// transceive implements the shared structure of spec §4.2: prepare,
// load, wait, handle_response, cleanup. It takes no lock of its own (see
// Driver's doc comment); it blocks in wait, so holding mu across it would
// shut out both a caller's own next call and the interrupt dispatcher.
func (d *Driver) transceive(tx []byte, fp frameParams, timeout time.Duration) (Result, error) {
	if err := d.requireState("transceive", StateReady); err != nil {
		return 0, err
	}
	d.state = StateActive
	res, err := d.doTransceive(tx, fp, timeout)
	d.cleanup()
	d.state = StateReady
	return res, err
}

func (d *Driver) doTransceive(tx []byte, fp frameParams, timeout time.Duration) (Result, error) {
	if err := d.prepare(); err != nil {
		return 0, err
	}
	if err := d.bus.WriteBurst(regFIFOData, tx); err != nil {
		return 0, fmt.Errorf("rfchip: transceive: load fifo: %w", err)
	}
	framing := (fp.txNbits & 0b111) | ((fp.rxAlign & 0b111) << 4)
	if err := d.bus.Write(regBitFraming, framing|bitFramingStartSend); err != nil {
		return 0, fmt.Errorf("rfchip: transceive: bit framing: %w", err)
	}

	reason := d.wait(timeout)
	return d.handleResponse(reason, fp)
}

// prepare flushes the FIFO, clears IRQ flags (preserving Set1), checks
// the driver invariant that RxComplete/Error aren't already asserted,
// enables them, and issues Transceive.
func (d *Driver) prepare() error {
	if err := d.bus.SetBits(regFIFOLevel, 1<<7); err != nil {
		return fmt.Errorf("rfchip: prepare: flush fifo: %w", err)
	}
	if err := d.bus.ClearBits(regComIrq, ^byte(irqSet1)); err != nil {
		return fmt.Errorf("rfchip: prepare: clear irqs: %w", err)
	}
	irq, err := d.bus.Read(regComIrq)
	if err != nil {
		return fmt.Errorf("rfchip: prepare: %w", err)
	}
	if irq&(irqRx|irqErr) != 0 {
		panic("rfchip: driver invariant violated: rx/err irq already asserted before enabling")
	}
	if err := d.bus.Write(regComIEn, irqSet1|irqRx|irqErr); err != nil {
		return fmt.Errorf("rfchip: prepare: enable irqs: %w", err)
	}
	if err := d.bus.Write(regCommand, cmdTransceive); err != nil {
		return fmt.Errorf("rfchip: prepare: issue transceive: %w", err)
	}
	return nil
}

// wait enters the critical section described in spec §4.2 step 4: if
// interruptPending is already set, consume it without suspending;
// otherwise register a waiter and block for at most timeout. Guarded by
// irqMu, not mu: the calling goroutine holds no lock while blocked on
// ch, so signalInterrupt can always reach in and deliver the wakeup.
func (d *Driver) wait(timeout time.Duration) wakeReason {
	d.irqMu.Lock()
	if d.interruptPending {
		d.interruptPending = false
		d.irqMu.Unlock()
		return wakeInterrupt
	}
	ch := make(chan wakeReason, 1)
	d.waiter = ch
	d.irqMu.Unlock()

	var reason wakeReason
	if timeout <= 0 {
		reason = <-ch
	} else {
		select {
		case reason = <-ch:
		case <-time.After(timeout):
			reason = wakeTimeout
		}
	}

	d.irqMu.Lock()
	d.waiter = nil
	d.irqMu.Unlock()
	return reason
}

// handleResponse implements spec §4.2 step 5.
func (d *Driver) handleResponse(reason wakeReason, fp frameParams) (Result, error) {
	if reason == wakeTimeout {
		return ResultOkTimeout, nil
	}
	if reason != wakeInterrupt {
		panic("rfchip: unexpected wakeup reason")
	}

	errReg, err := d.bus.Read(regError)
	if err != nil {
		return 0, fmt.Errorf("rfchip: handle_response: %w", err)
	}
	if errReg&errBufferOvfl != 0 {
		return ResultRxOverflow, nil
	}
	if errReg&errCollision != 0 && fp.collisionsPossible {
		return d.handleCollision()
	}
	if errReg != 0 {
		return ResultError, nil
	}
	return d.handleNormalCompletion()
}

func (d *Driver) handleCollision() (Result, error) {
	collReg, err := d.bus.Read(regColl)
	if err != nil {
		return 0, fmt.Errorf("rfchip: handle_collision: %w", err)
	}
	if collReg&collPosNotValid != 0 {
		// Past position 32; this driver does not resolve it. DESIGN.md
		// Open Question 2.
		return ResultError, nil
	}
	collPos := int(collReg & 0b0001_1111)
	if collPos == 0 {
		collPos = 32
	}
	nvb := (collPos - 1) % 32
	d.respLength = nvb/8 + 1
	// nvb%8 is how many bits of the final byte are valid ahead of the
	// collision; 0 is a real value here (the collision is the first bit
	// of that byte), not the "whole byte" sentinel handleNormalCompletion
	// uses — DESIGN.md Open Question 6.
	d.respLastValidBits = uint8(nvb % 8)
	if err := d.copyFIFO(d.respLength); err != nil {
		return 0, err
	}
	d.respReadBytes = 0
	return ResultOkCollision, nil
}

func (d *Driver) handleNormalCompletion() (Result, error) {
	level, err := d.bus.Read(regFIFOLevel)
	if err != nil {
		return 0, fmt.Errorf("rfchip: handle_normal: %w", err)
	}
	d.respLength = int(level)
	d.respLastValidBits = 8
	if err := d.copyFIFO(d.respLength); err != nil {
		return 0, err
	}
	d.respReadBytes = 0
	return ResultOk, nil
}

func (d *Driver) copyFIFO(n int) error {
	if n > ResponseBufferSize {
		n = ResponseBufferSize
	}
	if n == 0 {
		return nil
	}
	if err := d.bus.ReadBurst(regFIFOData, d.response[:n]); err != nil {
		return fmt.Errorf("rfchip: copy fifo: %w", err)
	}
	return nil
}

// cleanup implements spec §4.2 step 6: clear bit-framing, disable our
// interrupts, issue Idle (clears error bits), reset IRQ flags and the
// pending-interrupt flag.
func (d *Driver) cleanup() {
	_ = d.bus.Write(regBitFraming, 0)
	_ = d.bus.ClearBits(regComIEn, irqRx|irqErr)
	_ = d.bus.Write(regCommand, cmdIdle)
	_ = d.bus.ClearBits(regComIrq, ^byte(irqSet1))
	d.irqMu.Lock()
	d.interruptPending = false
	d.irqMu.Unlock()
}

// errResponseBadState is returned by GetResponse/GetResponseLength
// outside Ready/RfOff.
var errResponseBadState = errors.New("rfchip: response queue: bad state")

// GetResponseLength returns how many unread bytes remain in the response
// buffer. Part of the bus-lock sequence documented on Driver, like
// TransceiveShort.
func (d *Driver) GetResponseLength() (int, error) {
	if err := d.requireState("get_response_length", StateReady, StateRfOff); err != nil {
		return 0, fmt.Errorf("%w", errResponseBadState)
	}
	return d.respLength - d.respReadBytes, nil
}

// GetResponse copies up to len(buf) unread bytes from the response
// buffer, advancing the read cursor. nLastBits is the number of valid
// bits in the final byte of the whole response, reported only when this
// call copies that final byte (8 otherwise); after a collision this may
// be 0, meaning the collision fell on that byte's first bit. Never fails
// with data present. Part of the bus-lock sequence documented on Driver,
// like TransceiveShort.
func (d *Driver) GetResponse(buf []byte) (copied int, nLastBits uint8, err error) {
	if err := d.requireState("get_response", StateReady, StateRfOff); err != nil {
		return 0, 8, fmt.Errorf("%w", errResponseBadState)
	}
	remaining := d.respLength - d.respReadBytes
	n := len(buf)
	if n > remaining {
		n = remaining
	}
	copy(buf[:n], d.response[d.respReadBytes:d.respReadBytes+n])
	d.respReadBytes += n
	nLastBits = uint8(8)
	if n > 0 && d.respReadBytes == d.respLength {
		nLastBits = d.respLastValidBits
	}
	return n, nLastBits, nil
}
