// Package picc implements the ISO/IEC 14443-3 type A card discovery
// protocol: REQA/WUPA wakeup and the full recursive bit-collision
// anticollision cascade, generalized from the single-tag simplification
// nfc/type2.Reader.selectTag makes (it only ever walks the first branch
// it sees, by design, since it targets one tag at a time) into the
// complete binary tree search needed to enumerate every card present in
// the field.
package picc

import (
	"errors"
	"fmt"
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/pcd"
	"github.com/fmfi-svt-deadlock/reader-sw/rfchip"
)

const (
	cmdREQA = 0x26
	cmdWUPA = 0x52
	cmdHLTA = 0x50

	casLevel1 = 0x93
	casLevel2 = 0x95
	casLevel3 = 0x97

	// sakCascadeBit marks "UID not complete, continue to the next
	// cascade level" in the SAK byte.
	sakCascadeBit = 0x04
	// sakCompliantBit marks ISO/IEC 14443-4 compliance.
	sakCompliantBit = 0x20

	cascadeTag = 0x88

	maxRetries = 3
)

// Card is a single discovered PICC.
type Card struct {
	UID          []byte // 4, 7, or 10 bytes, per the cascade levels walked
	SAK          byte
	ISOCompliant bool
}

var (
	// ErrNoCard means no PICC answered REQA/WUPA.
	ErrNoCard = errors.New("picc: no card present")
	// ErrTransmission wraps a transceive that completed with an error
	// result, or a SELECT without a clean one-byte SAK. Error results are
	// not retried; only an error returned by the device call itself is
	// retried, up to maxRetries times, and the last such error is then
	// returned as is.
	ErrTransmission = errors.New("picc: transmission failure")
	// ErrBCC means a selected tag's BCC didn't match its UID bytes.
	ErrBCC = errors.New("picc: BCC mismatch")
	// ErrUnresolvedCollision is returned when a collision is located at
	// bit 40 or later, past the 4 UID bytes plus BCC of one cascade
	// level. A collision the RF chip cannot locate (RFChip
	// CollPosNotValid) reaches this package as rfchip.ResultError and is
	// returned as ErrTransmission; see DESIGN.md Open Question 2.
	ErrUnresolvedCollision = errors.New("picc: unresolved collision")
)

// FindCards wakes every PICC in the field (idle or halted) and walks
// the anticollision tree to discover all of them. The device must be
// in rfchip.StateReady (RF on) and is left there.
func FindCards(dev pcd.Device, timeout time.Duration) ([]Card, error) {
	dev.Lock()
	defer dev.Unlock()

	res, err := retryShort(dev, cmdWUPA, timeout)
	if err != nil {
		return nil, err
	}
	if res != rfchip.ResultOk && res != rfchip.ResultOkCollision {
		return nil, ErrNoCard
	}
	// Drain the 2-byte ATQA; its content doesn't gate discovery.
	var atqa [2]byte
	dev.GetResponse(atqa[:])

	var cards []Card
	if err := cascade(dev, timeout, casLevel1, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// cascade walks the anticollision tree at one cascade level, selecting
// and halting every complete UID branch it finds, recursing into the
// next cascade level whenever a SAK reports an incomplete UID, and
// accumulating every fully-resolved card into *out.
func cascade(dev pcd.Device, timeout time.Duration, level byte, out *[]Card) error {
	return walk(dev, timeout, level, 0, [5]byte{}, nil, out)
}

// walk explores one node of the bit-collision tree: known is how many
// of buf's bits are fixed (0..40, the 4 UID bytes plus BCC), prefix
// carries the UID bytes already resolved at shallower cascade levels.
func walk(dev pcd.Device, timeout time.Duration, level byte, known int, buf [5]byte, prefix []byte, out *[]Card) error {
	frame, txNbits, rxAlign := buildAnticollFrame(level, known, buf)

	res, err := retryAnticoll(dev, frame, txNbits, rxAlign, timeout)
	if err != nil {
		return err
	}

	switch res {
	case rfchip.ResultOkTimeout:
		return nil // this branch turned out to be empty
	case rfchip.ResultError, rfchip.ResultRxError, rfchip.ResultTxError, rfchip.ResultRxOverflow, rfchip.ResultTxOverflow:
		return fmt.Errorf("picc: anticollision: %w (%v)", ErrTransmission, res)
	case rfchip.ResultOk:
		mergeResponse(dev, known, &buf)
		return resolveComplete(dev, timeout, level, buf, prefix, out)
	case rfchip.ResultOkCollision:
		newBits := mergeResponse(dev, known, &buf)
		collBit := known + newBits
		if collBit >= 40 {
			return ErrUnresolvedCollision
		}
		zero, one := buf, buf
		setBit(&zero, collBit, false)
		setBit(&one, collBit, true)
		if err := walk(dev, timeout, level, collBit+1, zero, prefix, out); err != nil {
			return err
		}
		return walk(dev, timeout, level, collBit+1, one, prefix, out)
	default:
		return fmt.Errorf("picc: anticollision: unexpected result %v", res)
	}
}

// resolveComplete has a collision-free 4-byte UID + BCC for this
// cascade level. It verifies the BCC, selects the tag to learn its SAK,
// and either records a finished card (halting it so siblings can be
// found) or recurses into the next cascade level.
func resolveComplete(dev pcd.Device, timeout time.Duration, level byte, buf [5]byte, prefix []byte, out *[]Card) error {
	if bcc(buf[:4]) != buf[4] {
		return ErrBCC
	}

	selFrame := []byte{level, 0x70, buf[0], buf[1], buf[2], buf[3], buf[4]}
	res, err := retryStandard(dev, selFrame, timeout)
	if err != nil {
		return err
	}
	if res != rfchip.ResultOk {
		return fmt.Errorf("picc: select: %w (%v)", ErrTransmission, res)
	}
	var sakBuf [1]byte
	n, _, err := dev.GetResponse(sakBuf[:])
	if err != nil {
		return fmt.Errorf("picc: select: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("picc: select: %w: short SAK", ErrTransmission)
	}
	sak := sakBuf[0]

	uidBytes := buf[:4]
	if uidBytes[0] == cascadeTag {
		uidBytes = uidBytes[1:] // cascade tag isn't part of the UID proper
	}
	full := append(append([]byte(nil), prefix...), uidBytes...)

	if sak&sakCascadeBit != 0 {
		var next byte
		switch level {
		case casLevel1:
			next = casLevel2
		case casLevel2:
			next = casLevel3
		default:
			return fmt.Errorf("picc: select: cascade bit set past level 3")
		}
		return walk(dev, timeout, next, 0, [5]byte{}, full, out)
	}

	*out = append(*out, Card{
		UID:          full,
		SAK:          sak,
		ISOCompliant: sak&sakCompliantBit != 0,
	})
	haltTag(dev, timeout)
	return nil
}

// haltTag puts the currently-selected (active) tag to sleep so it stops
// answering further anticollision rounds, letting any sibling collided
// with it respond cleanly. Best-effort: a failure here just risks a
// duplicate discovery, not a protocol violation.
func haltTag(dev pcd.Device, timeout time.Duration) {
	dev.TransceiveStandard([]byte{cmdHLTA, 0x00}, timeout)
	var discard [2]byte
	dev.GetResponse(discard[:])
}

func retryShort(dev pcd.Device, cmd byte, timeout time.Duration) (rfchip.Result, error) {
	var res rfchip.Result
	var err error
	for i := 0; i < maxRetries; i++ {
		res, err = dev.TransceiveShort(cmd, timeout)
		if err == nil {
			return res, nil
		}
	}
	return res, err
}

func retryStandard(dev pcd.Device, buf []byte, timeout time.Duration) (rfchip.Result, error) {
	var res rfchip.Result
	var err error
	for i := 0; i < maxRetries; i++ {
		res, err = dev.TransceiveStandard(buf, timeout)
		if err == nil {
			return res, nil
		}
	}
	return res, err
}

func retryAnticoll(dev pcd.Device, buf []byte, txNbits, rxAlign uint8, timeout time.Duration) (rfchip.Result, error) {
	var res rfchip.Result
	var err error
	for i := 0; i < maxRetries; i++ {
		res, err = dev.TransceiveAnticollision(buf, txNbits, rxAlign, timeout)
		if err == nil {
			return res, nil
		}
	}
	return res, err
}

// buildAnticollFrame encodes the SELECT/NVB header and the known
// prefix bits of buf per ISO/IEC 14443-3 §6.4.3. rxAlign tells the PCD
// how many low bits of the first received byte overlap bits we already
// sent, so the chip can align the card's reply onto our own partial
// byte instead of shifting it.
func buildAnticollFrame(level byte, known int, buf [5]byte) (frame []byte, txNbits, rxAlign uint8) {
	fullBytes := known / 8
	partialBits := known % 8
	n := fullBytes
	if partialBits > 0 {
		n++
	}
	frame = make([]byte, 2+n)
	frame[0] = level
	frame[1] = byte((2+fullBytes)<<4) | byte(partialBits)
	copy(frame[2:], buf[:n])
	if partialBits > 0 {
		mask := byte(1<<uint(partialBits)) - 1
		frame[len(frame)-1] &= mask
		txNbits = uint8(partialBits)
		rxAlign = uint8(partialBits)
	}
	return frame, txNbits, rxAlign
}

// mergeResponse folds the PCD's response buffer — whatever bits the
// card(s) answered with, starting right after `known` — into buf, and
// returns how many new bits it carried (used to locate a collision).
func mergeResponse(dev pcd.Device, known int, buf *[5]byte) int {
	fullBytes := known / 8
	partialBits := known % 8
	resp := make([]byte, 5-fullBytes)
	n, lastBits, err := dev.GetResponse(resp)
	if err != nil || n == 0 {
		return 0
	}
	resp = resp[:n]
	if partialBits > 0 {
		resp[0] |= buf[fullBytes]
	}
	copy(buf[fullBytes:], resp)
	// lastBits counts the echoed partialBits low bits of resp[0] too;
	// those were already known, so they aren't new.
	return (n-1)*8 + int(lastBits) - partialBits
}

// setBit numbers bits LSB-first within each byte, the order
// buildAnticollFrame and mergeResponse use for a partial byte.
func setBit(buf *[5]byte, bit int, v bool) {
	i, mask := bit/8, byte(1<<uint(bit%8))
	if v {
		buf[i] |= mask
	} else {
		buf[i] &^= mask
	}
}

func bcc(uid []byte) byte {
	return uid[0] ^ uid[1] ^ uid[2] ^ uid[3]
}
