package pcd

import (
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/rfchip"
)

// Fake is an in-memory Device for exercising picc and reader logic
// without real hardware. Script expected transceive outcomes via
// NextResult/NextResponse before calling into code that invokes Device.
type Fake struct {
	state rfchip.State

	NextResult   rfchip.Result
	NextErr      error
	NextResponse []byte
	NextLastBits uint8

	response []byte
	readPos  int
}

// NewFake returns a Fake ready in StateReady (RF already on), since
// picc-level tests care about the protocol, not bring-up.
func NewFake() *Fake {
	return &Fake{state: rfchip.StateReady, NextLastBits: 8}
}

func (f *Fake) State() rfchip.State { return f.state }

func (f *Fake) ActivateRF() error {
	if f.state != rfchip.StateRfOff {
		return rfchip.ErrBadState
	}
	f.state = rfchip.StateReady
	return nil
}

func (f *Fake) DeactivateRF() error {
	if f.state != rfchip.StateReady {
		return rfchip.ErrBadState
	}
	f.state = rfchip.StateRfOff
	return nil
}

func (f *Fake) Capabilities() Capabilities {
	return Capabilities{
		RxSpeeds: []rfchip.Speed{rfchip.Speed106k}, TxSpeeds: []rfchip.Speed{rfchip.Speed106k},
		Modes: []rfchip.Mode{rfchip.ModeA}, MaxTxBytes: rfchip.ResponseBufferSize, MaxRxBytes: rfchip.ResponseBufferSize,
	}
}

func (f *Fake) SetParameters(p rfchip.Params) error { return nil }

func (f *Fake) transact() (rfchip.Result, error) {
	f.response = append([]byte(nil), f.NextResponse...)
	f.readPos = 0
	return f.NextResult, f.NextErr
}

func (f *Fake) TransceiveShort(data7 byte, timeout time.Duration) (rfchip.Result, error) {
	return f.transact()
}

func (f *Fake) TransceiveStandard(buf []byte, timeout time.Duration) (rfchip.Result, error) {
	return f.transact()
}

func (f *Fake) TransceiveAnticollision(buf []byte, txNbits, rxAlign uint8, timeout time.Duration) (rfchip.Result, error) {
	return f.transact()
}

func (f *Fake) GetResponseLength() (int, error) {
	return len(f.response) - f.readPos, nil
}

func (f *Fake) GetResponse(buf []byte) (int, uint8, error) {
	remaining := len(f.response) - f.readPos
	n := len(buf)
	if n > remaining {
		n = remaining
	}
	copy(buf[:n], f.response[f.readPos:f.readPos+n])
	f.readPos += n
	last := uint8(8)
	if n > 0 && f.readPos == len(f.response) {
		last = f.NextLastBits
	}
	return n, last, nil
}

func (f *Fake) Lock()   {}
func (f *Fake) Unlock() {}

func (f *Fake) Feature(req FeatureRequest) FeatureResponse {
	return FeatureResponse{Kind: req.Kind, NotSupported: true}
}
