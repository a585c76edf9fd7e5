// Package pcd defines the polymorphic proximity-coupling-device
// interface of spec §3/§4.2: a capability set any contactless reader
// chip can implement, with rfchip.Driver (through Adapter) as the one
// concrete implementation and Fake as an in-memory implementation for
// tests.
//
// This replaces the source's ad-hoc virtual-method table in a flat
// record (DESIGN NOTES) with a regular Go interface, the way
// nfc/poller.Device does for the teacher's own tag poller.
package pcd

import (
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/rfchip"
)

// Capabilities describes what a concrete PCD implementation supports:
// its speeds, modes, and maximum frame sizes.
type Capabilities struct {
	RxSpeeds   []rfchip.Speed
	TxSpeeds   []rfchip.Speed
	Modes      []rfchip.Mode
	MaxTxBytes int
	MaxRxBytes int
}

// Device is the abstract PCD handle spec §3 describes. rfchip.Driver
// satisfies it through Adapter (see adapter.go), which adds Capabilities
// and Feature; a fake satisfies it in tests.
type Device interface {
	State() rfchip.State
	ActivateRF() error
	DeactivateRF() error

	Capabilities() Capabilities
	SetParameters(p rfchip.Params) error

	TransceiveShort(data7 byte, timeout time.Duration) (rfchip.Result, error)
	TransceiveStandard(buf []byte, timeout time.Duration) (rfchip.Result, error)
	TransceiveAnticollision(buf []byte, txNbits, rxAlign uint8, timeout time.Duration) (rfchip.Result, error)

	GetResponseLength() (int, error)
	GetResponse(buf []byte) (copied int, nLastBits uint8, err error)

	Lock()
	Unlock()

	// Feature invokes an extended feature (e.g. self-test). It returns a
	// FeatureResponse with NotSupported set if req's kind is not
	// implemented by this device.
	Feature(req FeatureRequest) FeatureResponse
}

// FeatureKind discriminates extended-feature request/response variants.
// This replaces the source's void*-parameter tagged dispatch (DESIGN
// NOTES) with a sum type.
type FeatureKind int

const (
	FeatureSelfTest FeatureKind = iota
)

// FeatureRequest is a sum type over extended-feature invocations.
type FeatureRequest struct {
	Kind FeatureKind
}

// FeatureResponse is a sum type over extended-feature results, with a
// NotSupported tag standing in for the "no such feature" case.
type FeatureResponse struct {
	Kind         FeatureKind
	NotSupported bool

	// SelfTestPassed is valid when Kind == FeatureSelfTest && !NotSupported.
	SelfTestPassed bool
	Err            error
}
