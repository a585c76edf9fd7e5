package pcd

import "github.com/fmfi-svt-deadlock/reader-sw/rfchip"

// Adapter wraps an *rfchip.Driver to satisfy Device. State, RF on/off,
// parameters, transceive, and the response queue are all already
// rfchip.Driver methods with matching signatures; Adapter only adds the
// capability descriptor and the extended-feature dispatch the bare
// driver doesn't know about.
type Adapter struct {
	*rfchip.Driver
}

// NewAdapter returns a Device backed by d.
func NewAdapter(d *rfchip.Driver) *Adapter {
	return &Adapter{Driver: d}
}

func (a *Adapter) Capabilities() Capabilities {
	return Capabilities{
		RxSpeeds:   []rfchip.Speed{rfchip.Speed106k, rfchip.Speed212k, rfchip.Speed424k, rfchip.Speed848k},
		TxSpeeds:   []rfchip.Speed{rfchip.Speed106k, rfchip.Speed212k, rfchip.Speed424k, rfchip.Speed848k},
		Modes:      []rfchip.Mode{rfchip.ModeA},
		MaxTxBytes: rfchip.ResponseBufferSize,
		MaxRxBytes: rfchip.ResponseBufferSize,
	}
}

// Feature dispatches the one extended feature rfchip exposes: self-test.
func (a *Adapter) Feature(req FeatureRequest) FeatureResponse {
	switch req.Kind {
	case FeatureSelfTest:
		passed, err := a.Driver.SelfTest()
		return FeatureResponse{Kind: FeatureSelfTest, SelfTestPassed: passed, Err: err}
	default:
		return FeatureResponse{Kind: req.Kind, NotSupported: true}
	}
}
