package picc

import (
	"testing"
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/pcd"
	"github.com/fmfi-svt-deadlock/reader-sw/rfchip"
)

// scriptedDevice replays a fixed sequence of transceive outcomes
// regardless of which Transceive* method is called or what's in the
// buffer — enough to drive picc's protocol logic deterministically
// without a real (or even fake-hardware-shaped) PCD underneath.
type scriptedDevice struct {
	steps []step
	i     int

	response []byte
	readPos  int
}

type step struct {
	res      rfchip.Result
	response []byte
	lastBits uint8
}

func (s *scriptedDevice) next() step {
	if s.i >= len(s.steps) {
		return step{res: rfchip.ResultOkTimeout}
	}
	st := s.steps[s.i]
	s.i++
	s.response = append([]byte(nil), st.response...)
	s.readPos = 0
	if st.lastBits == 0 {
		st.lastBits = 8
	}
	return st
}

func (s *scriptedDevice) State() rfchip.State                           { return rfchip.StateReady }
func (s *scriptedDevice) ActivateRF() error                              { return nil }
func (s *scriptedDevice) DeactivateRF() error                            { return nil }
func (s *scriptedDevice) SetParameters(p rfchip.Params) error            { return nil }
func (s *scriptedDevice) Lock()                                          {}
func (s *scriptedDevice) Unlock()                                        {}
func (s *scriptedDevice) Capabilities() pcd.Capabilities                 { return pcd.Capabilities{} }
func (s *scriptedDevice) Feature(req pcd.FeatureRequest) pcd.FeatureResponse {
	return pcd.FeatureResponse{Kind: req.Kind, NotSupported: true}
}

func (s *scriptedDevice) TransceiveShort(data7 byte, timeout time.Duration) (rfchip.Result, error) {
	st := s.next()
	return st.res, nil
}
func (s *scriptedDevice) TransceiveStandard(buf []byte, timeout time.Duration) (rfchip.Result, error) {
	st := s.next()
	return st.res, nil
}
func (s *scriptedDevice) TransceiveAnticollision(buf []byte, txNbits, rxAlign uint8, timeout time.Duration) (rfchip.Result, error) {
	st := s.next()
	return st.res, nil
}

func (s *scriptedDevice) GetResponseLength() (int, error) {
	return len(s.response) - s.readPos, nil
}
func (s *scriptedDevice) GetResponse(buf []byte) (int, uint8, error) {
	remaining := len(s.response) - s.readPos
	n := len(buf)
	if n > remaining {
		n = remaining
	}
	copy(buf[:n], s.response[s.readPos:s.readPos+n])
	s.readPos += n
	lastBits := uint8(8)
	if n > 0 && s.readPos == len(s.response) && s.i > 0 {
		lastBits = s.steps[s.i-1].lastBits
	}
	return n, lastBits, nil
}

func TestFindCardsSingleCardNoCollision(t *testing.T) {
	uid := []byte{0x04, 0x52, 0x3A, 0x18}
	dev := &scriptedDevice{steps: []step{
		{res: rfchip.ResultOk, response: []byte{0x04, 0x00}},                                   // WUPA -> ATQA
		{res: rfchip.ResultOk, response: append(append([]byte(nil), uid...), bcc(uid))},          // anticoll level1
		{res: rfchip.ResultOk, response: []byte{0x08}},                                           // SELECT -> SAK, no cascade/iso bits
		{res: rfchip.ResultOk, response: []byte{}},                                               // HLTA
	}}

	cards, err := FindCards(dev, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	c := cards[0]
	if len(c.UID) != 4 {
		t.Fatalf("got UID len %d, want 4", len(c.UID))
	}
	for i, b := range uid {
		if c.UID[i] != b {
			t.Fatalf("UID byte %d: got %x want %x", i, c.UID[i], b)
		}
	}
	if c.SAK != 0x08 {
		t.Fatalf("got SAK %x, want 0x08", c.SAK)
	}
	if c.ISOCompliant {
		t.Fatal("SAK 0x08 is not ISO-14443-4 compliant")
	}
}

func TestFindCardsNoCardPresent(t *testing.T) {
	dev := &scriptedDevice{steps: []step{
		{res: rfchip.ResultOkTimeout},
	}}
	_, err := FindCards(dev, time.Second)
	if err != ErrNoCard {
		t.Fatalf("got %v, want ErrNoCard", err)
	}
}

func TestFindCardsCascadedUID(t *testing.T) {
	// Level 1: cascade tag + 3 prefix bytes, SAK with cascade bit set.
	// Level 2: remaining 4 UID bytes, final SAK without cascade bit.
	level2UID := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	dev := &scriptedDevice{steps: []step{
		{res: rfchip.ResultOk, response: []byte{0x44, 0x00}}, // WUPA
		{res: rfchip.ResultOk, response: append([]byte{cascadeTag, 0x11, 0x22, 0x33}, bcc([]byte{cascadeTag, 0x11, 0x22, 0x33}))}, // anticoll L1
		{res: rfchip.ResultOk, response: []byte{sakCascadeBit}},                                                                  // SELECT L1 -> cascade
		{res: rfchip.ResultOk, response: append(append([]byte(nil), level2UID...), bcc(level2UID))},                              // anticoll L2
		{res: rfchip.ResultOk, response: []byte{sakCompliantBit}},                                                                // SELECT L2 -> done, ISO compliant
		{res: rfchip.ResultOk, response: []byte{}},                                                                               // HLTA
	}}

	cards, err := FindCards(dev, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	c := cards[0]
	if len(c.UID) != 7 {
		t.Fatalf("got UID len %d, want 7 (3 prefix + 4)", len(c.UID))
	}
	want := append([]byte{0x11, 0x22, 0x33}, level2UID...)
	for i, b := range want {
		if c.UID[i] != b {
			t.Fatalf("UID byte %d: got %x want %x", i, c.UID[i], b)
		}
	}
	if !c.ISOCompliant {
		t.Fatal("expected ISO-compliant SAK")
	}
}
