package pcd

import (
	"testing"
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/rfchip"
)

func TestFakeTransceiveRoundTrip(t *testing.T) {
	f := NewFake()
	f.NextResult = rfchip.ResultOk
	f.NextResponse = []byte{0x04, 0x00, 0x62}

	res, err := f.TransceiveShort(0x26, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res != rfchip.ResultOk {
		t.Fatalf("got %v, want Ok", res)
	}
	n, err := f.GetResponseLength()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("got %d, want 3", n)
	}
	buf := make([]byte, 3)
	copied, lastBits, err := f.GetResponse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if copied != 3 || lastBits != 8 {
		t.Fatalf("got copied=%d lastBits=%d", copied, lastBits)
	}
}

func TestFakeRFStateMachine(t *testing.T) {
	f := NewFake()
	if f.State() != rfchip.StateReady {
		t.Fatal("want Ready")
	}
	if err := f.ActivateRF(); err == nil {
		t.Fatal("expected error activating already-active RF")
	}
	if err := f.DeactivateRF(); err != nil {
		t.Fatal(err)
	}
	if f.State() != rfchip.StateRfOff {
		t.Fatal("want RfOff")
	}
	if err := f.ActivateRF(); err != nil {
		t.Fatal(err)
	}
}

func TestFakeFeatureNotSupported(t *testing.T) {
	f := NewFake()
	resp := f.Feature(FeatureRequest{Kind: FeatureSelfTest})
	if !resp.NotSupported {
		t.Fatal("fake declares no extended features")
	}
}

// compile-time interface satisfaction checks.
var (
	_ Device = (*Fake)(nil)
	_ Device = (*Adapter)(nil)
)
