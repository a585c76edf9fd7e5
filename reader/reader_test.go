package reader

import (
	"net"
	"testing"
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/pcd"
	"github.com/fmfi-svt-deadlock/reader-sw/rfchip"
)

func TestNewSystemWiresSharedHeartbeat(t *testing.T) {
	dev := pcd.NewFake()
	out := &fakeOutputs{}
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	codec := crpm.NewCBORCodec()
	wd := &fakeWatchdog{}

	sys := NewSystem(dev, out, pipeOpener(clientConn), codec, wd, SysInfo{ReaderClass: 1})

	if sys.Master == nil || sys.CardID == nil || sys.Comm == nil || sys.UI == nil {
		t.Fatal("want all four tasks constructed")
	}
	if sys.Heartbeat != sys.UI.heartbeat {
		t.Fatal("want the UI task sharing the system's heartbeat")
	}
	if sys.Master.cardID != sys.CardID {
		t.Fatal("want the master driving the system's own cardid task")
	}
}

func TestSystemActivatesPollingEndToEnd(t *testing.T) {
	dev := pcd.NewFake()
	dev.NextResult = rfchip.ResultOkTimeout // no card present, keeps FindCards short
	out := &fakeOutputs{}
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	codec := crpm.NewCBORCodec()
	wd := &fakeWatchdog{}

	sys := NewSystem(dev, out, pipeOpener(clientConn), codec, wd, SysInfo{ReaderClass: 1})

	stop := make(chan struct{})
	go sys.Run(stop)
	defer close(stop)

	msg, err := codec.Encode(crpm.Message{
		Kind:                crpm.KindActivateAuthMethods,
		ActivateAuthMethods: &crpm.ActivateAuthMethods{Methods: []byte{0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	frame := make([]byte, 4+len(msg))
	frame[0] = byte(len(msg) >> 24)
	frame[1] = byte(len(msg) >> 16)
	frame[2] = byte(len(msg) >> 8)
	frame[3] = byte(len(msg))
	copy(frame[4:], msg)
	go serverConn.Write(frame)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sys.Master.State() == Active {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("want master in Active state, got %v", sys.Master.State())
}
