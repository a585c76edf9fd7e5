package reader

import (
	"testing"

	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/mailbox"
	"github.com/fmfi-svt-deadlock/reader-sw/picc"
)

type fakeCardIDControl struct {
	polling bool
}

func (f *fakeCardIDControl) SetPolling(enabled bool) { f.polling = enabled }

type fakeWatchdog struct{ resets int }

func (w *fakeWatchdog) Reset() { w.resets++ }

func tryFetch[T any](mb *mailbox.Mailbox[T]) (T, bool) {
	select {
	case v := <-mb.C():
		return v, true
	default:
		var zero T
		return zero, false
	}
}

func newTestMaster() (m *MasterTask, outbox *mailbox.Mailbox[crpm.Message], ui *mailbox.Mailbox[uiCommand], cid *fakeCardIDControl, wd *fakeWatchdog) {
	inbox := mailbox.New[Event](8)
	outbox = mailbox.New[crpm.Message](8)
	ui = mailbox.New[uiCommand](4)
	cid = &fakeCardIDControl{}
	wd = &fakeWatchdog{}
	hb := &Heartbeat{}
	m = NewMasterTask(inbox, outbox, ui, cid, hb, wd, SysInfo{
		ReaderClass: 1, HWModel: 2, HWRev: 3, Serial: "abc", SWVerMajor: 1, SWVerMinor: 0,
	})
	return m, outbox, ui, cid, wd
}

func TestMasterBootsDisconnectedWithUIError(t *testing.T) {
	m, _, ui, _, _ := newTestMaster()
	if m.State() != Disconnected {
		t.Fatalf("want Disconnected, got %v", m.State())
	}
	cmd, ok := tryFetch(ui)
	if !ok || !cmd.setState || cmd.state != crpm.UIError {
		t.Fatalf("want boot UI=Error command, got %+v ok=%v", cmd, ok)
	}
}

func TestMasterLinkUpThenActivate(t *testing.T) {
	m, _, _, cid, _ := newTestMaster()
	m.handle(Event{Kind: EventLinkChange, LinkUp: true})
	if m.State() != Inactive {
		t.Fatalf("want Inactive after link up, got %v", m.State())
	}
	m.handle(Event{Kind: EventActivateAuthMethods, AuthMethods: []byte{0}})
	if m.State() != Active {
		t.Fatalf("want Active, got %v", m.State())
	}
	if !cid.polling {
		t.Fatal("want polling enabled")
	}
}

func TestMasterActivateWithEmptyMethodsDeactivates(t *testing.T) {
	m, _, _, cid, _ := newTestMaster()
	m.handle(Event{Kind: EventLinkChange, LinkUp: true})
	m.handle(Event{Kind: EventActivateAuthMethods, AuthMethods: []byte{0}})
	m.handle(Event{Kind: EventActivateAuthMethods, AuthMethods: nil})
	if m.State() != Inactive {
		t.Fatalf("want Inactive, got %v", m.State())
	}
	if cid.polling {
		t.Fatal("want polling disabled")
	}
}

func TestMasterDeactivateFromActive(t *testing.T) {
	m, _, _, cid, _ := newTestMaster()
	m.handle(Event{Kind: EventLinkChange, LinkUp: true})
	m.handle(Event{Kind: EventActivateAuthMethods, AuthMethods: []byte{0}})
	m.handle(Event{Kind: EventDeactivateAuthMethods})
	if m.State() != Inactive {
		t.Fatalf("want Inactive, got %v", m.State())
	}
	if cid.polling {
		t.Fatal("want polling disabled")
	}
}

func TestMasterLinkDownResetsToDisconnected(t *testing.T) {
	m, _, ui, cid, _ := newTestMaster()
	m.handle(Event{Kind: EventLinkChange, LinkUp: true})
	m.handle(Event{Kind: EventActivateAuthMethods, AuthMethods: []byte{0}})
	tryFetch(ui) // discard boot command
	m.handle(Event{Kind: EventLinkChange, LinkUp: false})
	if m.State() != Disconnected {
		t.Fatalf("want Disconnected, got %v", m.State())
	}
	if cid.polling {
		t.Fatal("want polling stopped")
	}
	cmd, ok := tryFetch(ui)
	if !ok || !cmd.setState || cmd.state != crpm.UIError {
		t.Fatalf("want UI=Error on disconnect, got %+v ok=%v", cmd, ok)
	}
}

func TestMasterSysQueryIgnoredWhenDisconnected(t *testing.T) {
	m, outbox, _, _, _ := newTestMaster()
	m.handle(Event{Kind: EventSysQueryRequest})
	if _, ok := tryFetch(outbox); ok {
		t.Fatal("want no SysQueryResponse while disconnected")
	}
}

func TestMasterSysQueryRespondsWhenConnected(t *testing.T) {
	m, outbox, _, _, _ := newTestMaster()
	m.handle(Event{Kind: EventLinkChange, LinkUp: true})
	m.handle(Event{Kind: EventSysQueryRequest})
	msg, ok := tryFetch(outbox)
	if !ok || msg.Kind != crpm.KindSysQueryResponse {
		t.Fatalf("want SysQueryResponse, got %+v ok=%v", msg, ok)
	}
	if msg.SysQueryResponse.Serial != "abc" {
		t.Fatalf("want serial abc, got %q", msg.SysQueryResponse.Serial)
	}
}

func TestMasterCardDetectedOnlyInActive(t *testing.T) {
	m, outbox, _, _, _ := newTestMaster()
	m.handle(Event{Kind: EventLinkChange, LinkUp: true})
	m.handle(Event{Kind: EventCardDetected, Cards: []picc.Card{{UID: []byte{1, 2, 3, 4}}}})
	if _, ok := tryFetch(outbox); ok {
		t.Fatal("want card detection dropped while Inactive")
	}

	m.handle(Event{Kind: EventActivateAuthMethods, AuthMethods: []byte{0}})
	m.handle(Event{Kind: EventCardDetected, Cards: []picc.Card{{UID: []byte{1, 2, 3, 4}}}})
	msg, ok := tryFetch(outbox)
	if !ok || msg.Kind != crpm.KindAuthMethod0GotUIDs {
		t.Fatalf("want AuthMethod0GotUIDs while Active, got %+v ok=%v", msg, ok)
	}
	if len(msg.AuthMethod0GotUIDs.UIDs) != 1 {
		t.Fatalf("want 1 UID, got %d", len(msg.AuthMethod0GotUIDs.UIDs))
	}
}

func TestMasterReaderErrorStopsPollingAndSetsUIError(t *testing.T) {
	m, outbox, ui, cid, _ := newTestMaster()
	m.handle(Event{Kind: EventLinkChange, LinkUp: true})
	m.handle(Event{Kind: EventActivateAuthMethods, AuthMethods: []byte{0}})
	tryFetch(ui)

	m.handle(Event{Kind: EventReaderError, Err: errTest})
	if m.State() != Inactive {
		t.Fatalf("want Inactive after reader error, got %v", m.State())
	}
	if cid.polling {
		t.Fatal("want polling stopped")
	}
	msg, ok := tryFetch(outbox)
	if !ok || msg.Kind != crpm.KindReaderFailure {
		t.Fatalf("want ReaderFailure, got %+v ok=%v", msg, ok)
	}
	cmd, ok := tryFetch(ui)
	if !ok || !cmd.setState || cmd.state != crpm.UIError {
		t.Fatalf("want UI=Error, got %+v ok=%v", cmd, ok)
	}
}

func TestMasterUiUpdateIgnoredWhenDisconnected(t *testing.T) {
	m, _, ui, _, _ := newTestMaster()
	tryFetch(ui) // discard boot command
	m.handle(Event{Kind: EventUiUpdate, UIState: crpm.UILocked})
	if _, ok := tryFetch(ui); ok {
		t.Fatal("want UiUpdate dropped while Disconnected")
	}
}

func TestMasterHeartbeatCheckPassesOnlyWhenAllBitsSet(t *testing.T) {
	m, _, _, _, wd := newTestMaster()
	m.hb.Beat(BitMaster)
	if m.hb.CheckAndClear() {
		t.Fatal("want no reset with only master's bit set")
	}
	m.hb.Beat(BitMaster | BitCardID | BitComm | BitUI)
	if !m.hb.CheckAndClear() {
		t.Fatal("want reset with all bits set")
	}
	_ = wd
}

var errTest = &testError{"transceive failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
