package reader

import (
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/mailbox"
	"github.com/fmfi-svt-deadlock/reader-sw/picc"
)

// MasterState is the master task's overall state machine (spec §4.4).
type MasterState int

const (
	Disconnected MasterState = iota
	Inactive
	Active
)

func (s MasterState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return "invalid"
	}
}

// heartbeatPeriod is the master's main-loop cadence, chosen to match
// the UI task's 100ms tick (DESIGN.md Open Question 5) — every task
// has a sub-100ms-or-100ms cooperative suspension point, so the
// watchdog window resolves at that granularity.
const heartbeatPeriod = 100 * time.Millisecond

// CardIDControl is the interface the master uses to start/stop polling.
type CardIDControl interface {
	SetPolling(enabled bool)
}

// SysInfo answers SysQueryRequest.
type SysInfo struct {
	ReaderClass, HWModel, HWRev byte
	Serial                      string
	SWVerMajor, SWVerMinor      byte
}

// MasterTask implements spec §4.4.
type MasterTask struct {
	inbox  *mailbox.Mailbox[Event]
	outbox *mailbox.Mailbox[crpm.Message]
	ui     *mailbox.Mailbox[uiCommand]
	cardID CardIDControl
	hb     *Heartbeat
	wd     Watchdog
	info   SysInfo

	state MasterState
}

// NewMasterTask boots the master Disconnected with the UI in Error,
// matching spec §4.4's documented initial state. inbox is shared with
// the cardid and comm tasks, which post Events into it.
func NewMasterTask(inbox *mailbox.Mailbox[Event], outbox *mailbox.Mailbox[crpm.Message], ui *mailbox.Mailbox[uiCommand], cardID CardIDControl, hb *Heartbeat, wd Watchdog, info SysInfo) *MasterTask {
	SetState(ui, crpm.UIError)
	return &MasterTask{
		inbox: inbox, outbox: outbox, ui: ui, cardID: cardID, hb: hb, wd: wd, info: info,
		state: Disconnected,
	}
}

// Run processes events until stop is closed, servicing the heartbeat
// vector and hardware watchdog once per heartbeatPeriod regardless of
// whether any event arrived.
func (m *MasterTask) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case ev := <-m.inbox.C():
			m.handle(ev)
		case <-ticker.C:
		}
		m.hb.Beat(BitMaster)
		if m.hb.CheckAndClear() {
			m.wd.Reset()
		}
	}
}

func (m *MasterTask) handle(ev Event) {
	switch ev.Kind {
	case EventLinkChange:
		m.handleLinkChange(ev.LinkUp)
	case EventActivateAuthMethods:
		m.handleActivate(ev.AuthMethods)
	case EventDeactivateAuthMethods:
		m.deactivate()
	case EventSysQueryRequest:
		m.handleSysQuery()
	case EventUiUpdate:
		if m.state != Disconnected {
			SetState(m.ui, ev.UIState)
		}
	case EventCardDetected:
		m.handleCardDetected(ev.Cards)
	case EventReaderError:
		m.handleReaderError(ev.Err)
	}
}

func (m *MasterTask) handleLinkChange(up bool) {
	if up {
		if m.state == Disconnected {
			m.state = Inactive
		}
		return
	}
	if m.state != Disconnected {
		m.cardID.SetPolling(false)
		SetState(m.ui, crpm.UIError)
		m.state = Disconnected
	}
}

func (m *MasterTask) handleActivate(methods []byte) {
	if m.state == Disconnected {
		return
	}
	if len(methods) > 0 {
		m.state = Active
		m.cardID.SetPolling(true)
	} else {
		m.deactivate()
	}
}

func (m *MasterTask) deactivate() {
	if m.state == Disconnected {
		return
	}
	m.state = Inactive
	m.cardID.SetPolling(false)
}

func (m *MasterTask) handleSysQuery() {
	if m.state == Disconnected {
		return
	}
	m.outbox.Post(crpm.Message{Kind: crpm.KindSysQueryResponse, SysQueryResponse: &crpm.SysQueryResponse{
		ReaderClass: m.info.ReaderClass, HWModel: m.info.HWModel, HWRev: m.info.HWRev,
		Serial: m.info.Serial, SWVerMajor: m.info.SWVerMajor, SWVerMinor: m.info.SWVerMinor,
	}})
}

func (m *MasterTask) handleCardDetected(cards []picc.Card) {
	if m.state != Active {
		return
	}
	uids := make([][]byte, len(cards))
	for i, c := range cards {
		uids[i] = c.UID
	}
	m.outbox.Post(crpm.Message{Kind: crpm.KindAuthMethod0GotUIDs, AuthMethod0GotUIDs: &crpm.AuthMethod0GotUIDs{UIDs: uids}})
}

func (m *MasterTask) handleReaderError(err error) {
	if m.state == Disconnected {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	m.outbox.Post(crpm.Message{Kind: crpm.KindReaderFailure, ReaderFailure: &crpm.ReaderFailure{Message: msg}})
	m.cardID.SetPolling(false)
	SetState(m.ui, crpm.UIError)
	m.state = Inactive
}

// State returns the current master state (test/diagnostic use).
func (m *MasterTask) State() MasterState { return m.state }
