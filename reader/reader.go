package reader

import (
	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/mailbox"
	"github.com/fmfi-svt-deadlock/reader-sw/pcd"
)

// System wires the four cooperating tasks together: master, cardid,
// comm, ui, plus the shared heartbeat vector (spec §4.4's top-level
// architecture).
type System struct {
	Master *MasterTask
	CardID *CardIDTask
	Comm   *CommTask
	UI     *UITask
	Heartbeat *Heartbeat
}

// NewSystem constructs a System ready to Run. dev drives the RF field,
// out drives the board's LEDs/buzzer, open establishes the serial link
// to the controller, codec (de)serialises CRPM messages, wd is the
// hardware watchdog the master kicks, and info answers SysQueryRequest.
func NewSystem(dev pcd.Device, out Outputs, open Opener, codec crpm.Codec, wd Watchdog, info SysInfo) *System {
	hb := &Heartbeat{}

	ui, uiInbox := NewUITask(out, hb, BitUI)

	masterInbox := mailbox.New[Event](8)
	cardID := NewCardIDTask(dev, masterInbox, hb)
	comm, outbox := NewCommTask(open, codec, masterInbox, hb)

	master := NewMasterTask(masterInbox, outbox, uiInbox, cardID, hb, wd, info)

	return &System{Master: master, CardID: cardID, Comm: comm, UI: ui, Heartbeat: hb}
}

// Run starts all four tasks and blocks until stop is closed.
func (s *System) Run(stop <-chan struct{}) {
	done := make(chan struct{})
	go func() { s.Master.Run(stop); done <- struct{}{} }()
	go func() { s.CardID.Run(stop); done <- struct{}{} }()
	go func() { s.Comm.Run(stop); done <- struct{}{} }()
	go func() { s.UI.Run(stop); done <- struct{}{} }()
	for i := 0; i < 4; i++ {
		<-done
	}
}
