package reader

import (
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/mailbox"
)

// LED identifies one of the board's four discrete LED elements (two
// bi-colour LEDs: status and lock, each red/green).
type LED int

const (
	StatusRed LED = iota
	StatusGreen
	LockRed
	LockGreen
	numLEDs
)

// LEDAction is a UI sequence element's per-LED instruction.
type LEDAction int

const (
	NoChange LEDAction = iota
	Set
	Clear
)

// Outputs is the hardware sink the UI task drives: four LEDs plus a
// buzzer whose tone is a half-period in 2 MHz ticks (0 stops it).
type Outputs interface {
	SetLED(l LED, on bool)
	SetBuzzer(halfPeriodTicks uint16)
}

// UIElement is one entry of a UI tape: the output state to apply, and
// how many 100ms ticks to hold it. A zero Duration is the sequence
// terminator.
type UIElement struct {
	BuzzerHalfPeriodTicks uint16
	LEDs                  [numLEDs]LEDAction
	Duration              int // in 100ms ticks; 0 = sentinel
}

// Required persistent sequences (spec §4.5).
var (
	sequenceError = []UIElement{
		{LEDs: [numLEDs]LEDAction{StatusRed: Set}, Duration: 5},
		{LEDs: [numLEDs]LEDAction{StatusRed: Clear}, Duration: 5},
	}
	sequenceLocked = []UIElement{
		{LEDs: [numLEDs]LEDAction{StatusGreen: Set, LockRed: Set}, Duration: 1},
	}
	sequenceUnlocked = []UIElement{
		{LEDs: [numLEDs]LEDAction{StatusGreen: Set, LockGreen: Set}, Duration: 1},
	}
)

// Required flash overlays (spec §4.5).
var (
	// flashReadOK is a 1 second, ~880 Hz tone. 2 MHz / (2 * 880 Hz) ≈ 1136 ticks.
	flashReadOK = []UIElement{
		{BuzzerHalfPeriodTicks: 1136, Duration: 10},
	}
	// flashReadFail is three 220 Hz bursts with a blinking lock-red LED.
	// 2 MHz / (2 * 220 Hz) ≈ 4545 ticks.
	flashReadFail = []UIElement{
		{BuzzerHalfPeriodTicks: 4545, LEDs: [numLEDs]LEDAction{LockRed: Set}, Duration: 2},
		{LEDs: [numLEDs]LEDAction{LockRed: Clear}, Duration: 1},
		{BuzzerHalfPeriodTicks: 4545, LEDs: [numLEDs]LEDAction{LockRed: Set}, Duration: 2},
		{LEDs: [numLEDs]LEDAction{LockRed: Clear}, Duration: 1},
		{BuzzerHalfPeriodTicks: 4545, LEDs: [numLEDs]LEDAction{LockRed: Set}, Duration: 2},
		{LEDs: [numLEDs]LEDAction{LockRed: Clear}, Duration: 1},
	}
)

func sequenceFor(s crpm.UIState) []UIElement {
	switch s {
	case crpm.UILocked:
		return sequenceLocked
	case crpm.UIUnlocked:
		return sequenceUnlocked
	default:
		return sequenceError
	}
}

// tape walks a static UI sequence, looping at the sentinel.
type tape struct {
	seq     []UIElement
	pos     int
	elapsed int // ticks held on the current element
}

func newTape(seq []UIElement) *tape {
	return &tape{seq: seq}
}

func (t *tape) reset(seq []UIElement) {
	t.seq = seq
	t.pos = 0
	t.elapsed = 0
}

// current returns the element the tape is presently on.
func (t *tape) current() (UIElement, bool) {
	if t == nil || t.pos >= len(t.seq) || t.seq[t.pos].Duration == 0 {
		return UIElement{}, false
	}
	return t.seq[t.pos], true
}

// advance moves one tick forward, wrapping at the sentinel. It reports
// whether the tape just hit the sentinel (finished a one-shot pass).
func (t *tape) advance() (finished bool) {
	t.elapsed++
	elem, ok := t.current()
	if !ok {
		return true
	}
	if t.elapsed < elem.Duration {
		return false
	}
	t.elapsed = 0
	t.pos++
	if _, ok := t.current(); !ok {
		t.pos = 0
		return true
	}
	return false
}

// uiCommand is what the master task sends the UI task.
type uiCommand struct {
	setState bool
	state    crpm.UIState
	flash    bool
	flashSeq []UIElement
}

// UITask owns the persistent and flash tapes and drives Outputs at a
// 100ms tick, per spec §4.5.
type UITask struct {
	inbox     *mailbox.Mailbox[uiCommand]
	out       Outputs
	persist   *tape
	flash     *tape
	heartbeat *Heartbeat
	bit       uint8
}

// NewUITask constructs a UI task in the Error state, matching the
// master's documented boot state.
func NewUITask(out Outputs, hb *Heartbeat, bit uint8) (*UITask, *mailbox.Mailbox[uiCommand]) {
	inbox := mailbox.New[uiCommand](4)
	return &UITask{
		inbox:     inbox,
		out:       out,
		persist:   newTape(sequenceError),
		heartbeat: hb,
		bit:       bit,
	}, inbox
}

// SetState asks the UI task to replace its persistent sequence.
func SetState(inbox *mailbox.Mailbox[uiCommand], s crpm.UIState) {
	inbox.Post(uiCommand{setState: true, state: s})
}

// Flash asks the UI task to overlay a one-shot transient sequence.
func Flash(inbox *mailbox.Mailbox[uiCommand], seq []UIElement) {
	inbox.Post(uiCommand{flash: true, flashSeq: seq})
}

// tickPeriod is the UI task's drain-and-advance cadence (spec §4.5).
const tickPeriod = 100 * time.Millisecond

// Run drains uiCommands and advances the tapes until stop is closed.
// Each loop iteration is exactly one tick: either a command arrives
// within tickPeriod (handled, then the tapes still advance) or the
// wait times out and only the tapes advance — mirroring "drain the
// mailbox with a 100ms timeout" followed by the fixed per-tick work.
func (u *UITask) Run(stop <-chan struct{}) {
	timer := time.NewTimer(tickPeriod)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case cmd := <-u.inbox.C():
			if cmd.setState {
				u.persist.reset(sequenceFor(cmd.state))
				u.clearOutputs()
			}
			if cmd.flash {
				u.flash = newTape(cmd.flashSeq)
			}
		case <-timer.C:
		}
		u.tick()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(tickPeriod)
	}
}

func (u *UITask) tick() {
	if u.flash != nil {
		if elem, ok := u.flash.current(); ok {
			u.apply(elem)
		}
		if u.flash.advance() {
			u.flash = nil
			u.clearOutputs()
		}
	} else {
		if elem, ok := u.persist.current(); ok {
			u.apply(elem)
		}
		u.persist.advance()
	}
	if u.heartbeat != nil {
		u.heartbeat.Beat(u.bit)
	}
}

func (u *UITask) clearOutputs() {
	for l := LED(0); l < numLEDs; l++ {
		u.out.SetLED(l, false)
	}
	u.out.SetBuzzer(0)
}

func (u *UITask) apply(elem UIElement) {
	for l, action := range elem.LEDs {
		switch action {
		case Set:
			u.out.SetLED(LED(l), true)
		case Clear:
			u.out.SetLED(LED(l), false)
		}
	}
	u.out.SetBuzzer(elem.BuzzerHalfPeriodTicks)
}
