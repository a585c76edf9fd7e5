package reader

import (
	"sync"
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/mailbox"
	"github.com/fmfi-svt-deadlock/reader-sw/pcd"
	"github.com/fmfi-svt-deadlock/reader-sw/picc"
)

// cardIDPeriod is the CardID task's wakeup cadence (spec §4.7).
const cardIDPeriod = 100 * time.Millisecond

// findTimeout bounds a single anticollision round.
const findTimeout = 20 * time.Millisecond

// CardIDTask owns the RF field: it samples a mutex-guarded poll flag,
// keeps the PCD's RF state in sync with it, and runs card discovery
// while polling is enabled (spec §4.7).
type CardIDTask struct {
	mu   sync.Mutex
	poll bool

	dev    pcd.Device
	active bool

	events *mailbox.Mailbox[Event]
	hb     *Heartbeat
}

// NewCardIDTask constructs a CardID task bound to dev, delivering
// discovery/error events to events (the master's inbox).
func NewCardIDTask(dev pcd.Device, events *mailbox.Mailbox[Event], hb *Heartbeat) *CardIDTask {
	return &CardIDTask{dev: dev, events: events, hb: hb}
}

// SetPolling is the CardIDControl the master task drives.
func (c *CardIDTask) SetPolling(enabled bool) {
	c.mu.Lock()
	c.poll = enabled
	c.mu.Unlock()
}

// Run drives the task until stop is closed.
func (c *CardIDTask) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(cardIDPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		c.tick()
		c.hb.Beat(BitCardID)
	}
}

func (c *CardIDTask) tick() {
	c.mu.Lock()
	want := c.poll
	c.mu.Unlock()

	if want && !c.active {
		c.dev.ActivateRF()
		c.active = true
	} else if !want && c.active {
		c.dev.DeactivateRF()
		c.active = false
	}
	if !want {
		return
	}

	cards, err := picc.FindCards(c.dev, findTimeout)
	switch {
	case err == picc.ErrNoCard:
		return
	case err != nil:
		c.onFailure(err)
		return
	case len(cards) == 0:
		return
	}

	c.mu.Lock()
	stillPolling := c.poll
	c.mu.Unlock()
	if stillPolling {
		c.events.Post(Event{Kind: EventCardDetected, Cards: cards})
	}

	c.mu.Lock()
	c.poll = false
	c.mu.Unlock()
}

// onFailure stops polling and resets the RF field on a transceive
// error, then reports it upward.
func (c *CardIDTask) onFailure(err error) {
	c.mu.Lock()
	c.poll = false
	c.mu.Unlock()
	c.dev.DeactivateRF()
	c.active = false
	c.events.Post(Event{Kind: EventReaderError, Err: err})
}
