package reader

import (
	"io"
	"sync"
	"time"

	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/link"
	"github.com/fmfi-svt-deadlock/reader-sw/link/serialport"
	"github.com/fmfi-svt-deadlock/reader-sw/mailbox"
)

// reconnectInterval is how often the control goroutine retries a
// dropped or never-established serial connection (DESIGN.md Open
// Question 4).
const reconnectInterval = 1 * time.Second

// readBufSize bounds a single Read call's chunk size.
const readBufSize = 512

// Opener abstracts link establishment so tests can substitute an
// in-memory pipe for the real serial device.
type Opener func() (io.ReadWriteCloser, error)

// DefaultOpener opens dev (or an OS-appropriate default when empty)
// over the real serial port.
func DefaultOpener(dev string) Opener {
	return func() (io.ReadWriteCloser, error) { return serialport.Open(dev) }
}

// CommTask owns the serial link: a control goroutine that keeps a
// connection established and drains the outbox over it, and a receive
// goroutine that frames and decodes incoming bytes, dispatching them
// to the master's inbox (spec §4.6).
type CommTask struct {
	open   Opener
	codec  crpm.Codec
	events *mailbox.Mailbox[Event]
	hb     *Heartbeat
	outbox *mailbox.Mailbox[crpm.Message]

	mu   sync.Mutex
	conn io.ReadWriteCloser
	up   bool
}

// NewCommTask constructs a Comm task. The returned mailbox is the
// outbox the master task posts outgoing CRPM messages to.
func NewCommTask(open Opener, codec crpm.Codec, events *mailbox.Mailbox[Event], hb *Heartbeat) (*CommTask, *mailbox.Mailbox[crpm.Message]) {
	c := &CommTask{
		open:   open,
		codec:  codec,
		events: events,
		hb:     hb,
		outbox: mailbox.New[crpm.Message](8),
	}
	return c, c.outbox
}

// Run starts the control and receive goroutines and blocks until stop
// is closed.
func (c *CommTask) Run(stop <-chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.control(stop) }()
	go func() { defer wg.Done(); c.receive(stop) }()
	wg.Wait()
}

func (c *CommTask) control(stop <-chan struct{}) {
	framer := link.NewFramer()
	for {
		select {
		case <-stop:
			return
		default:
		}

		if c.currentConn() == nil {
			conn, err := c.open()
			if err != nil {
				c.hb.Beat(BitComm)
				select {
				case <-stop:
					return
				case <-time.After(reconnectInterval):
				}
				continue
			}
			c.setConn(conn)
			c.setLinkUp(true)
			continue
		}

		select {
		case <-stop:
			return
		case msg := <-c.outbox.C():
			c.send(framer, msg)
		case <-time.After(reconnectInterval):
		}
		c.hb.Beat(BitComm)
	}
}

func (c *CommTask) send(framer *link.Framer, msg crpm.Message) {
	conn := c.currentConn()
	if conn == nil {
		return
	}
	data, err := c.codec.Encode(msg)
	if err != nil {
		return
	}
	if _, err := conn.Write(framer.Encode(data)); err != nil {
		c.dropConn()
	}
}

func (c *CommTask) receive(stop <-chan struct{}) {
	framer := link.NewFramer()
	buf := make([]byte, readBufSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		conn := c.currentConn()
		if conn == nil {
			select {
			case <-stop:
				return
			case <-time.After(reconnectInterval):
			}
			continue
		}

		n, err := conn.Read(buf)
		if err != nil {
			c.dropConn()
			continue
		}
		c.hb.Beat(BitComm)
		if n == 0 {
			continue
		}
		framer.Feed(buf[:n])
		for {
			datagram, ok := framer.Poll()
			if !ok {
				break
			}
			msg, err := c.codec.Decode(datagram)
			if err != nil {
				continue
			}
			c.dispatch(msg)
		}
	}
}

func (c *CommTask) dispatch(msg crpm.Message) {
	switch msg.Kind {
	case crpm.KindSysQueryRequest:
		c.events.Post(Event{Kind: EventSysQueryRequest})
	case crpm.KindActivateAuthMethods:
		var methods []byte
		if msg.ActivateAuthMethods != nil {
			methods = msg.ActivateAuthMethods.Methods
		}
		c.events.Post(Event{Kind: EventActivateAuthMethods, AuthMethods: methods})
	case crpm.KindDeactivateAuthMethods:
		c.events.Post(Event{Kind: EventDeactivateAuthMethods})
	case crpm.KindUiUpdate:
		state := crpm.UIError
		if msg.UiUpdate != nil {
			state = msg.UiUpdate.State
		}
		c.events.Post(Event{Kind: EventUiUpdate, UIState: state})
	}
}

func (c *CommTask) currentConn() io.ReadWriteCloser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *CommTask) setConn(conn io.ReadWriteCloser) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *CommTask) setLinkUp(up bool) {
	c.mu.Lock()
	changed := c.up != up
	c.up = up
	c.mu.Unlock()
	if changed {
		c.events.Post(Event{Kind: EventLinkChange, LinkUp: up})
	}
}

func (c *CommTask) dropConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	wasUp := c.up
	c.up = false
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	if wasUp {
		c.events.Post(Event{Kind: EventLinkChange, LinkUp: false})
	}
}
