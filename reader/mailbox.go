// Package reader implements the four-task orchestration layer of
// spec §4.4–§4.7: master, cardid, comm, and ui, cooperating through
// bounded mailboxes and a shared heartbeat vector, grounded on the
// goroutine-per-role + channel wiring of cmd/controller/platform_sh2.go
// (one goroutine per concern, a mutex-guarded shared field for state
// the concern's goroutine publishes, buffered channels as mailboxes).
package reader

import (
	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/picc"
)

// EventKind discriminates the task mailbox message sum type (spec §3,
// "Task mailbox message").
type EventKind int

const (
	EventCardDetected EventKind = iota
	EventReaderError
	EventLinkChange
	EventSysQueryRequest
	EventActivateAuthMethods
	EventDeactivateAuthMethods
	EventUiUpdate
)

// Event is the tagged union carried by the master's inbox. mailbox.Mailbox
// is generic, so Event itself plays the role the source's bounded
// object pool does: callers build one on the stack and Post it, no
// separate allocation/free step needed in Go.
type Event struct {
	Kind EventKind

	Cards       []picc.Card // EventCardDetected
	Err         error       // EventReaderError
	LinkUp      bool        // EventLinkChange
	AuthMethods []byte      // EventActivateAuthMethods (nil/empty = none)
	UIState     crpm.UIState
}
