// Package crpm defines the Go-side shape of controller↔reader protocol
// messages (spec §6): the decoded message kinds the core produces and
// consumes over the opaque, externally-framed serial link, plus a
// swappable Codec for turning a Message into wire bytes and back. The
// core only depends on the Codec interface; CBORCodec is the concrete
// default, grounded the way bc/urtypes wires up fxamacker/cbor.
package crpm

// Kind discriminates the CRPM message sum type.
type Kind int

const (
	KindSysQueryRequest Kind = iota
	KindSysQueryResponse
	KindReaderFailure
	KindActivateAuthMethods
	KindDeactivateAuthMethods
	KindUiUpdate
	KindAuthMethod0GotUIDs
)

func (k Kind) String() string {
	switch k {
	case KindSysQueryRequest:
		return "sys-query-request"
	case KindSysQueryResponse:
		return "sys-query-response"
	case KindReaderFailure:
		return "reader-failure"
	case KindActivateAuthMethods:
		return "activate-auth-methods"
	case KindDeactivateAuthMethods:
		return "deactivate-auth-methods"
	case KindUiUpdate:
		return "ui-update"
	case KindAuthMethod0GotUIDs:
		return "auth-method-0-got-uids"
	default:
		return "unknown"
	}
}

// SysQueryRequest carries no payload.
type SysQueryRequest struct{}

// SysQueryResponse answers SysQueryRequest. Serial is carried as given:
// nothing here pads it or checks its length (cmd/reader fills it from the
// Serial field of /proc/cpuinfo, or leaves it empty if that read fails).
type SysQueryResponse struct {
	ReaderClass byte
	HWModel     byte
	HWRev       byte
	Serial      string
	SWVerMajor  byte
	SWVerMinor  byte
}

// ReaderFailure reports an internal reader error to the controller.
// Message is truncated to 200 bytes by the codec if longer.
type ReaderFailure struct {
	Message string
}

// ActivateAuthMethods lists the auth method tags the controller wants
// enabled. An empty list means "deactivate everything".
type ActivateAuthMethods struct {
	Methods []byte
}

// DeactivateAuthMethods carries no payload.
type DeactivateAuthMethods struct{}

// UIState is the persistent UI state the controller asks the reader to show.
type UIState int

const (
	UIError UIState = iota
	UILocked
	UIUnlocked
)

// UiUpdate asks the UI task to switch its persistent sequence.
type UiUpdate struct {
	State UIState
}

// AuthMethod0GotUIDs reports the UIDs found by the most recent poll
// (auth method 0: bare UID match).
type AuthMethod0GotUIDs struct {
	UIDs [][]byte
}

// Message is a sum type over every CRPM payload kind; exactly the
// field matching Kind is non-nil.
type Message struct {
	Kind Kind

	SysQueryRequest       *SysQueryRequest
	SysQueryResponse      *SysQueryResponse
	ReaderFailure         *ReaderFailure
	ActivateAuthMethods   *ActivateAuthMethods
	DeactivateAuthMethods *DeactivateAuthMethods
	UiUpdate              *UiUpdate
	AuthMethod0GotUIDs    *AuthMethod0GotUIDs
}

// Codec turns a Message into wire bytes and back. The wire framing
// itself (how a datagram's boundaries are found in the byte stream) is
// the external link layer's job; Codec only owns payload serialization.
type Codec interface {
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}
