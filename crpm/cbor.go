package crpm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// maxReaderFailureLen bounds ReaderFailure.Message per spec §6.
const maxReaderFailureLen = 200

// wireEnvelope frames every payload behind a kind discriminant, the
// keyasint-tagged small-record style bc/urtypes uses throughout.
type wireEnvelope struct {
	Kind    int             `cbor:"0,keyasint"`
	Payload cbor.RawMessage `cbor:"1,keyasint"`
}

type wireSysQueryResponse struct {
	ReaderClass byte   `cbor:"1,keyasint"`
	HWModel     byte   `cbor:"2,keyasint"`
	HWRev       byte   `cbor:"3,keyasint"`
	Serial      string `cbor:"4,keyasint"`
	SWVerMajor  byte   `cbor:"5,keyasint"`
	SWVerMinor  byte   `cbor:"6,keyasint"`
}

type wireReaderFailure struct {
	Message string `cbor:"1,keyasint"`
}

type wireActivateAuthMethods struct {
	Methods []byte `cbor:"1,keyasint"`
}

type wireUiUpdate struct {
	State int `cbor:"1,keyasint"`
}

type wireAuthMethod0GotUIDs struct {
	UIDs [][]byte `cbor:"1,keyasint"`
}

// CBORCodec is the default Codec, wire-compatible with the reference
// CRPM serializer: a two-field envelope (kind, payload) where payload
// is itself CBOR-encoded using small integer keys.
type CBORCodec struct{}

func NewCBORCodec() CBORCodec { return CBORCodec{} }

func (CBORCodec) Encode(msg Message) ([]byte, error) {
	var payload any
	switch msg.Kind {
	case KindSysQueryRequest:
		payload = struct{}{}
	case KindSysQueryResponse:
		r := msg.SysQueryResponse
		payload = wireSysQueryResponse{r.ReaderClass, r.HWModel, r.HWRev, r.Serial, r.SWVerMajor, r.SWVerMinor}
	case KindReaderFailure:
		m := msg.ReaderFailure.Message
		if len(m) > maxReaderFailureLen {
			m = m[:maxReaderFailureLen]
		}
		payload = wireReaderFailure{Message: m}
	case KindActivateAuthMethods:
		payload = wireActivateAuthMethods{Methods: msg.ActivateAuthMethods.Methods}
	case KindDeactivateAuthMethods:
		payload = struct{}{}
	case KindUiUpdate:
		payload = wireUiUpdate{State: int(msg.UiUpdate.State)}
	case KindAuthMethod0GotUIDs:
		payload = wireAuthMethod0GotUIDs{UIDs: msg.AuthMethod0GotUIDs.UIDs}
	default:
		return nil, fmt.Errorf("crpm: encode: unknown kind %v", msg.Kind)
	}
	raw, err := encMode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("crpm: encode: %w", err)
	}
	env := wireEnvelope{Kind: int(msg.Kind), Payload: raw}
	out, err := encMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("crpm: encode: %w", err)
	}
	return out, nil
}

func (CBORCodec) Decode(data []byte) (Message, error) {
	var env wireEnvelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("crpm: decode: %w", err)
	}
	msg := Message{Kind: Kind(env.Kind)}
	switch msg.Kind {
	case KindSysQueryRequest:
		msg.SysQueryRequest = &SysQueryRequest{}
	case KindSysQueryResponse:
		var w wireSysQueryResponse
		if err := decMode.Unmarshal(env.Payload, &w); err != nil {
			return Message{}, fmt.Errorf("crpm: decode: %w", err)
		}
		msg.SysQueryResponse = &SysQueryResponse{w.ReaderClass, w.HWModel, w.HWRev, w.Serial, w.SWVerMajor, w.SWVerMinor}
	case KindReaderFailure:
		var w wireReaderFailure
		if err := decMode.Unmarshal(env.Payload, &w); err != nil {
			return Message{}, fmt.Errorf("crpm: decode: %w", err)
		}
		msg.ReaderFailure = &ReaderFailure{Message: w.Message}
	case KindActivateAuthMethods:
		var w wireActivateAuthMethods
		if err := decMode.Unmarshal(env.Payload, &w); err != nil {
			return Message{}, fmt.Errorf("crpm: decode: %w", err)
		}
		msg.ActivateAuthMethods = &ActivateAuthMethods{Methods: w.Methods}
	case KindDeactivateAuthMethods:
		msg.DeactivateAuthMethods = &DeactivateAuthMethods{}
	case KindUiUpdate:
		var w wireUiUpdate
		if err := decMode.Unmarshal(env.Payload, &w); err != nil {
			return Message{}, fmt.Errorf("crpm: decode: %w", err)
		}
		msg.UiUpdate = &UiUpdate{State: UIState(w.State)}
	case KindAuthMethod0GotUIDs:
		var w wireAuthMethod0GotUIDs
		if err := decMode.Unmarshal(env.Payload, &w); err != nil {
			return Message{}, fmt.Errorf("crpm: decode: %w", err)
		}
		msg.AuthMethod0GotUIDs = &AuthMethod0GotUIDs{UIDs: w.UIDs}
	default:
		return Message{}, fmt.Errorf("crpm: decode: unknown kind %d", env.Kind)
	}
	return msg, nil
}
