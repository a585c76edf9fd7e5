// Package link provides the default datagram framing over the opaque
// byte stream spec §1 excludes from the core ("the serial link-layer
// protocol framing... treated as an opaque byte-oriented reliable
// datagram channel"). Framer is the concrete wiring the comm task uses
// by default, the way crpm.CBORCodec is the default wiring for the
// codec spec §1 also excludes.
package link

import "encoding/binary"

// Framer reassembles a byte stream into complete datagrams using a
// 4-byte big-endian length prefix per datagram.
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends newly-read bytes to the reassembly buffer.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)
}

// Poll extracts one complete datagram if enough bytes are buffered.
func (f *Framer) Poll() (datagram []byte, ok bool) {
	if len(f.buf) < 4 {
		return nil, false
	}
	n := binary.BigEndian.Uint32(f.buf)
	if uint32(len(f.buf)) < 4+n {
		return nil, false
	}
	datagram = append([]byte(nil), f.buf[4:4+n]...)
	f.buf = f.buf[4+n:]
	return datagram, true
}

// Encode wraps payload in the length-prefixed frame for transmission.
func (f *Framer) Encode(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}
