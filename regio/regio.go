// Package regio implements the register-level SPI framing shared by
// every chip driver in this module: one logical transaction per
// register access, with chip-select asserted for its whole duration.
package regio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/spi"
)

// ErrUnimplemented is returned by interfaces this package accepts but
// does not implement yet (I²C, UART register framing).
var ErrUnimplemented = errors.New("regio: unimplemented")

// Bus is the register-level view of a chip's command interface. SPI is
// the only implementation at present.
type Bus interface {
	Read(reg byte) (byte, error)
	Write(reg, data byte) error
	ReadBurst(reg byte, buf []byte) error
	WriteBurst(reg byte, data []byte) error
	SetBits(reg, mask byte) error
	ClearBits(reg, mask byte) error
	WriteMasked(reg, mask, data byte) error
}

// SPI is a Bus backed by a periph.io spi.Conn. reg is a 6-bit register
// address space; the addressing byte is
// {bit7 = rw, bits6..1 = reg, bit0 = 0}.
type SPI struct {
	conn spi.Conn
	// scratch avoids an allocation per register access.
	scratch [2]byte
}

// NewSPI wraps an already-connected SPI conn (periph.io/x/conn/v3/spi.Conn),
// e.g. as returned by spi.Port.Connect.
func NewSPI(conn spi.Conn) *SPI {
	return &SPI{conn: conn}
}

func addrByte(reg byte, read bool) byte {
	b := (reg << 1) & 0x7E
	if read {
		b |= 0x80
	}
	return b
}

// Read reads a single register.
func (s *SPI) Read(reg byte) (byte, error) {
	w := s.scratch[:2]
	w[0], w[1] = addrByte(reg, true), 0
	r := make([]byte, 2)
	if err := s.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("regio: read reg %#x: %w", reg, err)
	}
	// The response lags the command byte by one SPI byte.
	return r[1], nil
}

// Write writes a single register.
func (s *SPI) Write(reg, data byte) error {
	w := s.scratch[:2]
	w[0], w[1] = addrByte(reg, false), data
	if err := s.conn.Tx(w, make([]byte, 2)); err != nil {
		return fmt.Errorf("regio: write reg %#x: %w", reg, err)
	}
	return nil
}

// ReadBurst reads len(buf) bytes starting at reg, one chip-select
// assertion for the whole burst.
func (s *SPI) ReadBurst(reg byte, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	w := make([]byte, len(buf)+1)
	w[0] = addrByte(reg, true)
	r := make([]byte, len(w))
	if err := s.conn.Tx(w, r); err != nil {
		return fmt.Errorf("regio: read burst reg %#x: %w", reg, err)
	}
	copy(buf, r[1:])
	return nil
}

// WriteBurst writes data into reg (typically the FIFO register, which
// auto-increments are not needed for) in one transaction.
func (s *SPI) WriteBurst(reg byte, data []byte) error {
	w := make([]byte, len(data)+1)
	w[0] = addrByte(reg, false)
	copy(w[1:], data)
	if err := s.conn.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("regio: write burst reg %#x: %w", reg, err)
	}
	return nil
}

// SetBits sets the bits in mask, leaving the rest untouched.
func (s *SPI) SetBits(reg, mask byte) error {
	v, err := s.Read(reg)
	if err != nil {
		return err
	}
	return s.Write(reg, v|mask)
}

// ClearBits clears the bits in mask, leaving the rest untouched.
func (s *SPI) ClearBits(reg, mask byte) error {
	v, err := s.Read(reg)
	if err != nil {
		return err
	}
	return s.Write(reg, v&^mask)
}

// WriteMasked replaces the bits covered by mask with the corresponding
// bits of data, read-modify-write.
func (s *SPI) WriteMasked(reg, mask, data byte) error {
	v, err := s.Read(reg)
	if err != nil {
		return err
	}
	return s.Write(reg, (v&^mask)|(data&mask))
}

// Unimplemented is a Bus stub for interfaces this driver accepts in its
// configuration but cannot yet drive (I²C, UART register framing).
type Unimplemented struct{}

func (Unimplemented) Read(byte) (byte, error)          { return 0, ErrUnimplemented }
func (Unimplemented) Write(byte, byte) error            { return ErrUnimplemented }
func (Unimplemented) ReadBurst(byte, []byte) error      { return ErrUnimplemented }
func (Unimplemented) WriteBurst(byte, []byte) error     { return ErrUnimplemented }
func (Unimplemented) SetBits(byte, byte) error          { return ErrUnimplemented }
func (Unimplemented) ClearBits(byte, byte) error        { return ErrUnimplemented }
func (Unimplemented) WriteMasked(byte, byte, byte) error { return ErrUnimplemented }
