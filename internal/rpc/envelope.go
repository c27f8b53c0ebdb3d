// Package rpc implements the fixed envelope prepended to every dispatcher
// message, and the protocol's error record.
package rpc

import (
	"fmt"

	"github.com/virtrpcd/virtrpcd/internal/wire"
)

// Direction distinguishes a call from its reply.
type Direction int32

const (
	DirectionCall  Direction = 0
	DirectionReply Direction = 1
)

// Status reports whether a reply carries a result or an error body.
type Status int32

const (
	StatusOK    Status = 0
	StatusError Status = 1
)

// Program and Version identify the protocol this dispatcher speaks.
// Every call's envelope is checked against these (program == PROGRAM,
// version == VERSION).
const (
	Program uint32 = 0x20008086
	Version uint32 = 1
)

// Envelope is the fixed header present on every message.
type Envelope struct {
	Program   uint32
	Version   uint32
	Procedure int32
	Direction Direction
	Serial    uint32
	Status    Status
}

// Blind is the synthesised envelope used for errors detected before a
// real envelope could be decoded.
func Blind() Envelope {
	return Envelope{
		Program:   Program,
		Version:   Version,
		Procedure: int32(ProcOpen),
		Direction: DirectionReply,
		Serial:    1,
		Status:    StatusError,
	}
}

// ReplyTo builds the reply envelope for a call, echoing serial and
// procedure per the "reply's (program,version,procedure,serial) equals
// the call's" invariant.
func ReplyTo(call Envelope, status Status) Envelope {
	return Envelope{
		Program:   call.Program,
		Version:   call.Version,
		Procedure: call.Procedure,
		Direction: DirectionReply,
		Serial:    call.Serial,
		Status:    status,
	}
}

// Decode reads an envelope from the front of a decoder.
func Decode(d *wire.Decoder) (Envelope, error) {
	var e Envelope
	var err error
	if e.Program, err = d.Uint32(); err != nil {
		return e, err
	}
	if e.Version, err = d.Uint32(); err != nil {
		return e, err
	}
	proc, err := d.Int32()
	if err != nil {
		return e, err
	}
	e.Procedure = proc
	dir, err := d.Int32()
	if err != nil {
		return e, err
	}
	e.Direction = Direction(dir)
	if e.Serial, err = d.Uint32(); err != nil {
		return e, err
	}
	status, err := d.Int32()
	if err != nil {
		return e, err
	}
	e.Status = Status(status)
	return e, nil
}

// Encode writes an envelope to the encoder.
func Encode(enc *wire.Encoder, e Envelope) error {
	if err := enc.Uint32(e.Program); err != nil {
		return err
	}
	if err := enc.Uint32(e.Version); err != nil {
		return err
	}
	if err := enc.Int32(e.Procedure); err != nil {
		return err
	}
	if err := enc.Int32(int32(e.Direction)); err != nil {
		return err
	}
	if err := enc.Uint32(e.Serial); err != nil {
		return err
	}
	return enc.Int32(int32(e.Status))
}

// EnvelopeSize is the fixed encoded size of an Envelope in bytes.
const EnvelopeSize = 4 * 6

// CheckConstants validates program/version/direction/status, returning an
// error naming the first mismatched field.
func CheckConstants(e Envelope) error {
	if e.Program != Program {
		return fmt.Errorf("program mismatch (actual %#x, expected %#x)", e.Program, Program)
	}
	if e.Version != Version {
		return fmt.Errorf("version mismatch (actual %d, expected %d)", e.Version, Version)
	}
	if e.Direction != DirectionCall {
		return fmt.Errorf("direction mismatch (actual %d, expected CALL)", e.Direction)
	}
	if e.Status != StatusOK {
		return fmt.Errorf("status mismatch (actual %d, expected OK)", e.Status)
	}
	return nil
}
