package rpc

import "github.com/virtrpcd/virtrpcd/internal/wire"

// ErrorLevel mirrors the level field on an error record.
type ErrorLevel int32

const (
	LevelWarning ErrorLevel = 0
	LevelError   ErrorLevel = 1
)

// ErrorDomain groups error codes by the subsystem that raised them,
// matching the error record's domain field.
type ErrorDomain int32

const (
	DomainRPC ErrorDomain = 0
	DomainDom ErrorDomain = 1
	DomainNet ErrorDomain = 2
)

// Code enumerates the error taxonomy. These are Code values in the error
// record, not wire procedure numbers.
type Code int32

const (
	CodeOK                Code = 0
	CodeInternalError      Code = 1
	CodeMalformedMessage   Code = 2
	CodeEnvelopeRejected   Code = 3
	CodeUnknownProcedure   Code = 4
	CodePreconditionFailed Code = 5
	CodeResourceExhausted  Code = 6
	CodeAuthRequired       Code = 7
	CodeAuthFailed         Code = 8
	CodeLibraryError       Code = 9
)

// DomainRef and NetworkRef are declared in internal/objref, which imports
// this package, so ErrorRecord cannot name them without an import cycle.
// It carries its optional references as pre-encoded byte slices instead.

// ErrorRecord is the body of a reply whose status is ERROR.
type ErrorRecord struct {
	Code    Code
	Domain  ErrorDomain
	Level   ErrorLevel
	Message *string
	Str1    *string
	Str2    *string
	Str3    *string
	Int1    int32
	Int2    int32
	// Dom/Net hold an already encoded DomainRef/NetworkRef. No dispatcher
	// path sets them, so error records are sent with both absent.
	DomEncoded []byte
	NetEncoded []byte
}

// NewError builds a simple error record with only a message, the common
// case for dispatcher-level failures.
func NewError(code Code, domain ErrorDomain, message string) *ErrorRecord {
	return &ErrorRecord{Code: code, Domain: domain, Level: LevelError, Message: &message}
}

func encodeOptString(enc *wire.Encoder, s *string) error {
	if err := enc.Bool(s != nil); err != nil {
		return err
	}
	if s != nil {
		return enc.String(*s)
	}
	return nil
}

func decodeOptString(dec *wire.Decoder, max uint32) (*string, error) {
	present, err := dec.OptionalPresence()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := dec.String(max)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const maxErrorString = 65536

// Encode writes the error record body.
func (er *ErrorRecord) Encode(enc *wire.Encoder) error {
	if err := enc.Int32(int32(er.Code)); err != nil {
		return err
	}
	if err := enc.Int32(int32(er.Domain)); err != nil {
		return err
	}
	if err := enc.Int32(int32(er.Level)); err != nil {
		return err
	}
	if err := encodeOptString(enc, er.Message); err != nil {
		return err
	}
	if err := encodeOptString(enc, er.Str1); err != nil {
		return err
	}
	if err := encodeOptString(enc, er.Str2); err != nil {
		return err
	}
	if err := encodeOptString(enc, er.Str3); err != nil {
		return err
	}
	if err := enc.Int32(er.Int1); err != nil {
		return err
	}
	if err := enc.Int32(er.Int2); err != nil {
		return err
	}
	// dom/net optional references, each length-prefixed so a decoder can
	// tell where one ends and the other begins without interpreting their
	// contents (that's internal/objref's job).
	if err := enc.Bool(len(er.DomEncoded) > 0); err != nil {
		return err
	}
	if len(er.DomEncoded) > 0 {
		if err := enc.WriteBytes(er.DomEncoded); err != nil {
			return err
		}
	}
	if err := enc.Bool(len(er.NetEncoded) > 0); err != nil {
		return err
	}
	if len(er.NetEncoded) > 0 {
		if err := enc.WriteBytes(er.NetEncoded); err != nil {
			return err
		}
	}
	return nil
}

// DecodeErrorRecord reads an error record body (used by tests and clients).
func DecodeErrorRecord(dec *wire.Decoder) (*ErrorRecord, error) {
	er := &ErrorRecord{}
	code, err := dec.Int32()
	if err != nil {
		return nil, err
	}
	er.Code = Code(code)
	dom, err := dec.Int32()
	if err != nil {
		return nil, err
	}
	er.Domain = ErrorDomain(dom)
	level, err := dec.Int32()
	if err != nil {
		return nil, err
	}
	er.Level = ErrorLevel(level)
	if er.Message, err = decodeOptString(dec, maxErrorString); err != nil {
		return nil, err
	}
	if er.Str1, err = decodeOptString(dec, maxErrorString); err != nil {
		return nil, err
	}
	if er.Str2, err = decodeOptString(dec, maxErrorString); err != nil {
		return nil, err
	}
	if er.Str3, err = decodeOptString(dec, maxErrorString); err != nil {
		return nil, err
	}
	if er.Int1, err = dec.Int32(); err != nil {
		return nil, err
	}
	if er.Int2, err = dec.Int32(); err != nil {
		return nil, err
	}
	hasDom, err := dec.Bool()
	if err != nil {
		return nil, err
	}
	if hasDom {
		b, err := dec.Bytes(maxErrorString)
		if err != nil {
			return nil, err
		}
		er.DomEncoded = b
	}
	hasNet, err := dec.Bool()
	if err != nil {
		return nil, err
	}
	if hasNet {
		b, err := dec.Bytes(maxErrorString)
		if err != nil {
			return nil, err
		}
		er.NetEncoded = b
	}
	return er, nil
}
