package dispatch

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/objref"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

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

func encodeOptString(enc *wire.Encoder, s *string) error {
	if err := enc.Bool(s != nil); err != nil {
		return err
	}
	if s != nil {
		return enc.String(*s)
	}
	return nil
}

// handleDomainMigratePrepare implements PREPARE, passing the opaque
// cookie through verbatim.
func handleDomainMigratePrepare(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	cookieIn, err := dec.Bytes(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	uriIn, err := decodeOptString(dec, rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint64()
	if err != nil {
		return malformed(err)
	}
	dname, err := decodeOptString(dec, rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	bandwidth, err := dec.Uint64()
	if err != nil {
		return malformed(err)
	}

	cookieOut, uriOut, hvErr := sess.Connection().DomainMigratePrepare(ctx, cookieIn, uriIn, flags, dname, bandwidth)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if err := enc.WriteBytes(cookieOut); err != nil {
		return malformed(err)
	}
	return encodeOrMalformed(encodeOptString(enc, uriOut))
}

func handleDomainMigratePerform(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	cookieIn, err := dec.Bytes(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	uri, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint64()
	if err != nil {
		return malformed(err)
	}
	dname, err := decodeOptString(dec, rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	bandwidth, err := dec.Uint64()
	if err != nil {
		return malformed(err)
	}

	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainMigratePerform(ctx, dom, cookieIn, uri, flags, dname, bandwidth); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainMigrateFinish(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	dname, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	cookieIn, err := dec.Bytes(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	uri, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint64()
	if err != nil {
		return malformed(err)
	}

	dom, hvErr := sess.Connection().DomainMigrateFinish(ctx, dname, cookieIn, uri, flags)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeDomainRefOrMalformed(enc, dom)
}
