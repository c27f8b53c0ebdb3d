package dispatch

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

// checkListBound rejects a client-requested maximum before any allocation
// sized by it. field and constName identify the violated bound in the
// error message (e.g. "maxids", "REMOTE_DOMAIN_ID_LIST_MAX").
func checkListBound(requested int32, protocolMax uint32, field, constName string) *rpc.ErrorRecord {
	if requested < 0 || uint32(requested) > protocolMax {
		return boundExceeded(field, constName)
	}
	return nil
}

func handleListDomains(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	maxIDs, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	if rec := checkListBound(maxIDs, rpc.DomainIDListMax, "maxids", "REMOTE_DOMAIN_ID_LIST_MAX"); rec != nil {
		return rec
	}
	ids, hvErr := sess.Connection().ListDomains(ctx, maxIDs)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if err := enc.Uint32(uint32(len(ids))); err != nil {
		return malformed(err)
	}
	for _, id := range ids {
		if err := enc.Int32(id); err != nil {
			return malformed(err)
		}
	}
	return nil
}

func handleNumOfDomains(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	n, err := sess.Connection().NumOfDomains(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.Int32(n))
}

func handleListDefinedDomains(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	maxNames, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	if rec := checkListBound(maxNames, rpc.DomainNameListMax, "maxnames", "REMOTE_DOMAIN_NAME_LIST_MAX"); rec != nil {
		return rec
	}
	names, hvErr := sess.Connection().ListDefinedDomains(ctx, maxNames)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeStringArray(enc, names)
}

func handleNumOfDefinedDomains(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	n, err := sess.Connection().NumOfDefinedDomains(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.Int32(n))
}

func handleListNetworks(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	maxNames, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	if rec := checkListBound(maxNames, rpc.NetworkNameListMax, "maxnames", "REMOTE_NETWORK_NAME_LIST_MAX"); rec != nil {
		return rec
	}
	names, hvErr := sess.Connection().ListNetworks(ctx, maxNames)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeStringArray(enc, names)
}

func handleNumOfNetworks(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	n, err := sess.Connection().NumOfNetworks(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.Int32(n))
}

func handleListDefinedNetworks(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	maxNames, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	if rec := checkListBound(maxNames, rpc.NetworkNameListMax, "maxnames", "REMOTE_NETWORK_NAME_LIST_MAX"); rec != nil {
		return rec
	}
	names, hvErr := sess.Connection().ListDefinedNetworks(ctx, maxNames)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeStringArray(enc, names)
}

func handleNumOfDefinedNetworks(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	n, err := sess.Connection().NumOfDefinedNetworks(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.Int32(n))
}

func encodeStringArray(enc *wire.Encoder, names []string) *rpc.ErrorRecord {
	if err := enc.Uint32(uint32(len(names))); err != nil {
		return malformed(err)
	}
	for _, n := range names {
		if err := enc.String(n); err != nil {
			return malformed(err)
		}
	}
	return nil
}
