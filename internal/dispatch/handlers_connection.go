package dispatch

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

// handleOpen implements OPEN: it is the one procedure that runs with no
// Connection yet on the session, and installs one on success.
func handleOpen(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	if sess.Connection() != nil {
		return dispatchError("connection already open")
	}
	present, err := dec.OptionalPresence()
	if err != nil {
		return malformed(err)
	}
	var name *string
	if present {
		s, err := dec.String(rpc.MaxNameLen)
		if err != nil {
			return malformed(err)
		}
		name = &s
	}
	flags, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}

	openFlags := hypervisor.OpenFlags(flags)
	if sess.ReadOnly {
		openFlags |= hypervisor.FlagReadOnly
	}

	conn, hvErr := d.Hypervisor().Open(ctx, name, openFlags)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	sess.SetConnection(conn)
	return nil
}

// handleClose implements CLOSE: it closes the session's connection and
// clears the session's slot only when the close succeeds; on failure the
// connection stays installed.
func handleClose(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	conn := sess.Connection()
	if conn == nil {
		return nil
	}
	if err := conn.Close(ctx); err != nil {
		return libraryError(err)
	}
	sess.SetConnection(nil)
	return nil
}

func handleSupportsFeature(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	feature, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	ok, hvErr := sess.Connection().SupportsFeature(ctx, feature)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.Bool(ok))
}

func handleGetType(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	typ, err := sess.Connection().GetType(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.String(typ))
}

func handleGetVersion(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	v, err := sess.Connection().GetVersion(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.Uint64(v))
}

func handleGetHostname(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	h, err := sess.Connection().GetHostname(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.String(h))
}

func handleGetCapabilities(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	caps, err := sess.Connection().GetCapabilities(ctx)
	if err != nil {
		return libraryError(err)
	}
	return encodeOrMalformed(enc.String(caps))
}

func handleGetMaxVcpus(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	present, err := dec.OptionalPresence()
	if err != nil {
		return malformed(err)
	}
	var typ string
	if present {
		if typ, err = dec.String(rpc.MaxNameLen); err != nil {
			return malformed(err)
		}
	}
	n, hvErr := sess.Connection().GetMaxVcpus(ctx, typ)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.Int32(n))
}

func handleNodeGetInfo(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	info, err := sess.Connection().NodeGetInfo(ctx)
	if err != nil {
		return libraryError(err)
	}
	if err := enc.String(info.Model); err != nil {
		return malformed(err)
	}
	if err := enc.Uint64(info.Memory); err != nil {
		return malformed(err)
	}
	if err := enc.Int32(info.CPUs); err != nil {
		return malformed(err)
	}
	if err := enc.Int32(info.MHz); err != nil {
		return malformed(err)
	}
	if err := enc.Int32(info.Nodes); err != nil {
		return malformed(err)
	}
	if err := enc.Int32(info.Sockets); err != nil {
		return malformed(err)
	}
	if err := enc.Int32(info.Cores); err != nil {
		return malformed(err)
	}
	return encodeOrMalformed(enc.Int32(info.Threads))
}

// encodeOrMalformed converts a wire encode error (payload too large) into
// an ErrorRecord; this only ever fires for replies that overrun BufMax,
// which the dispatcher treats the same as any other malformed encode.
func encodeOrMalformed(err error) *rpc.ErrorRecord {
	if err != nil {
		return malformed(err)
	}
	return nil
}
