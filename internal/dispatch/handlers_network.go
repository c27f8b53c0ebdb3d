package dispatch

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
	"github.com/virtrpcd/virtrpcd/internal/objref"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

func encodeNetworkRefOrMalformed(enc *wire.Encoder, net *hypervisor.Network) *rpc.ErrorRecord {
	if err := objref.EncodeNetworkRef(enc, objref.MakeNonNullNetwork(net)); err != nil {
		return malformed(err)
	}
	return nil
}

func handleNetworkLookupByName(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	name, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	net, hvErr := sess.Connection().NetworkLookupByName(ctx, name)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeNetworkRefOrMalformed(enc, net)
}

func handleNetworkLookupByUUID(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	raw, err := dec.FixedBytes(16)
	if err != nil {
		return malformed(err)
	}
	var uuid [16]byte
	copy(uuid[:], raw)
	net, hvErr := sess.Connection().NetworkLookupByUUID(ctx, uuid)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeNetworkRefOrMalformed(enc, net)
}

func handleNetworkCreateXML(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	xml, err := dec.String(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	net, hvErr := sess.Connection().NetworkCreateXML(ctx, xml)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeNetworkRefOrMalformed(enc, net)
}

func handleNetworkDefineXML(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	xml, err := dec.String(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	net, hvErr := sess.Connection().NetworkDefineXML(ctx, xml)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeNetworkRefOrMalformed(enc, net)
}

func withNetworkRef(ctx context.Context, sess *Session, dec *wire.Decoder, fn func(*hypervisor.Network) error) *rpc.ErrorRecord {
	ref, err := objref.DecodeNetworkRef(dec)
	if err != nil {
		return malformed(err)
	}
	if err := objref.WithNetwork(ctx, sess.Connection(), ref, fn); err != nil {
		return libraryError(err)
	}
	return nil
}

func handleNetworkUndefine(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withNetworkRef(ctx, sess, dec, func(net *hypervisor.Network) error {
		return sess.Connection().NetworkUndefine(ctx, net)
	})
}

func handleNetworkCreate(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withNetworkRef(ctx, sess, dec, func(net *hypervisor.Network) error {
		return sess.Connection().NetworkCreate(ctx, net)
	})
}

func handleNetworkDestroy(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withNetworkRef(ctx, sess, dec, func(net *hypervisor.Network) error {
		return sess.Connection().NetworkDestroy(ctx, net)
	})
}

func handleNetworkDumpXML(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeNetworkRef(dec)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}
	net, hvErr := objref.GetNonNullNetwork(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	xml, hvErr := sess.Connection().NetworkDumpXML(ctx, net, flags)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.String(xml))
}

func handleNetworkGetBridgeName(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeNetworkRef(dec)
	if err != nil {
		return malformed(err)
	}
	net, hvErr := objref.GetNonNullNetwork(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	bridge, hvErr := sess.Connection().NetworkGetBridgeName(ctx, net)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.String(bridge))
}

func handleNetworkGetAutostart(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeNetworkRef(dec)
	if err != nil {
		return malformed(err)
	}
	net, hvErr := objref.GetNonNullNetwork(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	on, hvErr := sess.Connection().NetworkGetAutostart(ctx, net)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.Bool(on))
}

func handleNetworkSetAutostart(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeNetworkRef(dec)
	if err != nil {
		return malformed(err)
	}
	on, err := dec.Bool()
	if err != nil {
		return malformed(err)
	}
	net, hvErr := objref.GetNonNullNetwork(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().NetworkSetAutostart(ctx, net, on); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}
