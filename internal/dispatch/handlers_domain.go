package dispatch

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
	"github.com/virtrpcd/virtrpcd/internal/objref"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

func handleDomainLookupByID(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	id, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := sess.Connection().DomainLookupByID(ctx, id)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeDomainRefOrMalformed(enc, dom)
}

func handleDomainLookupByName(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	name, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := sess.Connection().DomainLookupByName(ctx, name)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeDomainRefOrMalformed(enc, dom)
}

func handleDomainLookupByUUID(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	raw, err := dec.FixedBytes(16)
	if err != nil {
		return malformed(err)
	}
	var uuid [16]byte
	copy(uuid[:], raw)
	dom, hvErr := sess.Connection().DomainLookupByUUID(ctx, uuid)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeDomainRefOrMalformed(enc, dom)
}

func handleDomainCreateLinux(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	xmlDesc, err := dec.String(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := sess.Connection().DomainCreateLinux(ctx, xmlDesc, flags)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	d.archiveDefineXML(ctx, dom.Name, xmlDesc)
	return encodeDomainRefOrMalformed(enc, dom)
}

func handleDomainDefineXML(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	xmlDesc, err := dec.String(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := sess.Connection().DomainDefineXML(ctx, xmlDesc)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	d.archiveDefineXML(ctx, dom.Name, xmlDesc)
	return encodeDomainRefOrMalformed(enc, dom)
}

// withDomainRef decodes a DomainRef argument and resolves it to a live
// handle before delegating to fn. It serves the handlers whose only
// argument is the DomainRef (UNDEFINE, CREATE, SHUTDOWN, SUSPEND, RESUME);
// DOMAIN_DESTROY and the handlers with further arguments decode and
// resolve the reference themselves.
func withDomainRef(ctx context.Context, sess *Session, dec *wire.Decoder, fn func(*hypervisor.Domain) error) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	if err := objref.WithDomain(ctx, sess.Connection(), ref, fn); err != nil {
		return libraryError(err)
	}
	return nil
}

func handleDomainUndefine(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withDomainRef(ctx, sess, dec, func(dom *hypervisor.Domain) error {
		return sess.Connection().DomainUndefine(ctx, dom)
	})
}

func handleDomainCreate(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withDomainRef(ctx, sess, dec, func(dom *hypervisor.Domain) error {
		return sess.Connection().DomainCreate(ctx, dom)
	})
}

// handleDomainDestroy is the DOMAIN_DESTROY exception: the handle is
// consumed rather than released, even though nothing in this in-memory
// dispatcher distinguishes the two paths today.
func handleDomainDestroy(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainDestroy(ctx, dom); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainShutdown(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withDomainRef(ctx, sess, dec, func(dom *hypervisor.Domain) error {
		return sess.Connection().DomainShutdown(ctx, dom)
	})
}

func handleDomainReboot(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainReboot(ctx, dom, flags); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainSuspend(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withDomainRef(ctx, sess, dec, func(dom *hypervisor.Domain) error {
		return sess.Connection().DomainSuspend(ctx, dom)
	})
}

func handleDomainResume(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	return withDomainRef(ctx, sess, dec, func(dom *hypervisor.Domain) error {
		return sess.Connection().DomainResume(ctx, dom)
	})
}

func handleDomainSave(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	to, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainSave(ctx, dom, to); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainRestore(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	from, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	if hvErr := sess.Connection().DomainRestore(ctx, from); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainCoreDump(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	to, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainCoreDump(ctx, dom, to, flags); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainGetInfo(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	info, hvErr := sess.Connection().DomainGetInfo(ctx, dom)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if err := enc.Int32(info.State); err != nil {
		return malformed(err)
	}
	if err := enc.Uint64(info.MaxMemKB); err != nil {
		return malformed(err)
	}
	if err := enc.Uint64(info.MemoryKB); err != nil {
		return malformed(err)
	}
	if err := enc.Uint32(uint32(info.NrVirtCPU)); err != nil {
		return malformed(err)
	}
	return encodeOrMalformed(enc.Uint64(info.CPUTimeNs))
}

func handleDomainGetXMLDesc(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	flags, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	xml, hvErr := sess.Connection().DomainGetXMLDesc(ctx, dom, flags)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.String(xml))
}

func handleDomainGetOSType(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	osType, hvErr := sess.Connection().DomainGetOSType(ctx, dom)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.String(osType))
}

func handleDomainGetMaxMemory(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	kb, hvErr := sess.Connection().DomainGetMaxMemory(ctx, dom)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.Uint64(kb))
}

func handleDomainSetMaxMemory(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	kb, err := dec.Uint64()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainSetMaxMemory(ctx, dom, kb); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainSetMemory(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	kb, err := dec.Uint64()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainSetMemory(ctx, dom, kb); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainSetVcpus(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	n, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainSetVcpus(ctx, dom, n); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainPinVcpu(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	vcpu, err := dec.Uint32()
	if err != nil {
		return malformed(err)
	}
	cpuMap, err := dec.Bytes(rpc.CPUMapMax)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainPinVcpu(ctx, dom, vcpu, cpuMap); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainGetVcpus(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	maxInfo, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	maplen, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	if rec := checkListBound(maxInfo, rpc.VCPUInfoMax, "maxinfo", "REMOTE_VCPU_INFO_MAX"); rec != nil {
		return rec
	}
	if maplen < 0 || int64(maxInfo)*int64(maplen) > int64(rpc.CPUMapsMax) {
		return boundExceeded("maxinfo * maplen", "REMOTE_CPUMAPS_MAX")
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	infos, hvErr := sess.Connection().DomainGetVcpus(ctx, dom, maxInfo, maplen)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if err := enc.Uint32(uint32(len(infos))); err != nil {
		return malformed(err)
	}
	for _, vi := range infos {
		if err := enc.Uint32(vi.Number); err != nil {
			return malformed(err)
		}
		if err := enc.Int32(vi.State); err != nil {
			return malformed(err)
		}
		if err := enc.Uint64(vi.CPUTime); err != nil {
			return malformed(err)
		}
		if err := enc.Int32(vi.CPU); err != nil {
			return malformed(err)
		}
		if err := enc.WriteBytes(vi.CPUMap); err != nil {
			return malformed(err)
		}
	}
	return nil
}

func handleDomainGetAutostart(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	on, hvErr := sess.Connection().DomainGetAutostart(ctx, dom)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	return encodeOrMalformed(enc.Bool(on))
}

func handleDomainSetAutostart(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	on, err := dec.Bool()
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainSetAutostart(ctx, dom, on); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainAttachDevice(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	xml, err := dec.String(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainAttachDevice(ctx, dom, xml); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainDetachDevice(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	xml, err := dec.String(rpc.MaxXMLLen)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainDetachDevice(ctx, dom, xml); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}

func handleDomainBlockStats(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	path, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	stats, hvErr := sess.Connection().DomainBlockStats(ctx, dom, path)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	for _, v := range []int64{stats.RdReq, stats.RdBytes, stats.WrReq, stats.WrBytes, stats.Errs} {
		if err := enc.Int64(v); err != nil {
			return malformed(err)
		}
	}
	return nil
}

func handleDomainInterfaceStats(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	device, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	stats, hvErr := sess.Connection().DomainInterfaceStats(ctx, dom, device)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	vals := []int64{
		stats.RxBytes, stats.RxPackets, stats.RxErrs, stats.RxDrop,
		stats.TxBytes, stats.TxPackets, stats.TxErrs, stats.TxDrop,
	}
	for _, v := range vals {
		if err := enc.Int64(v); err != nil {
			return malformed(err)
		}
	}
	return nil
}

func encodeDomainRefOrMalformed(enc *wire.Encoder, dom *hypervisor.Domain) *rpc.ErrorRecord {
	if err := objref.EncodeDomainRef(enc, objref.MakeNonNullDomain(dom)); err != nil {
		return malformed(err)
	}
	return nil
}
