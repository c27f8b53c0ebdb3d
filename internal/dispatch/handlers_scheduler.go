package dispatch

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
	"github.com/virtrpcd/virtrpcd/internal/objref"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

var schedParamArms = []uint32{1, 2, 3, 4, 5, 6}

func decodeSchedParam(dec *wire.Decoder) (hypervisor.SchedParam, error) {
	var p hypervisor.SchedParam
	field, err := dec.String(rpc.SchedFieldLength)
	if err != nil {
		return p, err
	}
	p.Field = field
	disc, err := dec.UnionDiscriminant(schedParamArms...)
	if err != nil {
		return p, err
	}
	p.Type = hypervisor.SchedParamType(disc)
	switch p.Type {
	case hypervisor.SchedParamInt:
		if p.I, err = dec.Int32(); err != nil {
			return p, err
		}
	case hypervisor.SchedParamUInt:
		if p.UI, err = dec.Uint32(); err != nil {
			return p, err
		}
	case hypervisor.SchedParamLLong:
		if p.LL, err = dec.Int64(); err != nil {
			return p, err
		}
	case hypervisor.SchedParamULLong:
		if p.ULL, err = dec.Uint64(); err != nil {
			return p, err
		}
	case hypervisor.SchedParamDouble:
		if p.D, err = dec.Float64(); err != nil {
			return p, err
		}
	case hypervisor.SchedParamBoolean:
		if p.B, err = dec.Bool(); err != nil {
			return p, err
		}
	}
	return p, nil
}

func encodeSchedParam(enc *wire.Encoder, p hypervisor.SchedParam) error {
	if err := enc.String(p.Field); err != nil {
		return err
	}
	if err := enc.Uint32(uint32(p.Type)); err != nil {
		return err
	}
	switch p.Type {
	case hypervisor.SchedParamInt:
		return enc.Int32(p.I)
	case hypervisor.SchedParamUInt:
		return enc.Uint32(p.UI)
	case hypervisor.SchedParamLLong:
		return enc.Int64(p.LL)
	case hypervisor.SchedParamULLong:
		return enc.Uint64(p.ULL)
	case hypervisor.SchedParamDouble:
		return enc.Float64(p.D)
	case hypervisor.SchedParamBoolean:
		return enc.Bool(p.B)
	default:
		return &wire.MalformedMessage{Reason: "unknown scheduler parameter type"}
	}
}

func handleDomainGetSchedulerType(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	typ, nparams, hvErr := sess.Connection().DomainGetSchedulerType(ctx, dom)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if err := enc.String(typ); err != nil {
		return malformed(err)
	}
	return encodeOrMalformed(enc.Int32(nparams))
}

func handleDomainGetSchedulerParameters(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	nparams, err := dec.Int32()
	if err != nil {
		return malformed(err)
	}
	if rec := checkListBound(nparams, rpc.SchedulerParamsMax, "nparams", "REMOTE_DOMAIN_SCHEDULER_PARAMETERS_MAX"); rec != nil {
		return rec
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	params, hvErr := sess.Connection().DomainGetSchedulerParameters(ctx, dom, nparams)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if err := enc.Uint32(uint32(len(params))); err != nil {
		return malformed(err)
	}
	for _, p := range params {
		if err := encodeSchedParam(enc, p); err != nil {
			return malformed(err)
		}
	}
	return nil
}

func handleDomainSetSchedulerParameters(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	ref, err := objref.DecodeDomainRef(dec)
	if err != nil {
		return malformed(err)
	}
	n, err := dec.ArrayLen(rpc.SchedulerParamsMax)
	if err != nil {
		return malformed(err)
	}
	params := make([]hypervisor.SchedParam, 0, n)
	for i := uint32(0); i < n; i++ {
		p, err := decodeSchedParam(dec)
		if err != nil {
			return malformed(err)
		}
		params = append(params, p)
	}
	dom, hvErr := objref.GetNonNullDomain(ctx, sess.Connection(), ref)
	if hvErr != nil {
		return libraryError(hvErr)
	}
	if hvErr := sess.Connection().DomainSetSchedulerParameters(ctx, dom, params); hvErr != nil {
		return libraryError(hvErr)
	}
	return nil
}
