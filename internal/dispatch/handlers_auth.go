package dispatch

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/auth"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

// handleAuthList implements AUTH_LIST, always answerable pre-auth: it
// reports the single mechanism this server is configured to offer, or an
// empty list when auth is disabled.
func handleAuthList(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	mech := sess.Auth.AdvertisedMechanism()
	if mech == "" {
		return encodeOrMalformed(enc.Uint32(0))
	}
	if err := enc.Uint32(1); err != nil {
		return malformed(err)
	}
	return encodeOrMalformed(enc.String(mech))
}

// handleAuthSaslInit implements AUTH_SASL_INIT: UNAUTH -> NEGOTIATING. It
// carries no mechanism name; it only computes and returns the mechlist
// this server offers (a single entry here, since only one mechanism is
// ever configured). The client picks a mechanism from that list and
// names it in AUTH_SASL_START. Throttled by client address before a
// mechanism context is even created, so a client hammering bad
// negotiations can't spin up unbounded SASL state.
func handleAuthSaslInit(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	if thr := d.Throttle(); thr != nil {
		allowed, tErr := thr.Allowed(sess.RemoteAddr)
		if tErr != nil {
			return rpc.NewError(rpc.CodeInternalError, rpc.DomainRPC, tErr.Error())
		}
		if !allowed {
			if d.metrics != nil {
				d.metrics.RecordThrottled(sess.RemoteAddr)
			}
			return rpc.NewError(rpc.CodeAuthFailed, rpc.DomainRPC, "too many failed authentication attempts")
		}
	}

	mech := d.Mechanism()
	if mech == nil {
		if thr := d.Throttle(); thr != nil {
			_ = thr.RecordFailure(sess.RemoteAddr)
		}
		return rpc.NewError(rpc.CodeAuthFailed, rpc.DomainRPC, "no mechanism configured")
	}

	if err := sess.Auth.BeginNegotiation(); err != nil {
		if thr := d.Throttle(); thr != nil {
			_ = thr.RecordFailure(sess.RemoteAddr)
		}
		return authErrorRecord(err)
	}

	return encodeOrMalformed(enc.String(mech.Name()))
}

// handleAuthSaslStart implements AUTH_SASL_START: it carries the
// mechanism name the client selected from AUTH_SASL_INIT's mechlist,
// followed by the initial client response, and is the point where the
// mechanism context is actually created.
func handleAuthSaslStart(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	mechName, err := dec.String(rpc.MaxNameLen)
	if err != nil {
		return malformed(err)
	}
	clientData, err := decodeOptBytes(dec, rpc.AuthSASLDataMax)
	if err != nil {
		return malformed(err)
	}

	mech := d.Mechanism()
	if mech == nil || mech.Name() != mechName {
		if thr := d.Throttle(); thr != nil {
			_ = thr.RecordFailure(sess.RemoteAddr)
		}
		return rpc.NewError(rpc.CodeAuthFailed, rpc.DomainRPC, "unsupported mechanism")
	}

	serverData, serverPresent, complete, stepErr := sess.Auth.SelectMechanism(ctx, mech, sess.LocalAddr, sess.RemoteAddr, clientData.bytes, clientData.present)
	return finishSaslStep(d, sess, mech.Name(), serverData, serverPresent, complete, stepErr, enc)
}

// handleAuthSaslStep implements AUTH_SASL_STEP: a continuation of a
// negotiation already bound to a mechanism by AUTH_SASL_START, so it
// carries only the next client payload.
func handleAuthSaslStep(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord {
	clientData, err := decodeOptBytes(dec, rpc.AuthSASLDataMax)
	if err != nil {
		return malformed(err)
	}

	mechName := sess.Auth.AdvertisedMechanism()
	serverData, serverPresent, complete, stepErr := sess.Auth.Step(ctx, clientData.bytes, clientData.present)
	return finishSaslStep(d, sess, mechName, serverData, serverPresent, complete, stepErr, enc)
}

// finishSaslStep records the throttle/metrics outcome of one negotiation
// step and encodes the reply shared by AUTH_SASL_START and AUTH_SASL_STEP.
func finishSaslStep(d *Dispatcher, sess *Session, mechName string, serverData []byte, serverPresent, complete bool, stepErr error, enc *wire.Encoder) *rpc.ErrorRecord {
	if stepErr != nil {
		if thr := d.Throttle(); thr != nil {
			_ = thr.RecordFailure(sess.RemoteAddr)
		}
		if d.metrics != nil {
			d.metrics.RecordAuthOutcome(mechName, "failed")
		}
		return authErrorRecord(stepErr)
	}

	if complete {
		if thr := d.Throttle(); thr != nil {
			_ = thr.RecordSuccess(sess.RemoteAddr)
		}
		if d.metrics != nil {
			d.metrics.RecordAuthOutcome(mechName, "success")
		}
	}

	if err := enc.Bool(serverPresent); err != nil {
		return malformed(err)
	}
	if serverPresent {
		if err := enc.WriteBytes(serverData); err != nil {
			return malformed(err)
		}
	}
	return encodeOrMalformed(enc.Bool(complete))
}

type optBytes struct {
	bytes   []byte
	present bool
}

func decodeOptBytes(dec *wire.Decoder, max uint32) (optBytes, error) {
	present, err := dec.OptionalPresence()
	if err != nil {
		return optBytes{}, err
	}
	if !present {
		return optBytes{present: false}, nil
	}
	b, err := dec.Bytes(max)
	if err != nil {
		return optBytes{}, err
	}
	return optBytes{bytes: b, present: true}, nil
}

func authErrorRecord(err error) *rpc.ErrorRecord {
	switch err {
	case auth.ErrPreconditionFailed:
		return rpc.NewError(rpc.CodePreconditionFailed, rpc.DomainRPC, err.Error())
	default:
		return rpc.NewError(rpc.CodeAuthFailed, rpc.DomainRPC, "authentication failed")
	}
}
