package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/virtrpcd/virtrpcd/internal/archive"
	"github.com/virtrpcd/virtrpcd/internal/auth"
	"github.com/virtrpcd/virtrpcd/internal/auth/throttle"
	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
	"github.com/virtrpcd/virtrpcd/internal/logger"
	"github.com/virtrpcd/virtrpcd/internal/metrics"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/telemetry"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

// HandlerFunc decodes a procedure's arguments from dec, invokes the
// hypervisor collaborator, and encodes a reply body into enc. It returns
// nil on success with enc populated, or a non-nil ErrorRecord describing
// the failure, which the dispatcher sends with status ERROR — the
// distinction between a library-reported error and a dispatch-level one
// is just who built the record, which callers never need downstream of here.
type HandlerFunc func(ctx context.Context, d *Dispatcher, sess *Session, dec *wire.Decoder, enc *wire.Encoder) *rpc.ErrorRecord

// ProcEntry is one row of the static procedure table. The classic
// "{decode_args, encode_ret, handler}" triple is collapsed here into one
// combined function per procedure, since Go's lack of a generic XDR-stub
// generator makes a three-way split pure ceremony.
type ProcEntry struct {
	Name           string
	Handler        HandlerFunc
	RequiresHandle bool // all procedures except OPEN, CLOSE and the AUTH_* group
}

// Table is the static procedure -> entry mapping, built once at startup.
type Table map[rpc.Proc]ProcEntry

// Dispatcher drives the request lifecycle: decode envelope, auth-gate,
// locate procedure, run handler, encode reply.
type Dispatcher struct {
	table     Table
	hv        hypervisor.Hypervisor
	mechanism auth.Mechanism    // nil when the server runs with auth disabled
	throttle  *throttle.Throttle // nil when throttling is disabled
	metrics   metrics.RPCMetrics // nil when metrics are disabled
	archive   archive.Store      // archive.Noop() when archiving is disabled
}

func New(table Table, hv hypervisor.Hypervisor, mechanism auth.Mechanism, thr *throttle.Throttle) *Dispatcher {
	return &Dispatcher{table: table, hv: hv, mechanism: mechanism, throttle: thr, archive: archive.Noop()}
}

// SetMetrics attaches a metrics collector. Passing nil (the default)
// disables collection with zero overhead.
func (d *Dispatcher) SetMetrics(m metrics.RPCMetrics) {
	d.metrics = m
}

// SetArchive attaches a domain-XML archive. The default (set by New) is
// archive.Noop(), so this is only needed when archiving is enabled.
func (d *Dispatcher) SetArchive(store archive.Store) {
	d.archive = store
}

// archiveDefineXML is shared by DOMAIN_DEFINE_XML and DOMAIN_CREATE_LINUX:
// a failed archive write is logged and otherwise ignored. Archiving is
// best-effort and must never turn a successful reply into an error.
func (d *Dispatcher) archiveDefineXML(ctx context.Context, domain string, xml string) {
	if err := d.archive.Put(ctx, domain, []byte(xml)); err != nil {
		logger.Warn("failed to archive domain XML", "domain", domain, "error", err)
	}
}

// Hypervisor returns the root collaborator, used by the OPEN handler which
// runs before any per-session Connection exists.
func (d *Dispatcher) Hypervisor() hypervisor.Hypervisor { return d.hv }

// Mechanism returns the single SASL mechanism this dispatcher was
// configured with, or nil if auth is disabled.
func (d *Dispatcher) Mechanism() auth.Mechanism { return d.mechanism }

// Throttle returns the auth-attempt throttle, or nil if disabled.
func (d *Dispatcher) Throttle() *throttle.Throttle { return d.throttle }

// Handle runs exactly one request/reply cycle. req is the full framed
// message including its length prefix; the returned []byte is the full
// framed reply, ready to write to the wire.
func (d *Dispatcher) Handle(ctx context.Context, sess *Session, req []byte) []byte {
	dec := wire.NewDecoder(req)

	// Step 0: length prefix was used by the transport to know how much to
	// read; it is not part of the envelope itself.
	if _, err := dec.Uint32(); err != nil {
		return d.blindErrorReply(fmt.Sprintf("failed to read length prefix: %v", err))
	}

	// Step 1: decode envelope.
	call, err := rpc.Decode(dec)
	if err != nil {
		return d.blindErrorReply(fmt.Sprintf("failed to decode envelope: %v", err))
	}

	// Step 2: check envelope constants.
	if err := rpc.CheckConstants(call); err != nil {
		return d.errorReply(call, rpc.NewError(rpc.CodeEnvelopeRejected, rpc.DomainRPC, err.Error()))
	}

	proc := rpc.Proc(call.Procedure)

	// Step 3: auth gate.
	if sess.Auth.RequiresAuthGate() && !rpc.PreAuthWhitelist[proc] {
		return d.errorReply(call, rpc.NewError(rpc.CodeAuthRequired, rpc.DomainRPC, "authentication required"))
	}

	// Step 4: resolve procedure.
	entry, ok := d.table[proc]
	if !ok {
		return d.errorReply(call, rpc.NewError(rpc.CodeUnknownProcedure, rpc.DomainRPC, fmt.Sprintf("unknown procedure: %d", proc)))
	}

	if entry.RequiresHandle && sess.Connection() == nil {
		return d.errorReply(call, rpc.NewError(rpc.CodePreconditionFailed, rpc.DomainRPC, "connection not open"))
	}

	// Steps 5-6: decode args and invoke handler (combined in HandlerFunc).
	ctx, span := telemetry.StartSpan(ctx, "rpc."+entry.Name)
	span.SetAttributes("rpc.procedure", entry.Name, "rpc.serial", call.Serial)
	defer span.End()

	if d.metrics != nil {
		d.metrics.RecordRequestStart(entry.Name)
	}
	start := time.Now()

	retBuf := make([]byte, rpc.BufMax)
	retEnc := wire.NewEncoder(retBuf)
	errRec := entry.Handler(ctx, d, sess, dec, retEnc)

	if d.metrics != nil {
		d.metrics.RecordRequestEnd(entry.Name)
	}
	if errRec != nil {
		if d.metrics != nil {
			d.metrics.RecordRequest(entry.Name, "error", time.Since(start))
		}
		msg := ""
		if errRec.Message != nil {
			msg = *errRec.Message
		}
		span.RecordError(fmt.Errorf("%d: %s", errRec.Code, msg))
		return d.errorReply(call, errRec)
	}
	if d.metrics != nil {
		d.metrics.RecordRequest(entry.Name, "ok", time.Since(start))
	}

	// Step 7: frame reply with encoded ret body.
	return d.okReply(call, retEnc.Bytes())
}

func (d *Dispatcher) blindErrorReply(message string) []byte {
	return d.errorReplyEnvelope(rpc.Blind(), rpc.NewError(rpc.CodeMalformedMessage, rpc.DomainRPC, message))
}

func (d *Dispatcher) errorReply(call rpc.Envelope, rec *rpc.ErrorRecord) []byte {
	return d.errorReplyEnvelope(rpc.ReplyTo(call, rpc.StatusError), rec)
}

func (d *Dispatcher) errorReplyEnvelope(env rpc.Envelope, rec *rpc.ErrorRecord) []byte {
	buf := make([]byte, rpc.BufMax)
	enc := wire.NewEncoder(buf)
	lenOff, _ := enc.Reserve(4)
	_ = rpc.Encode(enc, env)
	_ = rec.Encode(enc)
	_ = enc.PatchUint32(lenOff, uint32(enc.Len()))
	return enc.Bytes()
}

func (d *Dispatcher) okReply(call rpc.Envelope, body []byte) []byte {
	buf := make([]byte, rpc.EnvelopeSize+4+len(body))
	enc := wire.NewEncoder(buf)
	lenOff, _ := enc.Reserve(4)
	_ = rpc.Encode(enc, rpc.ReplyTo(call, rpc.StatusOK))
	_ = enc.FixedBytes(body)
	_ = enc.PatchUint32(lenOff, uint32(enc.Len()))
	return enc.Bytes()
}
