package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/virtrpcd/virtrpcd/internal/auth/credstore"
	"github.com/virtrpcd/virtrpcd/internal/auth/plain"
	"github.com/virtrpcd/virtrpcd/internal/hypervisor/fake"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

type failingArchive struct{ puts int }

func (f *failingArchive) Put(context.Context, string, []byte) error {
	f.puts++
	return errors.New("disk full")
}
func (f *failingArchive) Close() error { return nil }

func encodeCall(t *testing.T, proc rpc.Proc, serial uint32, body []byte) []byte {
	t.Helper()
	buf := make([]byte, rpc.BufMax)
	enc := wire.NewEncoder(buf)
	lenOff, err := enc.Reserve(4)
	require.NoError(t, err)
	env := rpc.Envelope{
		Program:   rpc.Program,
		Version:   rpc.Version,
		Procedure: int32(proc),
		Direction: rpc.DirectionCall,
		Serial:    serial,
		Status:    rpc.StatusOK,
	}
	require.NoError(t, rpc.Encode(enc, env))
	require.NoError(t, enc.FixedBytes(body))
	require.NoError(t, enc.PatchUint32(lenOff, uint32(enc.Len())))
	return enc.Bytes()
}

func decodeReply(t *testing.T, reply []byte) (rpc.Envelope, *wire.Decoder) {
	t.Helper()
	dec := wire.NewDecoder(reply)
	_, err := dec.Uint32() // length prefix
	require.NoError(t, err)
	env, err := rpc.Decode(dec)
	require.NoError(t, err)
	return env, dec
}

func openedSession(t *testing.T, dp *Dispatcher) *Session {
	t.Helper()
	sess := NewSession(false, false, "")
	body := make([]byte, 64)
	enc := wire.NewEncoder(body)
	require.NoError(t, enc.Bool(false)) // no name -> default connection
	require.NoError(t, enc.Uint32(0))   // flags
	reply := dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcOpen, 1, enc.Bytes()))
	env, _ := decodeReply(t, reply)
	require.Equal(t, rpc.StatusOK, env.Status)
	require.NotNil(t, sess.Connection())
	return sess
}

func TestOpenThenGetHostname(t *testing.T) {
	dp := New(BuildTable(), fake.New(), nil, nil)
	sess := openedSession(t, dp)

	reply := dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcGetHostname, 2, nil))
	env, dec := decodeReply(t, reply)
	require.Equal(t, rpc.StatusOK, env.Status)
	assert.Equal(t, uint32(2), env.Serial)
	host, err := dec.String(rpc.MaxNameLen)
	require.NoError(t, err)
	assert.Equal(t, "fake-host", host)
}

func TestUnknownProcedureRejected(t *testing.T) {
	dp := New(BuildTable(), fake.New(), nil, nil)
	sess := openedSession(t, dp)

	reply := dp.Handle(context.Background(), sess, encodeCall(t, rpc.Proc(9999), 3, nil))
	env, dec := decodeReply(t, reply)
	require.Equal(t, rpc.StatusError, env.Status)
	rec, err := rpc.DecodeErrorRecord(dec)
	require.NoError(t, err)
	assert.Equal(t, rpc.CodeUnknownProcedure, rec.Code)
}

func TestProcedureBeforeOpenRejected(t *testing.T) {
	dp := New(BuildTable(), fake.New(), nil, nil)
	sess := NewSession(false, false, "")

	reply := dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcGetHostname, 1, nil))
	env, dec := decodeReply(t, reply)
	require.Equal(t, rpc.StatusError, env.Status)
	rec, err := rpc.DecodeErrorRecord(dec)
	require.NoError(t, err)
	assert.Equal(t, rpc.CodePreconditionFailed, rec.Code)
}

func TestBlindErrorOnTruncatedMessage(t *testing.T) {
	dp := New(BuildTable(), fake.New(), nil, nil)
	sess := NewSession(false, false, "")

	reply := dp.Handle(context.Background(), sess, []byte{0x00, 0x00, 0x00, 0x04})
	env, dec := decodeReply(t, reply)
	assert.Equal(t, int32(rpc.ProcOpen), env.Procedure)
	assert.Equal(t, uint32(1), env.Serial)
	assert.Equal(t, rpc.StatusError, env.Status)
	rec, err := rpc.DecodeErrorRecord(dec)
	require.NoError(t, err)
	assert.Equal(t, rpc.CodeMalformedMessage, rec.Code)
}

func TestWrongProgramRejected(t *testing.T) {
	dp := New(BuildTable(), fake.New(), nil, nil)
	sess := NewSession(false, false, "")

	buf := make([]byte, 64)
	enc := wire.NewEncoder(buf)
	lenOff, _ := enc.Reserve(4)
	env := rpc.Envelope{Program: 0xbad, Version: rpc.Version, Procedure: int32(rpc.ProcOpen), Direction: rpc.DirectionCall, Serial: 1, Status: rpc.StatusOK}
	require.NoError(t, rpc.Encode(enc, env))
	require.NoError(t, enc.PatchUint32(lenOff, uint32(enc.Len())))

	reply := dp.Handle(context.Background(), sess, enc.Bytes())
	replyEnv, dec := decodeReply(t, reply)
	assert.Equal(t, rpc.StatusError, replyEnv.Status)
	rec, err := rpc.DecodeErrorRecord(dec)
	require.NoError(t, err)
	assert.Equal(t, rpc.CodeEnvelopeRejected, rec.Code)
}

func TestDomainLifecycle(t *testing.T) {
	dp := New(BuildTable(), fake.New(), nil, nil)
	sess := openedSession(t, dp)

	xmlBody := make([]byte, 4096)
	enc := wire.NewEncoder(xmlBody)
	require.NoError(t, enc.String("<domain/>"))
	reply := dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcDomainDefineXML, 2, enc.Bytes()))
	env, dec := decodeReply(t, reply)
	require.Equal(t, rpc.StatusOK, env.Status)

	name, err := dec.String(rpc.MaxNameLen)
	require.NoError(t, err)
	uuid, err := dec.FixedBytes(16)
	require.NoError(t, err)
	_, err = dec.Int32()
	require.NoError(t, err)

	refBody := make([]byte, 512)
	refEnc := wire.NewEncoder(refBody)
	require.NoError(t, refEnc.String(name))
	require.NoError(t, refEnc.FixedBytes(uuid))
	require.NoError(t, refEnc.Int32(0))

	reply = dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcDomainDestroy, 3, refEnc.Bytes()))
	env, _ = decodeReply(t, reply)
	require.Equal(t, rpc.StatusOK, env.Status)

	reply = dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcDomainDestroy, 4, refEnc.Bytes()))
	env, dec = decodeReply(t, reply)
	require.Equal(t, rpc.StatusError, env.Status)
	rec, err := rpc.DecodeErrorRecord(dec)
	require.NoError(t, err)
	assert.Equal(t, rpc.CodeLibraryError, rec.Code)
}

func TestDomainDefineXMLSucceedsDespiteArchiveFailure(t *testing.T) {
	dp := New(BuildTable(), fake.New(), nil, nil)
	arc := &failingArchive{}
	dp.SetArchive(arc)
	sess := openedSession(t, dp)

	xmlBody := make([]byte, 4096)
	enc := wire.NewEncoder(xmlBody)
	require.NoError(t, enc.String("<domain/>"))
	reply := dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcDomainDefineXML, 2, enc.Bytes()))
	env, _ := decodeReply(t, reply)

	require.Equal(t, rpc.StatusOK, env.Status)
	assert.Equal(t, 1, arc.puts)
}

func TestAuthGateAndPlainNegotiation(t *testing.T) {
	store := credstore.NewMemory()
	require.NoError(t, store.Put(context.Background(), &credstore.Record{Username: "alice", PasswordHash: mustHash(t, "wonderland")}))
	mech := plain.New(store)

	dp := New(BuildTable(), fake.New(), mech, nil)
	sess := NewSession(false, true, plain.MechanismName)

	// AUTH_LIST is answerable pre-auth.
	reply := dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcAuthList, 1, nil))
	env, dec := decodeReply(t, reply)
	require.Equal(t, rpc.StatusOK, env.Status)
	n, err := dec.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(1), n)
	name, err := dec.String(rpc.MaxNameLen)
	require.NoError(t, err)
	assert.Equal(t, plain.MechanismName, name)

	// OPEN is gated until authorized.
	reply = dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcOpen, 2, []byte{0, 0, 0, 0, 0, 0, 0, 0}))
	env, dec = decodeReply(t, reply)
	require.Equal(t, rpc.StatusError, env.Status)
	rec, err := rpc.DecodeErrorRecord(dec)
	require.NoError(t, err)
	assert.Equal(t, rpc.CodeAuthRequired, rec.Code)

	// AUTH_SASL_INIT carries no mechanism name; it only returns the
	// mechlist the server offers.
	reply = dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcAuthSaslInit, 3, nil))
	env, dec = decodeReply(t, reply)
	require.Equal(t, rpc.StatusOK, env.Status)
	mechlist, err := dec.String(rpc.MaxNameLen)
	require.NoError(t, err)
	assert.Equal(t, plain.MechanismName, mechlist)

	// AUTH_SASL_START names the selected mechanism and carries the full
	// PLAIN response.
	payload := append([]byte{0}, append([]byte("alice\x00"), []byte("wonderland")...)...)
	startBody := make([]byte, 128)
	startEnc := wire.NewEncoder(startBody)
	require.NoError(t, startEnc.String(plain.MechanismName))
	require.NoError(t, startEnc.Bool(true))
	require.NoError(t, startEnc.WriteBytes(payload))
	reply = dp.Handle(context.Background(), sess, encodeCall(t, rpc.ProcAuthSaslStart, 4, startEnc.Bytes()))
	env, dec = decodeReply(t, reply)
	require.Equal(t, rpc.StatusOK, env.Status)
	serverPresent, err := dec.Bool()
	require.NoError(t, err)
	assert.False(t, serverPresent)
	complete, err := dec.Bool()
	require.NoError(t, err)
	assert.True(t, complete)

	require.False(t, sess.Auth.RequiresAuthGate())
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(h)
}
