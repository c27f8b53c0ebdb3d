package transport

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtrpcd/virtrpcd/internal/dispatch"
	"github.com/virtrpcd/virtrpcd/internal/hypervisor/fake"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

func startServer(t *testing.T) (*Server, func()) {
	t.Helper()
	dp := dispatch.New(dispatch.BuildTable(), fake.New(), nil, nil)
	srv := New(Config{Address: "127.0.0.1:0", ShutdownTimeout: time.Second}, dp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx)
		close(done)
	}()

	return srv, func() {
		cancel()
		srv.Stop()
		<-done
	}
}

func encodeOpen(t *testing.T, serial uint32) []byte {
	t.Helper()
	buf := make([]byte, rpc.BufMax)
	enc := wire.NewEncoder(buf)
	lenOff, err := enc.Reserve(4)
	require.NoError(t, err)
	env := rpc.Envelope{
		Program:   rpc.Program,
		Version:   rpc.Version,
		Procedure: int32(rpc.ProcOpen),
		Direction: rpc.DirectionCall,
		Serial:    serial,
		Status:    rpc.StatusOK,
	}
	require.NoError(t, rpc.Encode(enc, env))
	require.NoError(t, enc.Bool(false))
	require.NoError(t, enc.Uint32(0))
	require.NoError(t, enc.PatchUint32(lenOff, uint32(enc.Len())))
	return enc.Bytes()
}

func readFrameFromConn(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	var lenBuf [4]byte
	_, err := io.ReadFull(conn, lenBuf[:])
	require.NoError(t, err)
	total := binary.BigEndian.Uint32(lenBuf[:])
	rest := make([]byte, total-4)
	_, err = io.ReadFull(conn, rest[:])
	require.NoError(t, err)
	return append(lenBuf[:], rest...)
}

func TestServeOpenRoundTrip(t *testing.T) {
	srv, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(encodeOpen(t, 1))
	require.NoError(t, err)

	reply := readFrameFromConn(t, conn)
	dec := wire.NewDecoder(reply)
	_, err = dec.Uint32()
	require.NoError(t, err)
	env, err := rpc.Decode(dec)
	require.NoError(t, err)
	require.Equal(t, rpc.StatusOK, env.Status)
	require.Equal(t, uint32(1), env.Serial)
}

func TestServeRejectsUnopenedProcedure(t *testing.T) {
	srv, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, rpc.BufMax)
	enc := wire.NewEncoder(buf)
	lenOff, err := enc.Reserve(4)
	require.NoError(t, err)
	env := rpc.Envelope{
		Program:   rpc.Program,
		Version:   rpc.Version,
		Procedure: int32(rpc.ProcGetHostname),
		Direction: rpc.DirectionCall,
		Serial:    7,
		Status:    rpc.StatusOK,
	}
	require.NoError(t, rpc.Encode(enc, env))
	require.NoError(t, enc.PatchUint32(lenOff, uint32(enc.Len())))

	_, err = conn.Write(enc.Bytes())
	require.NoError(t, err)

	reply := readFrameFromConn(t, conn)
	dec := wire.NewDecoder(reply)
	_, err = dec.Uint32()
	require.NoError(t, err)
	replyEnv, err := rpc.Decode(dec)
	require.NoError(t, err)
	require.Equal(t, rpc.StatusError, replyEnv.Status)
}

func TestStopClosesListener(t *testing.T) {
	srv, stop := startServer(t)
	addr := srv.Addr()
	stop()

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	require.Error(t, err)
}
