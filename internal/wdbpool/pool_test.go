package wdbpool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFakeWdbServer(t *testing.T, response string) string {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/wdb.sock"
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				_, _ = c.Read(buf)
				_, _ = c.Write(append([]byte(response), 0))
			}(conn)
		}
	}()
	return path
}

func TestPoolQueryOK(t *testing.T) {
	path := startFakeWdbServer(t, "ok payload=hello")
	pool := New(Config{SocketPath: path})
	res, err := pool.Query(context.Background(), "worker-1", "agent 001 syscheck")
	require.NoError(t, err)
	assert.Equal(t, ResultOK, res.Code)
	assert.Equal(t, "payload=hello", res.Payload)
}

func TestPoolCircuitOpensAfterFailures(t *testing.T) {
	pool := New(Config{SocketPath: "/nonexistent/path/to/socket", BreakerTrip: 2, BreakerCool: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := pool.Query(context.Background(), "worker-1", "q")
		assert.Error(t, err)
	}
	_, err := pool.Query(context.Background(), "worker-1", "q")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestPoolShardsIndependentCircuits(t *testing.T) {
	pool := New(Config{SocketPath: "/nonexistent/path/to/socket", BreakerTrip: 1, BreakerCool: time.Hour})
	_, _ = pool.Query(context.Background(), "worker-a", "q")
	states := pool.CircuitStates()
	openCount := 0
	for _, s := range states {
		if s == "open" {
			openCount++
		}
	}
	assert.Equal(t, 1, openCount, "only the shard worker-a hashes to should trip")
}
