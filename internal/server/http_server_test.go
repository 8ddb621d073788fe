package server

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/logger"
)

func TestCreateServer(t *testing.T) {
	mux := http.NewServeMux()
	srv := CreateServer(":8080", mux, logger.NewNop())

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, mux, srv.Handler)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 60*time.Second, srv.IdleTimeout)
	assert.Zero(t, srv.WriteTimeout)
	assert.NotNil(t, srv.ErrorLog)
}

func TestStartServerReportsBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	srv := CreateServer(occupied.Addr().String(), http.NewServeMux(), nil)
	assert.Error(t, StartServer(srv, logger.NewNop()))
}

func TestStartAndShutdownServer(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	require.NoError(t, probe.Close())

	srv := CreateServer(addr, http.HandlerFunc(HealthHandler), nil)
	log := logger.NewNop()

	errCh := make(chan error, 1)
	go func() { errCh <- StartServer(srv, log) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ShutdownServer(srv, time.Second, log))

	select {
	case err := <-errCh:
		assert.NoError(t, err, "graceful shutdown is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("StartServer did not return after shutdown")
	}
}
