package net

import (
	"net"
	"testing"
	"time"

	"github.com/doomsday/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pipeSession(t *testing.T, opts SessionOptions) (*Session, net.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	s := NewSession(c1, 1, opts, zap.NewNop())
	t.Cleanup(func() {
		s.Close()
		c2.Close()
	})
	return s, c2
}

func TestSession_WritesQueuedFrames(t *testing.T) {
	s, peer := pipeSession(t, SessionOptions{InSize: 4, OutSize: 8})
	s.Start()

	s.Send([]byte{packet.S_OPCODE_CONSOLE, 'a', 0})
	s.Send([]byte{packet.S_OPCODE_CONSOLE, 'b', 0})
	assert.Equal(t, 2, s.Pending())
	s.FlushOutput()
	assert.Zero(t, s.Pending())

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	first, err := ReadFrame(peer)
	require.NoError(t, err)
	second, err := ReadFrame(peer)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), first[1])
	assert.Equal(t, byte('b'), second[1])
}

func TestSession_ReadsIntoInQueue(t *testing.T) {
	s, peer := pipeSession(t, SessionOptions{InSize: 4, OutSize: 4})
	s.Start()

	go func() { _ = WriteFrame(peer, []byte{packet.C_OPCODE_QUIT}) }()

	select {
	case p := <-s.InQueue:
		assert.Equal(t, []byte{packet.C_OPCODE_QUIT}, p)
	case <-time.After(2 * time.Second):
		t.Fatal("packet not queued")
	}
}

func TestSession_FullOutQueueCloses(t *testing.T) {
	s, _ := pipeSession(t, SessionOptions{OutSize: 1})

	s.Send([]byte{1})
	s.Send([]byte{2})
	s.FlushOutput()

	assert.True(t, s.IsClosed())
	assert.Equal(t, packet.StateDisconnecting, s.State())
	s.Send([]byte{3})
	assert.Zero(t, s.Pending())
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel still open")
	}
}

func TestRateGate(t *testing.T) {
	g := rateGate{limit: 2}
	assert.True(t, g.allow(10))
	assert.True(t, g.allow(10))
	assert.False(t, g.allow(10))
	assert.True(t, g.allow(11))

	unlimited := rateGate{}
	for range 100 {
		require.True(t, unlimited.allow(1))
	}
}
