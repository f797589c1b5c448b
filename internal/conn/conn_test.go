//go:build linux || darwin

package conn

import (
	"testing"

	"github.com/joeycumines/memcev/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newPair returns a Connection wrapping one end of a connected, blocking
// AF_UNIX socketpair, plus the raw fd for the other end (driven directly
// with unix.Read/unix.Write in tests, standing in for the remote server).
func newPair(t *testing.T) (*Connection, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[1])
	})
	c := New(1, "socketpair", fds[0])
	return c, fds[1]
}

func TestConnectionLifecycle(t *testing.T) {
	c, peer := newPair(t)
	assert.Equal(t, Idle, c.State())

	done := make(chan wire.Result, 1)
	c.Bind(wire.FeedSet, func(r wire.Result) { done <- r })
	assert.Equal(t, InFlight, c.State())

	go func() {
		buf := make([]byte, 64)
		n, err := unix.Read(peer, buf)
		require.NoError(t, err)
		assert.Equal(t, "set foo 0 0 3\r\nbar\r\n", string(buf[:n]))
		_, err = unix.Write(peer, []byte("STORED\r\n"))
		require.NoError(t, err)
	}()

	blocked, err := c.StartWrite(wire.BuildSet("foo", []byte("bar"), 0))
	require.NoError(t, err)
	assert.False(t, blocked)

	var res wire.Result
	for !res.Done {
		var rerr error
		res, rerr = c.ReadAvailable()
		require.NoError(t, rerr)
	}
	require.NoError(t, res.Err)

	c.Complete(res)
	assert.Equal(t, Idle, c.State())
	select {
	case got := <-done:
		assert.False(t, got.Err != nil)
	default:
		t.Fatal("completion was not invoked")
	}
}

func TestBindPanicsWhenNotIdle(t *testing.T) {
	c, _ := newPair(t)
	c.Bind(wire.FeedSet, func(wire.Result) {})
	assert.Panics(t, func() {
		c.Bind(wire.FeedSet, func(wire.Result) {})
	})
}

func TestBindResetsPendingWrite(t *testing.T) {
	c, _ := newPair(t)
	c.pending = []byte("leftover")
	c.Bind(wire.FeedSet, func(wire.Result) {})
	assert.False(t, c.HasPendingWrite())
}

func TestCloseIsIdempotent(t *testing.T) {
	c, _ := newPair(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, Closed, c.State())
}

func TestFlushPendingNoopWithoutPendingWrite(t *testing.T) {
	c, _ := newPair(t)
	blocked, err := c.FlushPending()
	require.NoError(t, err)
	assert.False(t, blocked)
}

// TestReadAvailableGracefulCloseMidParse guards against a peer that shuts
// its write side down (a bare FIN, no RST) before a response finishes:
// unix.Read reports this as (0, nil), not an error. ReadAvailable must
// still surface it as an error, since otherwise the caller would keep
// treating the connection as "waiting for more bytes" forever.
func TestReadAvailableGracefulCloseMidParse(t *testing.T) {
	c, peer := newPair(t)
	c.Bind(wire.FeedGet, func(wire.Result) {})

	require.NoError(t, unix.Shutdown(peer, unix.SHUT_WR))

	res, err := c.ReadAvailable()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosedByPeer)
	assert.False(t, res.Done)
}
