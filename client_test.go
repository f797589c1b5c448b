//go:build linux || darwin

package memcev

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal memcached text-protocol stub, just enough to
// drive Client end to end over a real loopback socket.
type fakeServer struct {
	ln    net.Listener
	store map[string][]byte
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{ln: ln, store: make(map[string][]byte)}
	go s.acceptLoop()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeServer) port(t *testing.T) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func (s *fakeServer) acceptLoop() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(c)
	}
}

func (s *fakeServer) serve(c net.Conn) {
	defer c.Close()
	r := bufio.NewReader(c)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "get":
			key := fields[1]
			v, ok := s.store[key]
			if !ok {
				fmt.Fprintf(c, "END\r\n")
				continue
			}
			fmt.Fprintf(c, "VALUE %s 0 %d\r\n", key, len(v))
			c.Write(v)
			fmt.Fprintf(c, "\r\nEND\r\n")
		case "set":
			key := fields[1]
			length, _ := strconv.Atoi(fields[4])
			payload := make([]byte, length)
			total := 0
			for total < len(payload) {
				n, err := r.Read(payload[total:])
				total += n
				if err != nil {
					return
				}
			}
			_, _ = r.Discard(2)
			s.store[key] = payload
			fmt.Fprintf(c, "STORED\r\n")
		default:
			fmt.Fprintf(c, "ERROR\r\n")
		}
	}
}

func TestClientGetSetRoundTrip(t *testing.T) {
	srv := startFakeServer(t)
	c, err := New("127.0.0.1", srv.port(t), WithPoolSize(2))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "hello", []byte("world"), 0, true))

	value, ok, err := c.Get(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("world"), value)
}

func TestClientSetFireAndForget(t *testing.T) {
	srv := startFakeServer(t)
	c, err := New("127.0.0.1", srv.port(t), WithPoolSize(1))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.Set(ctx, "async", []byte("v"), 0, false))

	require.Eventually(t, func() bool {
		_, ok, err := c.Get(ctx, "async")
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
}

func TestClientRejectsInvalidKeyWithoutNetworkRoundTrip(t *testing.T) {
	srv := startFakeServer(t)
	c, err := New("127.0.0.1", srv.port(t), WithPoolSize(1))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, err = c.Get(ctx, "has a space")
	require.Error(t, err)
	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, KindValidation, memErr.Kind)
}

func TestClientRejectsOversizedValue(t *testing.T) {
	srv := startFakeServer(t)
	c, err := New("127.0.0.1", srv.port(t), WithPoolSize(1))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	big := make([]byte, maxValueBytes+1)
	err = c.Set(ctx, "key", big, 0, true)
	require.Error(t, err)
	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, KindValidation, memErr.Kind)
}

func TestNewFailsOnUnreachableHost(t *testing.T) {
	_, err := New("127.0.0.1", 1, WithDialTimeout(500*time.Millisecond), WithCheckTimeout(500*time.Millisecond))
	require.Error(t, err)
	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, KindConnect, memErr.Kind)
}

func TestClientCloseIsIdempotentAndFailsSubsequentCalls(t *testing.T) {
	srv := startFakeServer(t)
	c, err := New("127.0.0.1", srv.port(t), WithPoolSize(1))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err = c.Get(ctx, "x")
	require.Error(t, err)
	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, KindStopped, memErr.Kind)
}
