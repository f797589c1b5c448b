// Package conn models one pooled connection to the memcached server as a
// small state machine over a raw, non-blocking socket file descriptor. A
// Connection is mutated exclusively by the engine's loop goroutine; nothing
// here is safe for concurrent use, by design (see the engine package's
// ownership invariant: the loop thread is the sole owner of every socket).
package conn

import (
	"errors"

	"github.com/joeycumines/memcev/internal/wire"
)

// State is the connection's position in its lifecycle.
type State int

const (
	// Connecting is the state between dial start and a successful/failed
	// non-blocking connect completion.
	Connecting State = iota
	// Idle connections sit in the engine's idle pool, unbound to any work.
	Idle
	// InFlight connections are bound to exactly one request, awaiting (or
	// mid-parse of) its response.
	InFlight
	// Closed is terminal; the socket is gone and the handle is inert.
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Idle:
		return "idle"
	case InFlight:
		return "inflight"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Completion is invoked exactly once when a request bound to this
// connection finishes, successfully or not. It must not block, and must
// not re-enter the connection.
type Completion func(wire.Result)

// Connection is the identity = fd; stable handle for the socket's lifetime.
type Connection struct {
	// ID is an opaque, loop-assigned identifier stable across the
	// connection's lifetime, used only for logging.
	ID int

	Addr string

	fd    int
	state State

	// acc is the accumulator: bytes received since the last framing
	// boundary, per the feed(acc, new) contract.
	acc []byte
	// readBuf is the scratch buffer a single socket read lands in before
	// being appended to acc.
	readBuf [4096]byte

	feeder     wire.Feeder
	completion Completion

	// pending holds any unsent tail of a request after a write blocked on
	// EAGAIN. The engine must register for writability and drain this via
	// FlushPending before the connection can read a response.
	pending []byte
}

// New wraps a socket fd that is already fully connected (for a connection
// constructed straight into Idle) or still mid-connect (constructed into
// Connecting by the caller via MarkConnecting).
func New(id int, addr string, fd int) *Connection {
	return &Connection{
		ID:    id,
		Addr:  addr,
		fd:    fd,
		state: Idle,
	}
}

// FD returns the raw file descriptor the poller registers readiness for.
func (c *Connection) FD() int { return c.fd }

// State returns the current state.
func (c *Connection) State() State { return c.state }

// Bind transitions Idle -> InFlight, arming the feeder and completion for
// the request about to be written. It is an error (panic) to bind a
// connection that isn't Idle; the engine must never do this, since the pool
// only ever hands out Idle connections.
func (c *Connection) Bind(feeder wire.Feeder, completion Completion) {
	if c.state != Idle {
		panic("conn: Bind called on a connection that is not Idle: " + c.state.String())
	}
	c.acc = c.acc[:0]
	c.pending = c.pending[:0]
	c.feeder = feeder
	c.completion = completion
	c.state = InFlight
}

// HasPendingWrite reports whether a previous StartWrite blocked and still
// has unsent bytes, i.e. whether the engine should be watching this
// connection for writability rather than readability.
func (c *Connection) HasPendingWrite() bool {
	return len(c.pending) > 0
}

// StartWrite begins sending a request's bytes on the non-blocking socket.
// It returns blocked=true if the send buffer filled before the whole
// request went out; the remainder is retained and the engine must register
// for writability and call FlushPending on each writable wakeup.
func (c *Connection) StartWrite(b []byte) (blocked bool, err error) {
	n, werr := c.writeSome(b)
	if werr == ErrWouldBlock {
		c.pending = append(c.pending[:0], b[n:]...)
		return true, nil
	}
	if werr != nil {
		return false, werr
	}
	return false, nil
}

// FlushPending continues a StartWrite that previously blocked. Returns
// blocked=true if more bytes remain after this attempt.
func (c *Connection) FlushPending() (blocked bool, err error) {
	if len(c.pending) == 0 {
		return false, nil
	}
	n, werr := c.writeSome(c.pending)
	c.pending = c.pending[:copy(c.pending, c.pending[n:])]
	if werr == ErrWouldBlock {
		return true, nil
	}
	if werr != nil {
		return false, werr
	}
	return len(c.pending) > 0, nil
}

// writeSome writes as much of b as the socket will currently accept,
// looping past short writes that aren't EAGAIN, and returns the total bytes
// accepted plus ErrWouldBlock if the buffer filled.
func (c *Connection) writeSome(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := sysWrite(c.fd, b[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, ErrWouldBlock
		}
	}
	return total, nil
}

// ErrClosedByPeer is returned by ReadAvailable when a read observes the
// peer's orderly shutdown (n==0, no error) with the parse still
// incomplete. Under level-triggered readiness a closed-but-undrained
// socket stays readable forever, so this must be surfaced as an error
// rather than treated as "nothing to do yet".
var ErrClosedByPeer = errors.New("conn: connection closed by peer")

// ReadAvailable reads whatever is available from the socket (the poller has
// already told us it's readable), feeds it through the armed feeder, and
// returns the feeder's result. A non-nil error here is a socket-level read
// error, distinct from a protocol error surfaced inside wire.Result.
func (c *Connection) ReadAvailable() (wire.Result, error) {
	n, err := sysRead(c.fd, c.readBuf[:])
	if n > 0 {
		res := c.feeder(c.acc, c.readBuf[:n])
		if !res.Done {
			c.acc = res.Acc
			// A read error alongside an incomplete parse (e.g. the peer
			// closed right after its last write) is still reportable: the
			// engine needs err to know not to wait for more.
			return res, err
		}
		return res, nil
	}
	if err == ErrWouldBlock {
		// Nothing to read after all (a spurious readiness report): the
		// request is still pending, not failed.
		return wire.Result{}, nil
	}
	if err == nil {
		// n==0 with no error is the peer's graceful FIN: there will never
		// be more bytes, so an incomplete parse can never complete.
		err = ErrClosedByPeer
	}
	return wire.Result{}, err
}

// Complete fires the completion exactly once and transitions back to Idle.
// The engine is responsible for then returning the handle to the pool; this
// method only resets connection-local state.
func (c *Connection) Complete(res wire.Result) {
	cb := c.completion
	c.completion = nil
	c.feeder = nil
	c.acc = nil
	c.pending = nil
	c.state = Idle
	if cb != nil {
		cb(res)
	}
}

// MarkConnecting is used only by the engine while dialing is in progress
// (non-blocking connect not yet confirmed writable).
func (c *Connection) MarkConnecting() { c.state = Connecting }

// MarkIdle transitions Connecting -> Idle once a non-blocking connect
// completes successfully.
func (c *Connection) MarkIdle() { c.state = Idle }

// Close tears down the socket and marks the connection terminal.
func (c *Connection) Close() error {
	if c.state == Closed {
		return nil
	}
	c.state = Closed
	return sysClose(c.fd)
}

// PeerAddr returns the remote address string, for logging.
func (c *Connection) PeerAddr() string {
	return c.Addr
}
