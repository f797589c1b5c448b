package engine

import (
	"container/heap"
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/joeycumines/memcev/internal/conn"
	"github.com/joeycumines/memcev/internal/wire"
)

// ErrStopped marks a Response delivered because the loop processed a stop
// work item before this one could complete.
var ErrStopped = errors.New("engine: stopped")

// checkWatchdog is the constructor's hard ceiling: if the initial check
// doesn't round-trip by then, the loop stops itself.
const checkWatchdog = 10 * time.Second

// Logger is the minimal surface engine needs; memcev wires this to its
// logiface-backed logger. Nil is valid and disables logging.
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Loop is the single-threaded reactor: one poller, one wake notifier, one
// timer heap, one cross-thread ingress deque, one idle connection pool.
// Trimmed from the teacher's Loop to exactly what this client needs: no
// microtasks, no promise registry, no fast-path mode.
type Loop struct {
	host string
	port int

	log Logger

	poller      poller
	wakeReadFD  int
	wakeWriteFD int

	ingress ingress
	stopCh  chan *Work
	pool    idlePool
	conns   map[int]*conn.Connection
	nextID  int

	timers     timerHeap
	checkAcked bool
	stopping   bool

	closed atomic.Bool
	done   chan struct{}
}

// New constructs a Loop targeting host:port but does not start it; call
// Run in its own goroutine. Run performs no dialing itself — the
// constructor built on top of this package submits the check and connect
// work items once Run is underway.
func New(host string, port int, log Logger) (*Loop, error) {
	if log == nil {
		log = noopLogger{}
	}

	wakeReadFD, wakeWriteFD, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		host:        host,
		port:        port,
		log:         log,
		wakeReadFD:  wakeReadFD,
		wakeWriteFD: wakeWriteFD,
		stopCh:      make(chan *Work, 1),
		conns:       make(map[int]*conn.Connection),
		done:        make(chan struct{}),
	}

	if err := l.poller.Init(); err != nil {
		_ = closeWakeFd(wakeReadFD, wakeWriteFD)
		return nil, err
	}

	if wakeReadFD >= 0 {
		if err := l.poller.RegisterFD(wakeReadFD, EventRead, func(IOEvents) {
			drainWake(wakeReadFD)
		}); err != nil {
			_ = l.poller.Close()
			_ = closeWakeFd(wakeReadFD, wakeWriteFD)
			return nil, err
		}
	}

	return l, nil
}

// Submit appends w to the request deque and wakes the loop. Safe for
// concurrent callers.
//
// A stop work item bypasses the deque entirely: a get/set that can never
// acquire an idle connection reposts itself to the head and blocks the
// whole drain, and a stop queued behind it would otherwise never run.
// Routing it through a dedicated channel guarantees Stop always takes
// effect on the next iteration regardless of what the deque is stuck on.
func (l *Loop) Submit(w *Work) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if w.Tag == TagStop {
		select {
		case l.stopCh <- w:
		default:
		}
		return l.wake()
	}
	l.ingress.submit(w)
	return l.wake()
}

func (l *Loop) wake() error {
	if l.wakeWriteFD >= 0 {
		return signalWake(l.wakeWriteFD)
	}
	return l.poller.Wakeup()
}

// Run drives the reactor until a stop work item is processed or the
// poller errors fatally. It must be called from its own goroutine; Done
// closes once it returns.
func (l *Loop) Run() {
	defer close(l.done)

	l.scheduleCheckWatchdog()

	for !l.stopping {
		timeout := l.calculateTimeout()
		if _, err := l.poller.PollIO(timeout); err != nil {
			l.log.Errorf("engine: poll error: %v", err)
			l.shutdown()
			break
		}
		l.runTimers()
		l.drainAndDispatch()
	}
}

// Done reports when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Stop submits a stop work item and waits for the loop goroutine to exit.
// Safe to call more than once: a second call observes ErrClosed from
// Submit and just waits on Done.
func (l *Loop) Stop(timeout time.Duration) {
	mb := NewMailbox()
	if err := l.Submit(&Work{Tag: TagStop, Mailbox: mb}); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		_, _ = mb.Wait(ctx)
		cancel()
	}
	<-l.done
}

func (l *Loop) calculateTimeout() int {
	maxDelay := checkWatchdog
	if len(l.timers) > 0 {
		delay := l.timers[0].when.Sub(time.Now())
		if delay < 0 {
			delay = 0
		}
		if delay < maxDelay {
			maxDelay = delay
		}
	}
	if maxDelay > 0 && maxDelay < time.Millisecond {
		return 1
	}
	return int(maxDelay.Milliseconds())
}

func (l *Loop) runTimers() {
	now := time.Now()
	for len(l.timers) > 0 && !l.timers[0].when.After(now) {
		t := heap.Pop(&l.timers).(timerTask)
		t.fn()
	}
}

func (l *Loop) scheduleCheckWatchdog() {
	heap.Push(&l.timers, timerTask{
		when: time.Now().Add(checkWatchdog),
		fn: func() {
			if !l.checkAcked {
				l.log.Errorf("engine: initial check did not complete within %s", checkWatchdog)
				l.shutdown()
			}
		},
	})
}

// drainAndDispatch first checks for a pending stop, then pops work items
// left-to-right, dispatching each; it stops as soon as one can't progress
// (get/set with no idle connection), since that item was already reposted
// to the head and popping again would just spin on it within the same
// cycle.
func (l *Loop) drainAndDispatch() {
	select {
	case w := <-l.stopCh:
		if w.Mailbox != nil {
			w.Mailbox.TryPut(Response{Kind: RespStopped})
		}
		l.shutdown()
		return
	default:
	}

	for {
		w, ok := l.ingress.popLeft()
		if !ok {
			return
		}
		if l.stopping {
			failWork(w, ErrStopped)
			continue
		}
		if !l.dispatch(w) {
			return
		}
	}
}

// dispatch executes one work item. It returns false only when the item
// was reposted because no idle connection was available.
func (l *Loop) dispatch(w *Work) bool {
	switch w.Tag {
	case TagCheck:
		l.checkAcked = true
		if w.Mailbox != nil {
			w.Mailbox.TryPut(Response{Kind: RespChecked})
		}
		return true

	case TagConnect:
		l.dispatchConnect(w)
		return true

	case TagGet, TagSet:
		return l.dispatchRequest(w)

	default:
		if w.Mailbox != nil {
			w.Mailbox.TryPut(Response{Kind: RespError, Err: errors.New("engine: unknown work tag")})
		}
		return true
	}
}

func (l *Loop) dispatchConnect(w *Work) {
	fd, err := dialNonblocking(l.host, l.port)
	if err != nil {
		if w.Mailbox != nil {
			w.Mailbox.TryPut(Response{Kind: RespError, Err: err})
		}
		return
	}

	l.nextID++
	c := conn.New(l.nextID, l.host, fd)
	c.MarkConnecting()
	mb := w.Mailbox

	if err := l.poller.RegisterFD(fd, EventWrite, l.onConnectWritable(c, mb)); err != nil {
		_ = c.Close()
		if mb != nil {
			mb.TryPut(Response{Kind: RespError, Err: err})
		}
	}
}

func (l *Loop) onConnectWritable(c *conn.Connection, mb *Mailbox) IOCallback {
	return func(IOEvents) {
		_ = l.poller.UnregisterFD(c.FD())

		if err := connectResult(c.FD()); err != nil {
			_ = c.Close()
			if mb != nil {
				mb.TryPut(Response{Kind: RespError, Err: err})
			}
			return
		}

		c.MarkIdle()
		l.conns[c.FD()] = c
		l.pool.push(c)
		if mb != nil {
			mb.TryPut(Response{Kind: RespConnected})
		}
		l.drainAndDispatch()
	}
}

func (l *Loop) dispatchRequest(w *Work) bool {
	c, ok := l.pool.pop()
	if !ok {
		l.ingress.repostLeft(w)
		return false
	}

	tag := w.Tag
	mb := w.Mailbox

	var req []byte
	var feeder wire.Feeder
	if tag == TagGet {
		req = wire.BuildGet(w.Key)
		feeder = wire.FeedGet
	} else {
		req = wire.BuildSet(w.Key, w.Value, w.Expiration)
		feeder = wire.FeedSet
	}

	c.Bind(feeder, func(res wire.Result) {
		l.pool.push(c)
		if mb != nil {
			mb.TryPut(toResponse(tag, res))
		}
		if !l.stopping {
			l.drainAndDispatch()
		}
	})

	blocked, err := c.StartWrite(req)
	if err != nil {
		c.Complete(wire.Result{Err: err})
		return true
	}

	var regErr error
	if blocked {
		regErr = l.poller.RegisterFD(c.FD(), EventWrite, l.onWritable(c))
	} else {
		regErr = l.poller.RegisterFD(c.FD(), EventRead, l.onReadable(c))
	}
	if regErr != nil {
		c.Complete(wire.Result{Err: regErr})
	}
	return true
}

func (l *Loop) onWritable(c *conn.Connection) IOCallback {
	return func(IOEvents) {
		blocked, err := c.FlushPending()
		if err != nil {
			_ = l.poller.UnregisterFD(c.FD())
			c.Complete(wire.Result{Err: err})
			return
		}
		if blocked {
			return
		}
		_ = l.poller.UnregisterFD(c.FD())
		if err := l.poller.RegisterFD(c.FD(), EventRead, l.onReadable(c)); err != nil {
			c.Complete(wire.Result{Err: err})
		}
	}
}

func (l *Loop) onReadable(c *conn.Connection) IOCallback {
	return func(IOEvents) {
		res, err := c.ReadAvailable()
		if err != nil && !res.Done {
			_ = l.poller.UnregisterFD(c.FD())
			c.Complete(wire.Result{Err: err})
			return
		}
		if !res.Done {
			return
		}
		_ = l.poller.UnregisterFD(c.FD())
		c.Complete(res)
	}
}

// shutdown tears everything down exactly once: any in-flight request
// fires error(stopped), every socket closes, the poller and wake notifier
// close, and anything still queued fails the same way.
func (l *Loop) shutdown() {
	if l.stopping {
		return
	}
	l.stopping = true
	l.closed.Store(true)

	for _, c := range l.conns {
		if c.State() == conn.InFlight {
			_ = l.poller.UnregisterFD(c.FD())
			c.Complete(wire.Result{Err: ErrStopped})
		}
	}
	for _, c := range l.conns {
		_ = l.poller.UnregisterFD(c.FD())
		_ = c.Close()
	}
	l.conns = nil
	l.pool = idlePool{}

	for _, w := range l.ingress.drainAll() {
		failWork(w, ErrStopped)
	}

	if l.wakeReadFD >= 0 {
		_ = l.poller.UnregisterFD(l.wakeReadFD)
	}
	_ = l.poller.Close()
	_ = closeWakeFd(l.wakeReadFD, l.wakeWriteFD)
}

func failWork(w *Work, err error) {
	if w.Mailbox != nil {
		w.Mailbox.TryPut(Response{Kind: RespError, Err: err})
	}
}

func toResponse(tag Tag, res wire.Result) Response {
	if res.Err != nil {
		return Response{Kind: RespError, Err: res.Err}
	}
	if tag == TagGet {
		return Response{Kind: RespGetted, Value: res.Value, Absent: res.Absent}
	}
	return Response{Kind: RespSetted}
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Errorf(string, ...any) {}
