// Package memcev is a client for the memcached text protocol built around
// a single event-loop goroutine: every socket read and write happens on
// that one goroutine, while Get/Set/Check/Close present an ordinary
// synchronous, thread-safe, blocking call interface to any number of
// caller goroutines.
package memcev

import (
	"context"
	"fmt"
	"sync"

	"github.com/joeycumines/memcev/internal/engine"
)

// Client is a fixed-size pool of connections to one memcached instance,
// served by a single background event loop. The zero value is not usable;
// construct with New.
type Client struct {
	loop *engine.Loop
	cfg  config

	closeOnce sync.Once
	closeErr  error
}

// New dials cfg.poolSize connections to host:port and performs an initial
// check round trip before returning. If any connection fails to establish,
// or the check does not complete, New tears down whatever it started and
// returns an error: a Client is either fully warmed up or not handed back
// at all.
func New(host string, port int, opts ...Option) (*Client, error) {
	cfg := resolveOptions(opts)

	var log engine.Logger
	switch {
	case cfg.logger != nil:
		log = engineLogger{log: cfg.logger}
	case cfg.debug:
		log = engineLogger{log: newLogger(true)}
	}

	loop, err := engine.New(host, port, log)
	if err != nil {
		return nil, newError(KindConnect, "failed to initialise event loop", err)
	}

	go loop.Run()

	c := &Client{loop: loop, cfg: cfg}

	if err := c.warmUp(); err != nil {
		loop.Stop(cfg.checkTimeout)
		return nil, err
	}

	return c, nil
}

func (c *Client) warmUp() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.checkTimeout)
	defer cancel()

	if err := c.Check(ctx); err != nil {
		return err
	}

	for i := 0; i < c.cfg.poolSize; i++ {
		dialCtx, dialCancel := context.WithTimeout(context.Background(), c.cfg.dialTimeout)
		err := c.connectOne(dialCtx)
		dialCancel()
		if err != nil {
			return newError(KindConnect, fmt.Sprintf("failed to establish pool connection %d/%d", i+1, c.cfg.poolSize), err)
		}
	}

	return nil
}

func (c *Client) connectOne(ctx context.Context) error {
	mb := engine.NewMailbox()
	if err := c.loop.Submit(&engine.Work{Tag: engine.TagConnect, Mailbox: mb}); err != nil {
		return err
	}
	resp, err := mb.Wait(ctx)
	if err != nil {
		return newError(KindTimeout, "deadline exceeded waiting for response", err)
	}
	if resp.Kind == engine.RespError {
		return resp.Err
	}
	return nil
}

// Check confirms the loop is alive and able to accept work, without
// touching any connection. It is what New uses internally, and is exposed
// so callers can health-check a long-lived Client the same way.
func (c *Client) Check(ctx context.Context) error {
	mb := engine.NewMailbox()
	if err := c.loop.Submit(&engine.Work{Tag: engine.TagCheck, Mailbox: mb}); err != nil {
		return translateSubmitErr(err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.checkTimeout)
	defer cancel()
	resp, err := mb.Wait(waitCtx)
	if err != nil {
		return newError(KindTimeout, "deadline exceeded waiting for response", err)
	}
	if resp.Kind == engine.RespError {
		return translateRespErr(resp.Err)
	}
	return nil
}

// Get fetches key's value. ok is false on a miss (no error in that case).
func (c *Client) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	mb := engine.NewMailbox()
	w := &engine.Work{Tag: engine.TagGet, Mailbox: mb, Key: key}
	if err := c.loop.Submit(w); err != nil {
		return nil, false, translateSubmitErr(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.requestTimeout)
	defer cancel()
	resp, err := mb.Wait(waitCtx)
	if err != nil {
		return nil, false, newError(KindTimeout, "deadline exceeded waiting for response", err)
	}
	if resp.Kind == engine.RespError {
		return nil, false, translateRespErr(resp.Err)
	}
	return resp.Value, !resp.Absent, nil
}

// Set stores value under key with the given expiration (seconds, 0 means
// never). If wait is false, Set submits the request and returns as soon as
// it has been accepted by the loop, without waiting for STORED.
func (c *Client) Set(ctx context.Context, key string, value []byte, expiration int, wait bool) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	w := &engine.Work{Tag: engine.TagSet, Key: key, Value: value, Expiration: expiration}
	if wait {
		w.Mailbox = engine.NewMailbox()
	}

	if err := c.loop.Submit(w); err != nil {
		return translateSubmitErr(err)
	}
	if !wait {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.requestTimeout)
	defer cancel()
	resp, err := w.Mailbox.Wait(waitCtx)
	if err != nil {
		return newError(KindTimeout, "deadline exceeded waiting for response", err)
	}
	if resp.Kind == engine.RespError {
		return translateRespErr(resp.Err)
	}
	return nil
}

// Close stops the event loop and waits for it to exit, closing every
// pooled connection. Idempotent: subsequent calls return the first
// result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.loop.Stop(c.cfg.requestTimeout)
	})
	return c.closeErr
}

func translateSubmitErr(err error) error {
	return newError(KindStopped, "client is closed", err)
}

func translateRespErr(err error) error {
	if err == engine.ErrStopped {
		return newError(KindStopped, "client is closed", err)
	}
	return newError(KindProtocol, "server reported an error", err)
}
