package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds connection and retry settings for a Client.
type Config struct {
	// PortFile is the path of the {"port": <int>} document. It is re-read on
	// every reconnect since the broadcaster may come back on another port.
	PortFile string

	// Host defaults to DefaultHost.
	Host string

	DialTimeout    time.Duration
	MaxAckAttempts int

	// Reconnect backoff. MaxElapsed 0 retries forever.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration

	// FrameBuffer is the capacity of the Frames channel. Broadcasts beyond it
	// queue inside the client so the reader keeps resolving acknowledgements.
	FrameBuffer int
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.MaxAckAttempts < 1 {
		c.MaxAckAttempts = DefaultMaxAckAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = 64
	}
}

type ackResult struct {
	ack Ack
	err error
}

// waiter is the single in-flight request awaiting its acknowledgement.
type waiter struct {
	done     chan ackResult
	attempts int
}

// Client keeps a persistent connection to the broadcaster and hands decoded
// broadcasts to the consumer over Frames(). It is safe for concurrent use;
// requests are serialised.
type Client struct {
	cfg    Config
	logger *slog.Logger

	frames chan Frame
	errors chan error

	mu      sync.Mutex
	conn    net.Conn
	pending *waiter
	// owed counts acknowledgements still due on conn for requests that gave
	// up waiting. Acks arrive in request order, so these are discarded first.
	owed int

	qmu     sync.Mutex
	qcond   *sync.Cond
	queue   []Frame
	qclosed bool

	reqMu     sync.Mutex
	connected atomic.Bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	once    sync.Once
}

// NewClient creates a client. Nothing connects until Start is called.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.PortFile == "" {
		return nil, fmt.Errorf("port file path cannot be empty")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		logger: logger,
		frames: make(chan Frame, cfg.FrameBuffer),
		errors: make(chan error, 10),
		ctx:    ctx,
		cancel: cancel,
	}
	c.qcond = sync.NewCond(&c.qmu)
	return c, nil
}

// Start launches the connect/read goroutine. The client stops when ctx is
// cancelled or Close is called. Calling Start more than once has no effect.
func (c *Client) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			c.shutdown()
		case <-c.ctx.Done():
		}
	}()

	c.wg.Add(2)
	go c.run()
	go c.deliver()
}

// Frames returns decoded broadcasts in arrival order. The channel is closed
// when the client stops.
func (c *Client) Frames() <-chan Frame {
	return c.frames
}

// Errors returns non-fatal errors: undecodable lines and lost connections.
// Errors are dropped when nobody drains the channel.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// Connected reports whether a broadcaster connection is currently live.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close closes the socket, stops reconnecting and waits for the reader to exit.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.shutdown()
	if c.started.Load() {
		c.wg.Wait()
	}
	return nil
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

// Request sends a command and waits for its acknowledgement. Broadcasts that
// arrive meanwhile are delivered on Frames as usual; the caller may also be
// the goroutine draining Frames.
//
// If Request returns before its acknowledgement arrives (ctx done or the
// read budget spent), that acknowledgement is discarded when it shows up
// rather than completing a later request.
func (c *Client) Request(ctx context.Context, cli string, payload any) (Ack, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.ctx.Err() != nil {
		return Ack{}, ErrClosed
	}

	w := &waiter{done: make(chan ackResult, 1)}
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return Ack{}, ErrNotConnected
	}
	c.pending = w
	c.mu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.DialTimeout)); err != nil {
		c.release(w, false)
		return Ack{}, fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := WriteFrame(conn, Request{CLI: cli, Payload: payload}); err != nil {
		c.release(w, false)
		return Ack{}, err
	}

	select {
	case res := <-w.done:
		return res.ack, res.err
	case <-ctx.Done():
		c.release(w, true)
		return Ack{}, ctx.Err()
	case <-c.ctx.Done():
		c.release(w, false)
		return Ack{}, ErrClosed
	}
}

// release withdraws w if it is still pending. sent marks that the request
// reached the broadcaster, so its acknowledgement is still owed.
func (c *Client) release(w *waiter, sent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != w {
		return
	}
	c.pending = nil
	if sent {
		c.owed++
	}
}

// run connects, reads until the connection drops, and repeats.
func (c *Client) run() {
	defer c.wg.Done()
	defer close(c.errors)
	defer c.closeQueue()

	for {
		conn, err := c.connect()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Error("protocol: giving up on broadcaster", "error", err)
				c.reportError(err)
			}
			return
		}
		if !c.attach(conn) {
			return
		}

		c.logger.Info("protocol: connected", "addr", conn.RemoteAddr().String())
		err = c.readLoop(conn)
		c.detach(conn)

		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn("protocol: connection lost", "error", err)
		c.reportError(fmt.Errorf("connection lost: %w", err))
	}
}

// connect dials the broadcaster with exponential backoff.
func (c *Client) connect() (net.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval
	b.MaxElapsedTime = c.cfg.MaxElapsed

	var conn net.Conn
	operation := func() error {
		addr, err := ResolveAddress(c.cfg.Host, c.cfg.PortFile)
		if err != nil {
			return err
		}
		dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
		conn, err = dialer.DialContext(c.ctx, "tcp", addr)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("protocol: connect failed, retrying", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, c.ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to connect to broadcaster: %w", err)
	}
	return conn, nil
}

// attach installs conn as the live connection unless the client is stopping.
func (c *Client) attach(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		conn.Close()
		return false
	}
	c.conn = conn
	c.connected.Store(true)
	return true
}

// detach clears the live connection and fails any request still waiting on it.
func (c *Client) detach(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn.Close()
	c.conn = nil
	c.owed = 0
	c.connected.Store(false)
	if c.pending != nil {
		c.pending.done <- ackResult{err: ErrNotConnected}
		c.pending = nil
	}
}

func (c *Client) readLoop(conn net.Conn) error {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			c.handleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
}

// handleLine routes one line: acks go to the pending request, everything
// else is a broadcast.
func (c *Client) handleLine(line []byte) {
	frame, err := DecodeFrame(line)
	if err != nil {
		c.logger.Debug("protocol: dropping malformed line", "error", err)
		c.reportError(err)
		c.countAttempt()
		return
	}

	if frame.IsAck() {
		c.mu.Lock()
		if c.owed > 0 {
			c.owed--
			c.mu.Unlock()
			c.logger.Debug("protocol: discarding late acknowledgement", "status", frame.Ack().Status)
			return
		}
		w := c.pending
		c.pending = nil
		c.mu.Unlock()
		if w == nil {
			c.logger.Debug("protocol: unsolicited acknowledgement", "status", frame.Ack().Status)
			return
		}
		ack := frame.Ack()
		w.done <- ackResult{ack: ack, err: ack.Err()}
		return
	}

	c.countAttempt()
	c.enqueue(frame)
}

// countAttempt charges one read to the pending request, failing it once
// the budget is spent.
func (c *Client) countAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	c.pending.attempts++
	if c.pending.attempts >= c.cfg.MaxAckAttempts {
		c.pending.done <- ackResult{err: fmt.Errorf("%w after %d reads", ErrNoAck, c.pending.attempts)}
		c.pending = nil
		c.owed++
	}
}

func (c *Client) enqueue(frame Frame) {
	c.qmu.Lock()
	c.queue = append(c.queue, frame)
	c.qmu.Unlock()
	c.qcond.Signal()
}

func (c *Client) closeQueue() {
	c.qmu.Lock()
	c.qclosed = true
	c.qmu.Unlock()
	c.qcond.Broadcast()
}

// deliver moves queued broadcasts onto Frames, closing it once the reader
// has exited and the queue is drained.
func (c *Client) deliver() {
	defer c.wg.Done()
	defer close(c.frames)

	for {
		c.qmu.Lock()
		for len(c.queue) == 0 && !c.qclosed {
			c.qcond.Wait()
		}
		if len(c.queue) == 0 {
			c.qmu.Unlock()
			return
		}
		frame := c.queue[0]
		c.queue[0] = Frame{}
		c.queue = c.queue[1:]
		c.qmu.Unlock()

		select {
		case c.frames <- frame:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) reportError(err error) {
	select {
	case c.errors <- err:
	default:
	}
}
