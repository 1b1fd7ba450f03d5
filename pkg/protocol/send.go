package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultMaxAckAttempts is how many lines a request reads before giving up.
const DefaultMaxAckAttempts = 10

// Exchange writes req to rw and reads lines until an acknowledgement arrives.
// Every non-ack line is passed to onBroadcast (which may be nil). Lines that
// fail to decode still consume an attempt.
//
// Returns ErrNoAck if maxAttempts lines pass without an acknowledgement, and
// the ack's error if the broadcaster rejected the request.
func Exchange(rw io.ReadWriter, req Request, maxAttempts int, onBroadcast func(Frame)) (Ack, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAckAttempts
	}
	if err := WriteFrame(rw, req); err != nil {
		return Ack{}, err
	}

	reader := bufio.NewReader(rw)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return Ack{}, fmt.Errorf("connection closed before acknowledgement: %w", ErrNoAck)
			}
			return Ack{}, fmt.Errorf("failed to read acknowledgement: %w", err)
		}

		frame, decodeErr := DecodeFrame(line)
		if decodeErr != nil {
			continue
		}
		if frame.IsAck() {
			ack := frame.Ack()
			return ack, ack.Err()
		}
		if onBroadcast != nil {
			onBroadcast(frame)
		}
	}

	return Ack{}, fmt.Errorf("%w after %d reads", ErrNoAck, maxAttempts)
}

// Send dials addr, performs a single Exchange and closes the connection.
// The context deadline, if any, bounds the whole exchange.
func Send(ctx context.Context, addr string, req Request, maxAttempts int, onBroadcast func(Frame)) (Ack, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to connect to broadcaster at %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Ack{}, fmt.Errorf("failed to set deadline: %w", err)
		}
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	return Exchange(conn, req, maxAttempts, onBroadcast)
}
