// Package relay carries overlay payloads over Redis Pub/Sub so producers
// without a broadcaster connection can still reach a running consumer.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/overlay/pkg/protocol"
)

// PayloadEventsChannel returns the Pub/Sub channel name for relayed payloads.
// Pattern: overlay:{channel}:payload_events
func PayloadEventsChannel(channel string) string {
	return fmt.Sprintf("overlay:%s:payload_events", channel)
}

// Envelope is the message published on the relay channel.
type Envelope struct {
	ID    string          `json:"id"`
	Frame json.RawMessage `json:"frame"`
}

// Client publishes and subscribes to relayed payloads on one named channel.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	channel string
}

// NewClient creates a relay client for the named channel.
func NewClient(redisOpts *redis.Options, channel string) (*Client, error) {
	if channel == "" {
		return nil, fmt.Errorf("channel name cannot be empty")
	}
	return &Client{
		rdb:     redis.NewClient(redisOpts),
		channel: channel,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a relay client.
func NewClientFromURL(redisURL, channel string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewClient(opts, channel)
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish wraps frame in an envelope and publishes it. The frame must encode
// to a JSON object. Returns the envelope id.
func (c *Client) Publish(ctx context.Context, frame map[string]any) (string, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frame: %w", err)
	}

	env := Envelope{ID: uuid.New().String(), Frame: data}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := c.rdb.Publish(ctx, PayloadEventsChannel(c.channel), payload).Err(); err != nil {
		return "", fmt.Errorf("failed to publish payload: %w", err)
	}
	return env.ID, nil
}

// Subscription is an active subscription to relayed payloads.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan protocol.Frame
	errors <-chan error
	cancel func()
	once   sync.Once
	done   chan struct{}
}

// Events returns relayed frames. The channel is closed when the
// subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan protocol.Frame {
	return s.events
}

// Errors returns decode failures. Offending messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and waits for its goroutine to exit.
// Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// Subscribe starts receiving relayed frames. It returns once Redis has
// confirmed the subscription, so nothing published afterwards is missed.
//
// Delivery is at-most-once: Redis drops messages for slow subscribers.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, PayloadEventsChannel(c.channel))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to relay: %w", err)
	}

	eventsChan := make(chan protocol.Frame, 10)
	errorsChan := make(chan error, 10)
	done := make(chan struct{})
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(done)
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				frame, err := decodeEnvelope([]byte(msg.Payload))
				if err != nil {
					select {
					case errorsChan <- err:
					default:
					}
					continue
				}

				select {
				case eventsChan <- frame:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
		done:   done,
	}, nil
}

// decodeEnvelope accepts either an Envelope or a bare frame object.
func decodeEnvelope(data []byte) (protocol.Frame, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.Frame) > 0 {
		frame, err := protocol.DecodeFrame(env.Frame)
		if err != nil {
			return protocol.Frame{}, fmt.Errorf("failed to decode relayed frame %s: %w", env.ID, err)
		}
		return frame, nil
	}

	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("failed to decode relayed frame: %w", err)
	}
	return frame, nil
}
