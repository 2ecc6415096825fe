package natsutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

// ConnectJetStream connects and checks that stream exists. Streams are
// provisioned elsewhere; a missing one is an error.
func ConnectJetStream(url, stream string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name("matchstream"))
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	if stream != "" {
		if _, err := js.StreamInfo(stream); err != nil {
			_ = conn.Drain()
			conn.Close()
			if errors.Is(err, nats.ErrStreamNotFound) {
				return nil, fmt.Errorf("jetstream stream %s not found: %w", stream, err)
			}
			return nil, err
		}
	}
	return &Client{Conn: conn, JS: js}, nil
}

func ConnectJetStreamWithRetry(url, stream string, timeout time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ConnectJetStream(url, stream)
		if err == nil {
			return client, nil
		}
		if errors.Is(err, nats.ErrStreamNotFound) {
			return nil, err
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("connect jetstream timeout after %s: %w", timeout, lastErr)
}

func (c *Client) Close() {
	if c == nil || c.Conn == nil {
		return
	}
	_ = c.Conn.Drain()
	c.Conn.Close()
}

// JetStreamPublisher publishes to a fixed subject and waits for the stream ack.
type JetStreamPublisher struct {
	JS      nats.JetStreamContext
	Subject string
}

func (p JetStreamPublisher) Send(ctx context.Context, key, value []byte) error {
	msg := nats.NewMsg(p.Subject)
	msg.Data = value
	if len(key) > 0 {
		msg.Header.Set(nats.MsgIdHdr, string(key))
	}
	_, err := p.JS.PublishMsg(msg, nats.Context(ctx))
	return err
}

func (p JetStreamPublisher) Close() error { return nil }
