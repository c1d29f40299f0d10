// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package natsbus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Client is a thin NATS connection wrapper.
type Client struct {
	conn *nats.Conn
}

// Connect dials url.
func Connect(url string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name("synai"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClient connects to an embedded bus.
func NewClient(bus *Bus) (*Client, error) {
	return Connect(bus.ClientURL())
}

func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishJSON publishes v encoded as JSON.
func (c *Client) PublishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.conn.Publish(subject, data)
}

func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) (*nats.Subscription, error) {
	return c.conn.Subscribe(subject, handler)
}

func (c *Client) Flush() error {
	return c.conn.Flush()
}

func (c *Client) Close() {
	c.conn.Close()
}
