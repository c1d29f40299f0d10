// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package natsbus publishes execution events over NATS. It can also run an
// embedded server so that a single process can observe its own runs.
package natsbus

import (
	"fmt"
	"os"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// RandomPort asks the embedded server to pick a free port.
const RandomPort = natsserver.RANDOM_PORT

// BusConfig configures the embedded server.
type BusConfig struct {
	Host string
	Port int
	// StoreDir enables JetStream with file storage under this directory.
	StoreDir string
}

// Bus is an embedded NATS server.
type Bus struct {
	server *natsserver.Server
}

// NewBus starts an embedded server and waits until it accepts connections.
func NewBus(cfg BusConfig) (*Bus, error) {
	opts := &natsserver.Options{
		Host:   cfg.Host,
		Port:   cfg.Port,
		NoLog:  true,
		NoSigs: true,
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if cfg.StoreDir != "" {
		if err := os.MkdirAll(cfg.StoreDir, 0o755); err != nil {
			return nil, fmt.Errorf("create nats store dir: %w", err)
		}
		opts.JetStream = true
		opts.StoreDir = cfg.StoreDir
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready")
	}
	return &Bus{server: ns}, nil
}

// ClientURL returns the URL clients connect to.
func (b *Bus) ClientURL() string {
	return b.server.ClientURL()
}

// Close shuts the server down and waits for it to stop.
func (b *Bus) Close() {
	b.server.Shutdown()
	b.server.WaitForShutdown()
}
