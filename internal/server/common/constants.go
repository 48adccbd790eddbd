// Package common provides shared types and utilities for server implementations.
package common

import "time"

// WebSocket timing constants, shared by the event gateway and its
// clients.
const (
	// WriteWait is time allowed to write a message to the peer.
	WriteWait = 15 * time.Second

	// PongWait is time allowed to read the next pong message from the peer.
	PongWait = 90 * time.Second

	// PingPeriod is the interval for sending pings. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is the maximum message size allowed from peer.
	// Client messages are small subscription commands, so this is tight.
	MaxMessageSize = 4 * 1024

	// SendBufferSize is the send buffer size per client. Sized for
	// bursts of agent status events across many workspaces.
	SendBufferSize = 256

	// HeartbeatInterval is the application-level heartbeat interval.
	HeartbeatInterval = 30 * time.Second
)
