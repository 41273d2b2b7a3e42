// Package gmlink is the websocket link between spell servers and the
// privileged executor that mutates actors the caller does not own.
//
// Wire format: the client sends skill.Command frames as JSON text messages;
// the server answers each with exactly one skill.Ack carrying the same ID.
// Commands on one connection are applied in the order they were received.
package gmlink

import "time"

const (
	// DelegatePath is the websocket endpoint.
	DelegatePath = "/delegate"
	// HealthPath answers 200 while the server is up.
	HealthPath = "/healthz"
	// TokenHeader carries the shared peer token on the upgrade request.
	TokenHeader = "X-Grimoire-Token"

	// pingPeriod must be shorter than the peer's read timeout.
	pingPeriod = 30 * time.Second
	// maxFrameSize bounds one command frame.
	maxFrameSize = 64 << 10
)
