package session

import (
	"time"

	"github.com/cenkalti/backoff"

	"go-canvas/internal/chatlog"
)

const (
	DefaultSettleDelay     = 100 * time.Millisecond
	DefaultReadyTimeout    = 2 * time.Second
	DefaultRetryInitial    = 500 * time.Millisecond
	DefaultRetryMaxElapsed = 30 * time.Second
	DefaultReconnectFirst  = time.Second
	DefaultReconnectMax    = 2 * time.Minute
)

// Config holds the knobs of one Session.
type Config struct {
	// Endpoint is the relay websocket URL without the participant parameter.
	Endpoint string

	// ParticipantID overrides the allocated id when non-blank.
	ParticipantID string

	// SettleDelay is how long to wait after the channel opens before asking
	// for snapshots. Zero asks straight away; the flag layer supplies
	// DefaultSettleDelay.
	SettleDelay time.Duration

	// AwaitReady asks for snapshots when the relay sends "ready" rather than
	// after SettleDelay. ReadyTimeout bounds the wait for relays that never do.
	AwaitReady   bool
	ReadyTimeout time.Duration

	// SnapshotRetry resends snapshot requests on an exponential schedule until
	// the canvas snapshot arrives or RetryMaxElapsed passes.
	SnapshotRetry   bool
	RetryInitial    time.Duration
	RetryMaxElapsed time.Duration

	// Reconnect makes Run reopen the channel after it drops.
	Reconnect           bool
	ReconnectInitial    time.Duration
	ReconnectMaxElapsed time.Duration

	// RejectLegacyPixels refuses untagged pixel frames.
	RejectLegacyPixels bool

	ChatPolicy chatlog.Policy
}

func (c Config) withDefaults() Config {
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = DefaultRetryInitial
	}
	if c.RetryMaxElapsed <= 0 {
		c.RetryMaxElapsed = DefaultRetryMaxElapsed
	}
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = DefaultReconnectFirst
	}
	if c.ReconnectMaxElapsed <= 0 {
		c.ReconnectMaxElapsed = DefaultReconnectMax
	}
	return c
}

func newBackOff(initial, maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return b
}
