package relay

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the redis pub/sub channel relays share.
const EventsChannel = "canvas-events"

// Bus fans encoded events out to every relay instance, this one included.
type Bus interface {
	Publish(ctx context.Context, msg []byte) error
	// Subscribe calls deliver for each published message until ctx is done.
	Subscribe(ctx context.Context, deliver func([]byte)) error
	Close() error
}

// LocalBus is a Bus for a single relay process.
type LocalBus struct {
	ch chan []byte
}

func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &LocalBus{ch: make(chan []byte, buffer)}
}

func (b *LocalBus) Publish(ctx context.Context, msg []byte) error {
	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBus) Subscribe(ctx context.Context, deliver func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.ch:
			deliver(msg)
		}
	}
}

func (b *LocalBus) Close() error { return nil }

// RedisBus shares events between relays through redis pub/sub.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus connects to addr and checks it answers.
func NewRedisBus(ctx context.Context, addr string) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &RedisBus{client: client, channel: EventsChannel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, msg []byte) error {
	return b.client.Publish(ctx, b.channel, msg).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, deliver func([]byte)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so nothing published after
	// Subscribe returns control is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			deliver([]byte(m.Payload))
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
