package relay

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, b Bus) (<-chan []byte, context.CancelFunc) {
	t.Helper()
	out := make(chan []byte, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = b.Subscribe(ctx, func(msg []byte) { out <- msg })
	}()
	t.Cleanup(cancel)
	return out, cancel
}

func TestLocalBus_DeliversInOrder(t *testing.T) {
	b := NewLocalBus(4)
	out, _ := collect(t, b)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, []byte("one")))
	require.NoError(t, b.Publish(ctx, []byte("two")))

	for _, want := range []string{"one", "two"} {
		select {
		case got := <-out:
			assert.Equal(t, want, string(got))
		case <-time.After(time.Second):
			t.Fatalf("missing %q", want)
		}
	}
}

func TestLocalBus_PublishHonoursContext(t *testing.T) {
	b := NewLocalBus(1)
	require.NoError(t, b.Publish(context.Background(), []byte("fills buffer")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Publish(ctx, []byte("blocked")), context.DeadlineExceeded)
}

// Runs against a real redis when REDIS_ADDR is set.
func TestRedisBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	b, err := NewRedisBus(ctx, addr)
	require.NoError(t, err)
	defer b.Close()

	out, _ := collect(t, b)
	// Give the subscription time to be confirmed.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, []byte(`{"type":"clear_chat"}`)))

	select {
	case got := <-out:
		assert.JSONEq(t, `{"type":"clear_chat"}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing delivered")
	}
}

func TestNewRedisBus_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisBus(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
