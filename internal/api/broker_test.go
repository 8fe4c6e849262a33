package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeopt/internal/config"
)

func recv(t *testing.T, ch chan SSEEvent) (SSEEvent, bool) {
	t.Helper()
	select {
	case evt, ok := <-ch:
		return evt, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return SSEEvent{}, false
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	other := b.Subscribe("s2")

	b.Publish("s1", newEvent(EventProgress, map[string]int{"x": 1}))
	got, ok := recv(t, ch)
	require.True(t, ok)
	assert.Equal(t, EventProgress, got.Type)
	assert.JSONEq(t, `{"x":1}`, string(got.Data))
	assert.Empty(t, other)

	b.Unsubscribe("s1", ch)
	_, ok = recv(t, ch)
	assert.False(t, ok, "closed after unsubscribe")
	b.Unsubscribe("s1", ch) // second call is a no-op

	// publishing with no subscribers must not block
	b.Publish("s1", newEvent(EventCompleted, nil))
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s")
	for i := range 100 {
		b.Publish("s", newEvent(EventProgress, i))
	}
	assert.Equal(t, cap(ch), len(ch))
}

// drainUntilCompleted reads ch until the completion event and returns how
// many events came before it.
func drainUntilCompleted(t *testing.T, ch chan SSEEvent) int {
	t.Helper()
	n := 0
	for {
		evt, ok := recv(t, ch)
		require.True(t, ok, "channel closed before solve.completed")
		if evt.Type == EventCompleted {
			return n
		}
		n++
	}
}

func TestBrokerCompletionSurvivesFullBuffer(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s")
	for i := range 100 {
		b.Publish("s", newEvent(EventProgress, i))
	}
	b.Publish("s", newEvent(EventCompleted, map[string]string{"status": "ok"}))
	assert.Equal(t, cap(ch)-1, drainUntilCompleted(t, ch))
}

func TestRedisBrokerCompletionSurvivesFullBuffer(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	require.NoError(t, err)
	defer b.Close()

	ch := b.Subscribe("s")
	for i := range 40 {
		b.Publish("s", newEvent(EventProgress, i))
	}
	require.Eventually(t, func() bool { return len(ch) == cap(ch) }, 2*time.Second, 10*time.Millisecond)
	b.Publish("s", newEvent(EventCompleted, nil))
	drainUntilCompleted(t, ch)
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Ping(t.Context()))

	ch := b.Subscribe("s1")
	b.Publish("s1", newEvent(EventCompleted, map[string]string{"status": "ok"}))
	got, ok := recv(t, ch)
	require.True(t, ok)
	assert.Equal(t, EventCompleted, got.Type)
	var body map[string]string
	require.NoError(t, json.Unmarshal(got.Data, &body))
	assert.Equal(t, "ok", body["status"])

	b.Unsubscribe("s1", ch)
	_, ok = recv(t, ch)
	assert.False(t, ok)
}

func TestServerWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestServer(t, func(c *config.Config) { c.RedisURL = "redis://" + mr.Addr() })
	_, isRedis := s.Broker.(*RedisBroker)
	assert.True(t, isRedis)

	h := s.Routes()
	assert.Equal(t, "miss", do(t, h, "POST", "/v1/solve", twoStops(), nil).Header().Get("X-Cache"))
	assert.Equal(t, "hit", do(t, h, "POST", "/v1/solve", twoStops(), nil).Header().Get("X-Cache"))
	assert.NotEmpty(t, mr.Keys())
	assert.Equal(t, 200, do(t, h, "GET", "/readyz", nil, nil).Code)
}
