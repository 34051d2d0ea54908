package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(Event{Type: TypeParams, Source: "cam0", Zoom: F(2.5), Adjusting: B(false)}))

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, TypeParams, ev.Type)
			assert.Equal(t, "cam0", ev.Source)
			require.NotNil(t, ev.Zoom)
			assert.Equal(t, 2.5, *ev.Zoom)
			require.NotNil(t, ev.Adjusting)
			assert.False(t, *ev.Adjusting)
			assert.False(t, ev.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBusKeepsOrder(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	for _, s := range []string{"ready", "attached", "exporting"} {
		bus.Emit(Event{Type: TypeState, State: s})
	}
	var got []string
	for range 3 {
		select {
		case ev := <-ch:
			got = append(got, ev.State)
		case <-time.After(time.Second):
			t.Fatalf("got %v before timeout", got)
		}
	}
	assert.Equal(t, []string{"ready", "attached", "exporting"}, got)
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := NewLoggerAdapter(zap.New(core)).With(map[string]any{"topic": Topic})

	a.Info("subscribed", map[string]any{"n": 1})
	a.Trace("tick", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "subscribed", entries[0].Message)
	assert.Equal(t, Topic, entries[0].ContextMap()["topic"])
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
}
