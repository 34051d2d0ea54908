package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Bus is an in-process publish/subscribe channel for Events.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    *zap.Logger
	now    func() time.Time
}

// NewBus returns a bus that logs through log.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 256,
				// Subscribers ack at once, so this only serialises delivery.
				BlockPublishUntilSubscriberAck: true,
			},
			NewLoggerAdapter(log.Named("bus")),
		),
		log: log,
		now: time.Now,
	}
}

// Publish stamps and sends ev. Events published with no subscriber are dropped.
func (b *Bus) Publish(ev Event) error {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Emit publishes ev and logs instead of returning a failure.
func (b *Bus) Emit(ev Event) {
	if err := b.Publish(ev); err != nil {
		b.log.Warn("event dropped", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// Subscribe returns decoded events until ctx is cancelled. A subscriber
// that falls more than 64 events behind loses the overflow.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.log.Error("bad event payload", zap.String("uuid", msg.UUID), zap.Error(err))
				msg.Ack()
				continue
			}
			select {
			case out <- ev:
			default:
				b.log.Debug("slow subscriber, event dropped", zap.String("type", string(ev.Type)))
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Close shuts the bus down and ends all subscriptions.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
