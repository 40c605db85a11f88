package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/redis"
)

type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// Broadcaster publishes events on the salon and user channels.
type Broadcaster struct {
	pub  publisher
	logg *logger.Logger
	now  func() time.Time
}

// NewBroadcaster wires a Broadcaster to a Redis publisher.
func NewBroadcaster(pub publisher, logg *logger.Logger) (*Broadcaster, error) {
	if pub == nil {
		return nil, errors.New("realtime publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Broadcaster{pub: pub, logg: logg, now: time.Now}, nil
}

// PublishSalon sends evt to every session watching salonID.
func (b *Broadcaster) PublishSalon(ctx context.Context, salonID string, evt Event) error {
	if salonID == "" {
		return errors.New("salon id required")
	}
	evt.SalonID = salonID
	return b.publish(ctx, redis.SalonChannel(salonID), evt)
}

// PublishUser sends evt to every session signed in as userID.
func (b *Broadcaster) PublishUser(ctx context.Context, userID string, evt Event) error {
	if userID == "" {
		return errors.New("user id required")
	}
	evt.UserID = userID
	return b.publish(ctx, redis.UserChannel(userID), evt)
}

func (b *Broadcaster) publish(ctx context.Context, channel string, evt Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	if err := b.pub.Publish(ctx, channel, body); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	b.logg.Debug(b.logg.WithFields(ctx, map[string]any{"channel": channel, "event_type": evt.Type}), "realtime event published")
	return nil
}

// Listen subscribes to channels and hands every decodable event to handle until ctx ends.
func Listen(ctx context.Context, sub subscriber, logg *logger.Logger, handle func(Event), channels ...string) error {
	if len(channels) == 0 {
		return errors.New("at least one channel required")
	}
	ps, err := sub.Subscribe(ctx, channels...)
	if err != nil {
		return err
	}
	defer ps.Close()

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			evt, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{"channel": msg.Channel, "error": err.Error()}), "dropping realtime message")
				continue
			}
			handle(evt)
		}
	}
}
