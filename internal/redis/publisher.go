package redis

import (
	"context"
	"encoding/json"

	"github.com/friendsofgo/errors"

	"cad-realtime/pkg/redis"
)

// Message types accepted by the subscriber.
const (
	MessageTypeActivity = "activity"
	MessageTypeAlert    = "alert"
)

// Publish publishes a feed envelope to the Redis channel backing a feed
// channel. It is the producer-side counterpart of the Subscriber.
func Publish(ctx context.Context, client *redis.Client, channel, msgType string, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	envelope, err := json.Marshal(feedMessage{
		Type:    msgType,
		Payload: payloadBytes,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope")
	}

	if err := client.Publish(ctx, channelPrefix+channel, envelope).Err(); err != nil {
		return errors.Wrapf(err, "failed to publish to channel %s", channel)
	}
	return nil
}
