package feedstream

import (
	"encoding/json"
	"fmt"

	"proveit/models"
)

// StreamKey is the Redis stream every instance publishes feed events to.
const StreamKey = "feed:events"

// envelope is the stream entry. Origin lets an instance recognize its own
// events in logs.
type envelope struct {
	Origin string           `json:"origin"`
	Event  models.FeedEvent `json:"event"`
}

func marshalEvent(origin string, ev models.FeedEvent) (string, error) {
	b, err := json.Marshal(envelope{Origin: origin, Event: ev})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalEvent(data string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return envelope{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if env.Event.Type == "" {
		return envelope{}, fmt.Errorf("event without type")
	}
	return env, nil
}
