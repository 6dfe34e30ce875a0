package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/mqtt"
	"github.com/roverops/missionctl/pkg/mqtt/topic"
)

// Subscriber is the part of the MQTT client Tail uses.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, qos int, handler mqtt.MessageHandler) error
	Unsubscribe(ctx context.Context, topic string) error
}

// Tail calls fn for every log entry relayed for missionID, or for every
// mission when missionID is empty, until ctx is done. fn may be called
// from several goroutines at once.
func Tail(ctx context.Context, sub Subscriber, b *topic.Builder, missionID string, fn func(LogMessage)) error {
	filter := b.MissionWildcard(topic.SuffixLog)
	if missionID != "" {
		filter = b.MissionLog(missionID)
	}

	handler := func(_ context.Context, t string, payload []byte) {
		var m LogMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			log.Warn("Discarding malformed relayed log", "topic", t, "err", err)
			return
		}
		fn(m)
	}
	if err := sub.Subscribe(ctx, filter, qosAtLeastOnce, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}

	<-ctx.Done()

	uctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return sub.Unsubscribe(uctx, filter)
}
