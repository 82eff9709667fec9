package doorbird

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/mqtt"
)

// Subscriber registers MQTT handlers. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// SubscribeCommands presses the entity named by each message on the
// command topic. The returned function removes the subscription.
func SubscribeCommands(sub Subscriber, topics mqtt.Topics, qos byte, entities *host.EntityRegistry, logger Logger) (func() error, error) {
	if logger == nil {
		logger = nopLogger{}
	}

	filter := topics.AllCommands()
	handler := func(topic string, _ []byte) error {
		entityID, ok := topics.EntityFromCommand(topic)
		if !ok {
			return fmt.Errorf("not a command topic: %s", topic)
		}
		logger.Info("MQTT command received", "entity_id", entityID)
		return entities.Press(context.Background(), entityID)
	}

	if err := sub.Subscribe(filter, qos, handler); err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", filter, err)
	}
	return func() error { return sub.Unsubscribe(filter) }, nil
}
