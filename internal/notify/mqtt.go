package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/link-failover/pkg/mqtt"
)

// MQTTNotifier publishes events as JSON to an MQTT topic.
type MQTTNotifier struct {
	client mqtt.MQTTClient
	topic  string
	qos    byte
}

func NewMQTTNotifier(client mqtt.MQTTClient, topic string, qos int) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, qos: byte(qos)}
}

func (n *MQTTNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}

	wait := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}

	token := n.client.Publish(n.topic, n.qos, false, payload)
	if !token.WaitTimeout(wait) {
		return errors.New("timed out publishing notification")
	}
	return token.Error()
}
