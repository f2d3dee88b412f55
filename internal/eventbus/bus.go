// Package eventbus abstracts the publish/subscribe broker carrying card
// mutation events between the publication and consultation sides. Delivery is
// at-least-once and ordered per topic; the in-memory bus serves tests and
// single-process deployments, the Kafka bus production.
package eventbus

import "context"

// Topics carrying card traffic.
const (
	TopicCard = "card"
	TopicAck  = "ack"
)

// Message is one event on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is the broker contract. Subscribe delivers messages for the given
// topics, in publish order per topic, until ctx is cancelled.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topics ...string) (<-chan Message, error)
}
