package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

const kafkaSubscriberBuffer = 1024

// KafkaBus is a Bus backed by Kafka via franz-go. One producer client is
// shared for publishing; each Subscribe call creates its own consumer client
// so per-topic ordering is preserved per consumer.
type KafkaBus struct {
	brokers  []string
	group    string
	producer *kgo.Client
	logger   *slog.Logger
}

// NewKafkaBus connects a producer and ensures the card topics exist.
func NewKafkaBus(ctx context.Context, brokers []string, group string, logger *slog.Logger) (*KafkaBus, error) {
	producer, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}

	adm := kadm.NewClient(producer)
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, TopicCard, TopicAck); err != nil {
		// Topic creation races with other instances; existing topics are fine.
		logger.Warn("kafka topic creation", "error", err)
	}

	return &KafkaBus{
		brokers:  brokers,
		group:    group,
		producer: producer,
		logger:   logger,
	}, nil
}

// Publish produces the payload synchronously so a broker failure surfaces to
// the caller as "not delivered" instead of being silently dropped.
func (b *KafkaBus) Publish(ctx context.Context, topic string, payload []byte) error {
	rec := &kgo.Record{Topic: topic, Value: payload}
	if err := b.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the topics with a dedicated client until ctx ends.
func (b *KafkaBus) Subscribe(ctx context.Context, topics ...string) (<-chan Message, error) {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.brokers...),
		kgo.ConsumerGroup(b.group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka consumer: %w", err)
	}

	out := make(chan Message, kafkaSubscriberBuffer)
	go func() {
		defer close(out)
		defer consumer.Close()
		for {
			fetches := consumer.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return
			}
			fetches.EachError(func(topic string, partition int32, err error) {
				b.logger.Error("kafka fetch", "topic", topic, "partition", partition, "error", err)
			})
			fetches.EachRecord(func(rec *kgo.Record) {
				select {
				case out <- Message{Topic: rec.Topic, Payload: rec.Value}:
				case <-ctx.Done():
				}
			})
			if err := consumer.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
				b.logger.Error("kafka commit", "error", err)
			}
		}
	}()
	return out, nil
}

// Close releases the producer client.
func (b *KafkaBus) Close() {
	b.producer.Close()
}
