// Package kafka wraps the franz-go client for producing and consuming the
// events that connect cart, order and notification services.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

// Conf is the producer handle shared by handlers and services.
type Conf struct {
	client *kgo.Client
}

func NewConf(brokers string) (*Conf, error) {
	seeds := splitBrokers(brokers)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &Conf{client: client}, nil
}

// ProduceMessage synchronously publishes one record. The caller decides what
// a publish failure means; the cart checkout path surfaces it, the
// order-placed path only logs it.
func (c *Conf) ProduceMessage(topic string, key, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if err := c.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("producing to %s: %w", topic, err)
	}
	return nil
}

func (c *Conf) Close() {
	c.client.Close()
}

// Consumer reads one topic in a consumer group with auto-commit disabled, so
// offsets advance only after the handler succeeds (at-least-once).
type Consumer struct {
	client *kgo.Client
	topic  string
}

func NewConsumer(brokers, group, topic string) (*Consumer, error) {
	seeds := splitBrokers(brokers)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka consumer for %s: %w", topic, err)
	}
	return &Consumer{client: client, topic: topic}, nil
}

// HandlerFunc processes one record. A nil return commits the record's
// offset; an error leaves the offset where it is so the record is
// redelivered.
type HandlerFunc func(ctx context.Context, key, value []byte) error

// Consume polls until ctx is cancelled, invoking handle for every record.
// Records of a partition are handled strictly in offset order: committing a
// record implicitly commits everything before it, so once a record fails the
// rest of that partition's batch must not be touched or its commit would
// acknowledge the failed offset. Processing resumes from the failed record
// after a rebalance or restart.
func (c *Consumer) Consume(ctx context.Context, handle HandlerFunc) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("kafka fetch error",
				slog.String(logkey.Topic, topic),
				slog.Int("partition", int(partition)),
				slog.String(logkey.ERROR, err.Error()),
			)
		})

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			handleInOrder(ctx, p.Records, handle, c.commitRecord)
		})
	}
}

func (c *Consumer) commitRecord(ctx context.Context, record *kgo.Record) error {
	return c.client.CommitRecords(ctx, record)
}

// handleInOrder walks one partition's records, committing each offset after
// its handler succeeds and bailing out at the first failure. Commit failures
// only lose the checkpoint, not the work, so they are logged and the walk
// continues.
func handleInOrder(ctx context.Context, records []*kgo.Record, handle HandlerFunc, commit func(context.Context, *kgo.Record) error) {
	for _, record := range records {
		if err := handle(ctx, record.Key, record.Value); err != nil {
			slog.Error("message handling failed, parking partition until redelivery",
				slog.String(logkey.Topic, record.Topic),
				slog.Int("partition", int(record.Partition)),
				slog.Int64("offset", record.Offset),
				slog.String(logkey.ERROR, err.Error()),
			)
			return
		}
		if err := commit(ctx, record); err != nil {
			slog.Error("committing offset failed",
				slog.String(logkey.Topic, record.Topic),
				slog.String(logkey.ERROR, err.Error()),
			)
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}

func splitBrokers(brokers string) []string {
	var seeds []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			seeds = append(seeds, b)
		}
	}
	return seeds
}
