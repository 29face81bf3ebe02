package sceneevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
)

// Seeder stores display id to entity id pairs learned from events;
// *entityid.Cache implements it.
type Seeder interface {
	Seed(ctx context.Context, dataset string, pairs map[string]string)
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// FromOldest replays the retained topic on first start.
	FromOldest bool
}

// Consumer reads scene events published by any gateway instance and seeds
// the entity id cache with their display id to entity id pairs.
type Consumer struct {
	cfg   ConsumerConfig
	log   *slog.Logger
	seed  Seeder
	retry time.Duration
}

func NewConsumer(cfg ConsumerConfig, s Seeder, log *slog.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	return &Consumer{cfg: cfg, log: log, seed: s, retry: 2 * time.Second}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.seed == nil {
		return errors.New("sceneevents: consumer has no seeder")
	}
	if len(c.cfg.Brokers) == 0 {
		return errors.New("sceneevents: no brokers")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	cfg.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if c.cfg.FromOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("sceneevents: create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}
	c.log.Info("scene event consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			c.log.Error("scene event consumer error", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.retry):
			}
		}
		if ctx.Err() != nil {
			c.log.Info("scene event consumer shutting down")
			return nil
		}
	}
}

// ProcessOne seeds the cache from one message. Undecodable or incomplete
// events are counted and skipped so they cannot stall the partition.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.ObserveSceneEvent("decode_error")
		c.log.WarnContext(ctx, "skipping undecodable scene event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if ev.Dataset == "" || ev.EntityID == "" || ev.DisplayID == "" {
		observability.ObserveSceneEvent("incomplete")
		return nil
	}

	c.seed.Seed(logger.WithDataset(ctx, ev.Dataset), ev.Dataset, map[string]string{ev.DisplayID: ev.EntityID})
	observability.ObserveSceneEvent("consumed")
	return nil
}
