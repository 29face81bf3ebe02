// Package sceneevents publishes discovered scenes to Kafka.
package sceneevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/scene-catalog/internal/core/normalize"
	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
)

const defaultQueueSize = 1024

type Event struct {
	Dataset         string     `json:"dataset"`
	EntityID        string     `json:"entity_id"`
	DisplayID       string     `json:"display_id,omitempty"`
	AcquisitionDate *time.Time `json:"acquisition_date,omitempty"`
	TS              time.Time  `json:"ts"`
}

// FromRecord builds the event of one normalized search result.
func FromRecord(dataset string, rec normalize.Record, now time.Time) Event {
	ev := Event{
		Dataset:   dataset,
		EntityID:  rec.EntityID(),
		DisplayID: rec.DisplayID(),
		TS:        now.UTC(),
	}
	if t, ok := rec.AcquisitionDate(); ok {
		ev.AcquisitionDate = &t
	}
	return ev
}

// Publisher hands events to an async producer from a bounded queue. A nil
// *Publisher accepts and discards events.
type Publisher struct {
	topic    string
	events   chan Event
	prod     sarama.AsyncProducer
	log      *slog.Logger
	stopped  chan struct{}
	errsDone chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("sceneevents: no brokers")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("sceneevents: create async producer: %w", err)
	}
	return newPublisher(prod, topic, queueSize, log), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = logger.Discard()
	}
	p := &Publisher{
		topic:    topic,
		events:   make(chan Event, queueSize),
		prod:     prod,
		log:      log,
		stopped:  make(chan struct{}),
		errsDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("sceneevents: marshal", "err", err)
				observability.ObserveSceneEvent("error")
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Dataset + "/" + ev.EntityID),
				Value: sarama.ByteEncoder(b),
			}
			observability.ObserveSceneEvent("sent")
		}
	}()

	go func() {
		defer close(p.errsDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("sceneevents: producer error", "err", err)
				observability.ObserveSceneEvent("error")
			}
		}
	}()

	return p
}

// Publish enqueues ev without blocking; a full queue drops it.
func (p *Publisher) Publish(ev Event) {
	if p == nil {
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.ObserveSceneEvent("dropped")
	}
}

// PublishRecords publishes one event per search result that has an entity id.
func (p *Publisher) PublishRecords(dataset string, recs []normalize.Record) {
	if p == nil {
		return
	}
	now := time.Now()
	for _, r := range recs {
		if r.EntityID() == "" {
			continue
		}
		p.Publish(FromRecord(dataset, r, now))
	}
}

// Close drains the queue and closes the producer. Publish must not be called after Close.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	close(p.events)
	<-p.stopped

	err := p.prod.Close()
	<-p.errsDone
	if err != nil {
		return fmt.Errorf("sceneevents: close producer: %w", err)
	}
	return nil
}
