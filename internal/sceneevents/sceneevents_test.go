package sceneevents

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/scene-catalog/internal/core/normalize"
	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
)

func mockConfig() *sarama.Config {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	return cfg
}

func TestPublishRecords_SendsJSONEvents(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, mockConfig())
	acq := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	prod.ExpectInputWithCheckerFunctionAndSucceed(func(b []byte) error {
		var ev Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return err
		}
		if ev.Dataset != "landsat_ot_c2_l2" || ev.EntityID != "E1" || ev.DisplayID != "D1" {
			return errors.New("unexpected event " + string(b))
		}
		if ev.AcquisitionDate == nil || !ev.AcquisitionDate.Equal(acq) {
			return errors.New("missing acquisition date")
		}
		return nil
	})

	p := newPublisher(prod, "scene-discovered", 8, nil)
	p.PublishRecords("landsat_ot_c2_l2", []normalize.Record{
		{"entity_id": "E1", "display_id": "D1", "acquisition_date": acq},
		{"display_id": "no-entity"},
	})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublish_DropsWhenQueueFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.Init(reg, true)
	t.Cleanup(func() { observability.Init(nil, false) })

	// a queue with no consumer: the worker is never started
	p := &Publisher{events: make(chan Event, 1)}
	p.Publish(Event{EntityID: "a"})
	p.Publish(Event{EntityID: "b"})
	p.Publish(Event{EntityID: "c"})

	want := `
		# HELP scene_events_total Scene events published to or consumed from Kafka, by outcome.
		# TYPE scene_events_total counter
		scene_events_total{outcome="dropped"} 2
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "scene_events_total"); err != nil {
		t.Fatal(err)
	}
}

func TestProducerErrorsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.Init(reg, true)
	t.Cleanup(func() { observability.Init(nil, false) })

	prod := mocks.NewAsyncProducer(t, mockConfig())
	prod.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := newPublisher(prod, "scene-discovered", 8, nil)
	p.Publish(Event{Dataset: "ds", EntityID: "E1", TS: time.Now()})
	_ = p.Close()

	want := `
		# HELP scene_events_total Scene events published to or consumed from Kafka, by outcome.
		# TYPE scene_events_total counter
		scene_events_total{outcome="error"} 1
		scene_events_total{outcome="sent"} 1
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "scene_events_total"); err != nil {
		t.Fatal(err)
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	p.Publish(Event{EntityID: "x"})
	p.PublishRecords("ds", []normalize.Record{{"entity_id": "x"}})
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	if _, err := NewPublisher(nil, "t", 0, nil); err == nil {
		t.Fatal("expected error")
	}
}
