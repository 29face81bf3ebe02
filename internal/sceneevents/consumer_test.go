package sceneevents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
)

type fakeSeeder struct {
	mu    sync.Mutex
	seeds map[string]string
}

func (f *fakeSeeder) Seed(_ context.Context, dataset string, pairs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seeds == nil {
		f.seeds = map[string]string{}
	}
	for d, e := range pairs {
		f.seeds[dataset+"/"+d] = e
	}
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "scene-discovered" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(t *testing.T, displayID, entityID string) []byte {
	t.Helper()
	b, err := json.Marshal(Event{Dataset: "landsat_ot_c2_l2", EntityID: entityID, DisplayID: displayID, TS: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestConsumeClaim_SeedsAndMarksInOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.Init(reg, true)
	t.Cleanup(func() { observability.Init(nil, false) })

	seeder := &fakeSeeder{}
	c := NewConsumer(ConsumerConfig{Topic: "scene-discovered"}, seeder, nil)
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	ch := make(chan *sarama.ConsumerMessage, 4)
	ch <- &sarama.ConsumerMessage{Offset: 10, Value: eventBytes(t, "D1", "E1")}
	ch <- &sarama.ConsumerMessage{Offset: 11, Value: []byte("{not json")}
	ch <- &sarama.ConsumerMessage{Offset: 12, Value: eventBytes(t, "", "E3")}
	ch <- &sarama.ConsumerMessage{Offset: 13, Value: eventBytes(t, "D4", "E4")}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if want := []int64{10, 11, 12, 13}; len(s.marked) != 4 || s.marked[0] != want[0] || s.marked[3] != want[3] {
		t.Fatalf("marked=%v want %v", s.marked, want)
	}
	if len(seeder.seeds) != 2 || seeder.seeds["landsat_ot_c2_l2/D1"] != "E1" || seeder.seeds["landsat_ot_c2_l2/D4"] != "E4" {
		t.Fatalf("seeds=%v", seeder.seeds)
	}

	want := `
		# HELP scene_events_total Scene events published to or consumed from Kafka, by outcome.
		# TYPE scene_events_total counter
		scene_events_total{outcome="consumed"} 2
		scene_events_total{outcome="decode_error"} 1
		scene_events_total{outcome="incomplete"} 1
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "scene_events_total"); err != nil {
		t.Fatal(err)
	}
}

func TestConsumeClaim_ProcessErrorStopsWithoutMark(t *testing.T) {
	g := &groupHandler{process: func(context.Context, *sarama.ConsumerMessage) error {
		return errors.New("boom")
	}}
	s := &sess{ctx: context.Background()}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- &sarama.ConsumerMessage{Topic: "t", Offset: 5}
	close(ch)

	err := g.ConsumeClaim(s, &claim{msgs: ch})
	if err == nil || !strings.Contains(err.Error(), "off=5") {
		t.Fatalf("err=%v", err)
	}
	if len(s.marked) != 0 {
		t.Fatalf("failed message must not be marked: %v", s.marked)
	}
}

func TestConsumeClaim_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &groupHandler{process: func(context.Context, *sarama.ConsumerMessage) error { return nil }}
	if err := g.ConsumeClaim(&sess{ctx: ctx}, &claim{msgs: make(chan *sarama.ConsumerMessage)}); err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestRun_RequiresSeederAndBrokers(t *testing.T) {
	if err := NewConsumer(ConsumerConfig{Brokers: []string{"x"}}, nil, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error without seeder")
	}
	if err := NewConsumer(ConsumerConfig{}, &fakeSeeder{}, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error without brokers")
	}
}
