// Package publish streams completed evaluation cycles to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"WhaleConsensus/internal/model"
)

// DefaultTopic receives one message per completed cycle.
const DefaultTopic = "whale-consensus.signals"

// CycleEvent is the published payload. The whole signal set travels in one
// message so consumers never see a partially published cycle.
type CycleEvent struct {
	CycleID  string         `json:"cycle_id"`
	Seq      uint64         `json:"seq"`
	TakenAt  time.Time      `json:"taken_at"`
	Settings model.Settings `json:"settings"`
	Signals  []model.Signal `json:"signals"`
}

// Publisher emits completed cycles.
type Publisher interface {
	PublishCycle(ctx context.Context, ev *CycleEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes cycles to a topic.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher builds a writer for brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}, nil
}

func (p *KafkaPublisher) PublishCycle(ctx context.Context, ev *CycleEvent) error {
	if p == nil || p.writer == nil || ev == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal cycle %s: %w", ev.CycleID, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.CycleID),
		Value: payload,
		Time:  ev.TakenAt,
		Headers: []kafka.Header{
			{Key: "seq", Value: []byte(fmt.Sprintf("%d", ev.Seq))},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Noop discards every cycle. Used when Kafka is not configured.
type Noop struct{}

func (Noop) PublishCycle(context.Context, *CycleEvent) error { return nil }
func (Noop) Close() error                                    { return nil }
