package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhaleConsensus/internal/model"
)

type captureWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestKafkaPublisher_PublishCycle(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	err := p.PublishCycle(context.Background(), &CycleEvent{
		CycleID:  "c-1",
		Seq:      7,
		TakenAt:  at,
		Settings: model.DefaultSettings(),
		Signals: []model.Signal{{
			AggregatedSignal: model.AggregatedSignal{GroupKey: "m1_q_YES", WalletCount: 3},
			Alpha:            model.AlphaBreakdown{Total: 66},
		}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "c-1", string(msg.Key))
	assert.Equal(t, "7", string(msg.Headers[0].Value))

	var decoded struct {
		Seq     uint64 `json:"seq"`
		Signals []struct {
			GroupKey   string `json:"group_key"`
			AlphaScore int    `json:"alpha_score"`
		} `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, uint64(7), decoded.Seq)
	require.Len(t, decoded.Signals, 1)
	assert.Equal(t, 66, decoded.Signals[0].AlphaScore)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "")
	assert.Error(t, err)
}
