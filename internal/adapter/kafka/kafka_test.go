package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/config"
	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() domain.AuditEvent {
	return domain.AuditEvent{
		ID:             "pred-1",
		Target:         "Fire_Occurred",
		PredictedClass: "Yes",
		Probabilities: []domain.ClassProbability{
			{Class: "No", Probability: 0.25},
			{Class: "Yes", Probability: 0.75},
		},
		Imputed:     domain.Imputation{domain.ColResponseTime: 21.5},
		Features:    map[string]any{domain.ColBuildingType: "Residential", domain.ColMonth: 6.0},
		PredictedAt: time.Date(2024, 6, 1, 12, 30, 0, 500, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	event := testEvent()

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("pred-1"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "target", msg.Headers[0].Key)
	assert.Equal(t, []byte("Fire_Occurred"), msg.Headers[0].Value)
	assert.Equal(t, "predicted_class", msg.Headers[1].Key)
	assert.Equal(t, []byte("Yes"), msg.Headers[1].Value)
	assert.Equal(t, "predicted_at", msg.Headers[2].Key)
	assert.Equal(t, "2024-06-01T12:30:00.0000005Z", string(msg.Headers[2].Value))

	var decoded domain.AuditEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Probabilities, decoded.Probabilities)
	assert.Equal(t, event.Imputed, decoded.Imputed)
	assert.Equal(t, "Residential", decoded.Features[domain.ColBuildingType])
	assert.True(t, event.PredictedAt.Equal(decoded.PredictedAt))
}

func TestSerializeToMessage_UnencodableFeature(t *testing.T) {
	event := testEvent()
	event.Features = map[string]any{"bad": make(chan int)}

	_, err := serializeToMessage(event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialize audit event")
}

func TestNewWriter_UsesAuditTopic(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaAuditTopic:    "fire-risk-predictions",
		BatchSize:          25,
		BatchFlushInterval: 250 * time.Millisecond,
	}

	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "fire-risk-predictions", w.writer.Topic)
	assert.Equal(t, 25, w.writer.BatchSize)
	assert.Equal(t, 250*time.Millisecond, w.writer.BatchTimeout)
}

func TestLoadBatch_EmptyIsNoop(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaAuditTopic: "unused"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.LoadBatch(context.Background(), nil))
}
