//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/hydro-risk-atlas/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-risk-atlas/internal/config"
	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

const testRiskTopic = "test-risk-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPublishScores verifies the publisher round-trips scored blocks
// through real Kafka with the expected keys, headers, and payloads.
func TestPublishScores(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testRiskTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testRiskTopic,
	}

	scoredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scores := []domain.CompoundScore{
		{
			BlockID:         "BLK-001",
			NormalizedFlood: 1.0,
			NormalizedGW:    0.8,
			Compound:        0.9,
			Classification:  domain.ClassificationCritical,
			ScoredAt:        scoredAt,
		},
		{
			BlockID:        "BLK-002",
			Compound:       0.2,
			Classification: domain.ClassificationNonCritical,
			ScoredAt:       scoredAt,
		},
	}
	trends := []domain.TrendResult{
		{BlockID: "BLK-001", Slope: 0.05, Direction: domain.TrendIncreasing},
	}

	publisher := kafkaadapter.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.PublishScores(ctx, scores, trends))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testRiskTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	type riskEvent struct {
		BlockID        string    `json:"block_id"`
		CompoundRisk   float64   `json:"compound_risk"`
		CompoundClass  string    `json:"compound_class"`
		TrendDirection string    `json:"trend_direction"`
		ScoredAt       time.Time `json:"scored_at"`
	}

	received := make(map[string]riskEvent, len(scores))
	headers := make(map[string]map[string]string, len(scores))
	for len(received) < len(scores) {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from risk topic")

		var event riskEvent
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		assert.Equal(t, event.BlockID, string(msg.Key), "message key is the block id")

		hs := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			hs[h.Key] = string(h.Value)
		}
		received[event.BlockID] = event
		headers[event.BlockID] = hs
	}

	critical := received["BLK-001"]
	assert.Equal(t, 0.9, critical.CompoundRisk)
	assert.Equal(t, "Critical", critical.CompoundClass)
	assert.Equal(t, "Increasing", critical.TrendDirection)
	assert.True(t, critical.ScoredAt.Equal(scoredAt))
	assert.Equal(t, "Critical", headers["BLK-001"]["compound_class"])
	_, err := time.Parse(time.RFC3339, headers["BLK-001"]["scored_at"])
	assert.NoError(t, err, "scored_at header should be valid RFC3339")

	nonCritical := received["BLK-002"]
	assert.Equal(t, "Non-critical", nonCritical.CompoundClass)
	// No trend was fitted for BLK-002.
	assert.Empty(t, nonCritical.TrendDirection)

	// No extra messages beyond the scored blocks.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected exactly one message per scored block")
}
