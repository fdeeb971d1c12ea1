package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hydro-risk-atlas/internal/config"
	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// Publisher produces scored-block events to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured risk topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// riskEvent is the wire shape of one scored block.
type riskEvent struct {
	BlockID         string    `json:"block_id"`
	NormalizedFlood float64   `json:"normalized_flood"`
	NormalizedGW    float64   `json:"normalized_gw"`
	CompoundRisk    float64   `json:"compound_risk"`
	CompoundClass   string    `json:"compound_class"`
	TrendDirection  string    `json:"trend_direction,omitempty"`
	ScoredAt        time.Time `json:"scored_at"`
}

// PublishScores serializes one event per scored block and publishes the
// whole run in a single WriteMessages call.
func (p *Publisher) PublishScores(ctx context.Context, scores []domain.CompoundScore, trends []domain.TrendResult) error {
	if len(scores) == 0 {
		return nil
	}

	directionByID := make(map[string]domain.TrendDirection, len(trends))
	for _, tr := range trends {
		directionByID[tr.BlockID] = tr.Direction
	}

	msgs := make([]kafkago.Message, len(scores))
	for i, score := range scores {
		msg, err := serializeToMessage(score, directionByID[score.BlockID])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(score domain.CompoundScore, direction domain.TrendDirection) (kafkago.Message, error) {
	data, err := json.Marshal(riskEvent{
		BlockID:         score.BlockID,
		NormalizedFlood: score.NormalizedFlood,
		NormalizedGW:    score.NormalizedGW,
		CompoundRisk:    score.Compound,
		CompoundClass:   string(score.Classification),
		TrendDirection:  string(direction),
		ScoredAt:        score.ScoredAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(score.BlockID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "compound_class", Value: []byte(score.Classification)},
			{Key: "scored_at", Value: []byte(score.ScoredAt.Format(time.RFC3339))},
		},
	}, nil
}
