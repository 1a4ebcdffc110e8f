package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"drummond-lab/internal/domain"
)

// Kafka errors
var (
	ErrNoBrokers = errors.New("kafka brokers are required")
)

// KafkaConfig configures the kafka tick source and bar publisher.
type KafkaConfig struct {
	Brokers   []string
	TickTopic string
	BarTopic  string
	GroupID   string
}

// KafkaTickSource is a TickSource backed by a kafka topic of JSON ticks.
type KafkaTickSource struct {
	cfg    KafkaConfig
	log    zerolog.Logger
	reader *kafka.Reader
}

// NewKafkaTickSource creates a kafka tick source.
func NewKafkaTickSource(cfg KafkaConfig, log zerolog.Logger) (*KafkaTickSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "drummond-lab"
	}
	return &KafkaTickSource{
		cfg: cfg,
		log: log.With().Str("component", "kafka_feed").Logger(),
	}, nil
}

// Connect creates the topic reader.
func (s *KafkaTickSource) Connect(_ context.Context) error {
	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		Topic:    s.cfg.TickTopic,
		GroupID:  s.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return nil
}

// Read streams ticks decoded from the topic until the context is
// cancelled. Malformed payloads are logged and skipped, not fatal.
func (s *KafkaTickSource) Read(ctx context.Context) (<-chan *domain.Tick, <-chan error) {
	ticks := make(chan *domain.Tick, 1024)
	errs := make(chan error, 1)

	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			msg, err := s.reader.ReadMessage(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					errs <- fmt.Errorf("kafka read: %w", err)
				}
				return
			}
			var tick domain.Tick
			if err := json.Unmarshal(msg.Value, &tick); err != nil {
				s.log.Warn().Err(err).Msg("skipping malformed tick")
				continue
			}
			select {
			case ticks <- &tick:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ticks, errs
}

// Close closes the reader.
func (s *KafkaTickSource) Close() error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

// Ensure KafkaTickSource implements TickSource.
var _ TickSource = (*KafkaTickSource)(nil)

// BarPublisher writes flushed bars to a kafka topic, keyed by symbol so
// one symbol's bars stay ordered within a partition.
type BarPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewBarPublisher creates a bar publisher.
func NewBarPublisher(cfg KafkaConfig) (*BarPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: time.Second,
	}
	return &BarPublisher{writer: writer, topic: cfg.BarTopic}, nil
}

// Publish writes one batch of bars.
func (p *BarPublisher) Publish(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(bars))
	for _, bar := range bars {
		value, err := json.Marshal(bar)
		if err != nil {
			return fmt.Errorf("marshal bar: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(bar.Symbol),
			Value: value,
			Time:  time.UnixMilli(bar.TimestampMs),
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close closes the writer.
func (p *BarPublisher) Close() error {
	return p.writer.Close()
}
