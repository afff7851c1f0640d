package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mj-112358/winkfinal/metrics"
)

const DEFAULT_POLL_TIMEOUT = 5 * time.Second

// KafkaConsumerConfig describes the detections topic.
type KafkaConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDetectionConsumer feeds detection records from Kafka into the
// occupancy tracker. One partition is consumed in order, so per-camera
// ordering follows the producer's partitioning key.
type KafkaDetectionConsumer struct {
	cfg      KafkaConsumerConfig
	reader   messageReader
	ingester DetectionIngester
	metrics  *metrics.Metrics
}

// NewKafkaDetectionConsumer builds a consumer-group reader for the topic.
func NewKafkaDetectionConsumer(cfg KafkaConsumerConfig, ingester DetectionIngester, m *metrics.Metrics) (*KafkaDetectionConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("detections topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DEFAULT_POLL_TIMEOUT
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &KafkaDetectionConsumer{cfg: cfg, reader: reader, ingester: ingester, metrics: m}, nil
}

// Close shuts down the underlying Kafka reader.
func (c *KafkaDetectionConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *KafkaDetectionConsumer) Run(ctx context.Context) error {
	log.Printf("[KafkaDetectionConsumer] Consuming topic=%s group=%s brokers=%s",
		c.cfg.Topic, c.cfg.GroupID, strings.Join(c.cfg.Brokers, ","))
	defer log.Println("[KafkaDetectionConsumer] Stopped.")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			log.Printf("[KafkaDetectionConsumer] Fetch error: %v", err)
			continue
		}

		if _, err := handleRecord(ctx, c.ingester, c.metrics, msg.Value); err != nil {
			return err
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				log.Printf("[KafkaDetectionConsumer] Commit error at offset %d: %v", msg.Offset, err)
			}
		}
		commitCancel()
	}
}

// String describes the consumer for logs.
func (c *KafkaDetectionConsumer) String() string {
	return fmt.Sprintf("KafkaDetectionConsumer(topic=%s, group=%s)", c.cfg.Topic, c.cfg.GroupID)
}
