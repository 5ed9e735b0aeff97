// Package kafka implements the Kafka sink. Deframed messages are published
// as JSON envelopes keyed by stream ID, with batching and compression.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/internal/sink"
	"firestige.xyz/strix/internal/wire"
)

const Name = "kafka"

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
	defaultWriteTimeout = 3 * time.Second
)

// Options configures the Kafka sink.
type Options struct {
	Brokers      []string `mapstructure:"brokers"`       // required
	Topic        string   `mapstructure:"topic"`         // required
	BatchSize    int      `mapstructure:"batch_size"`    // default 100
	BatchTimeout string   `mapstructure:"batch_timeout"` // default 100ms
	Compression  string   `mapstructure:"compression"`   // none|gzip|snappy|lz4, default snappy
	MaxAttempts  int      `mapstructure:"max_attempts"`  // default 3
	WriteTimeout string   `mapstructure:"write_timeout"` // default 3s
}

// envelope is the JSON payload published per frame. Body is base64 per
// encoding/json []byte convention.
type envelope struct {
	StreamID uint32 `json:"stream_id"`
	Type     uint8  `json:"type"`
	Length   uint32 `json:"length"`
	Body     []byte `json:"body,omitempty"`
}

type Sink struct {
	writer       *kafkago.Writer
	writeTimeout time.Duration

	deliveredCount atomic.Uint64
	errorCount     atomic.Uint64
}

func init() {
	sink.Register(Name, NewSink)
}

func NewSink(options map[string]any) (sink.Sink, error) {
	opts := Options{
		BatchSize:   defaultBatchSize,
		Compression: defaultCompression,
		MaxAttempts: defaultMaxAttempts,
	}
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, err
	}
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	batchTimeout := defaultBatchTimeout
	if opts.BatchTimeout != "" {
		d, err := time.ParseDuration(opts.BatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid batch_timeout: %w", err)
		}
		batchTimeout = d
	}
	writeTimeout := defaultWriteTimeout
	if opts.WriteTimeout != "" {
		d, err := time.ParseDuration(opts.WriteTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid write_timeout: %w", err)
		}
		writeTimeout = d
	}

	writerConfig := kafkago.WriterConfig{
		Brokers:      opts.Brokers,
		Topic:        opts.Topic,
		Balancer:     &kafkago.Hash{}, // consistent routing per stream
		BatchSize:    opts.BatchSize,
		BatchTimeout: batchTimeout,
		MaxAttempts:  opts.MaxAttempts,
		Async:        false,
	}
	switch opts.Compression {
	case "none", "":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	default:
		return nil, fmt.Errorf("invalid compression type: %s", opts.Compression)
	}

	return &Sink{
		writer:       kafkago.NewWriter(writerConfig),
		writeTimeout: writeTimeout,
	}, nil
}

func (s *Sink) Name() string {
	return Name
}

// Deliver publishes one frame. Errors are returned to the pipeline, which
// keeps the message buffered for redelivery.
func (s *Sink) Deliver(msg *wire.Message) error {
	value, err := json.Marshal(envelope{
		StreamID: msg.Header.StreamID,
		Type:     msg.Header.Type,
		Length:   msg.Header.Length,
		Body:     msg.Body,
	})
	if err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("serialize frame failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(fmt.Sprintf("%d", msg.Header.StreamID)),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	s.deliveredCount.Add(1)
	return nil
}

func (s *Sink) Close() error {
	if err := s.writer.Close(); err != nil {
		return err
	}
	log.GetLogger().
		WithField("total_delivered", s.deliveredCount.Load()).
		WithField("total_errors", s.errorCount.Load()).
		Info("kafka sink closed")
	return nil
}
