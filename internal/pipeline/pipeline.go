// Package pipeline wires one logical byte stream through the deframer to a
// sink: source bytes in via Feed, validated wire.Messages out via
// sink.Deliver, with metrics at the stage boundaries.
package pipeline

import (
	"errors"
	"fmt"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/internal/sink"
	"firestige.xyz/strix/internal/wire"
	"firestige.xyz/strix/pkg/ringbuffer"
	"firestige.xyz/strix/pkg/streamparser"
)

// Pipeline deframes a single stream. Not safe for concurrent Feed calls;
// each stream gets its own pipeline.
type Pipeline struct {
	id     string
	source string // source type, used as metrics label
	logger log.Logger

	parser *streamparser.Parser[wire.Header]
	sink   sink.Sink

	head  wire.Header // accepted header awaiting its body
	fatal error       // protocol violation recorded by the header handler
}

// New builds a pipeline for one stream. The sink is shared across
// pipelines; the parser and its receive ring are owned exclusively.
func New(id, source string, pcfg config.ParserConfig, snk sink.Sink) (*Pipeline, error) {
	p := &Pipeline{
		id:     id,
		source: source,
		logger: log.GetLogger().WithField("stream", id),
		sink:   snk,
	}

	parser, err := streamparser.New[wire.Header](p.onHeader, p.onBody,
		streamparser.WithBufferCapacity(pcfg.BufferCapacity),
		streamparser.WithMaxBodyBytes(pcfg.MaxBodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", id, err)
	}
	p.parser = parser

	metrics.StreamsActive.WithLabelValues(source).Inc()
	return p, nil
}

// Feed pushes one chunk of stream bytes through the state machine. A nil
// return means the bytes were accepted; messages that the sink refused
// stay buffered and are retried on the next Feed. Any non-nil error is
// fatal to the stream and the caller should close it.
func (p *Pipeline) Feed(data []byte) error {
	metrics.IngestBytesTotal.WithLabelValues(p.source).Add(float64(len(data)))

	err := p.parser.HandleData(data)
	metrics.BufferedBytes.WithLabelValues(p.source).Observe(float64(p.parser.Buffered()))

	if err != nil {
		metrics.ParseErrorsTotal.WithLabelValues(p.source, parseErrorReason(err)).Inc()
		return err
	}
	if p.fatal != nil {
		metrics.ParseErrorsTotal.WithLabelValues(p.source, "bad_header").Inc()
		metrics.FramesTotal.WithLabelValues(p.source, "invalid").Inc()
		return p.fatal
	}
	return nil
}

// Close releases the pipeline. Any staged partial message is discarded.
func (p *Pipeline) Close() {
	if buffered := p.parser.Buffered(); buffered > 0 {
		p.logger.WithField("buffered", buffered).
			Debug("discarding partial frame at stream close")
	}
	metrics.StreamsActive.WithLabelValues(p.source).Dec()
}

// onHeader validates the protocol fields of a decoded header. Refusing an
// invalid header keeps it buffered, which is irrelevant once Feed returns
// the recorded fatal error and the stream is torn down.
func (p *Pipeline) onHeader(h wire.Header) bool {
	if err := h.Validate(); err != nil {
		p.fatal = err
		return false
	}
	p.head = h
	return true
}

// onBody hands the assembled message to the sink. The body view is only
// valid during this call, so it is copied before delivery.
func (p *Pipeline) onBody(body []byte) bool {
	msg := &wire.Message{
		Header: p.head,
		Body:   append([]byte(nil), body...),
	}
	if err := p.sink.Deliver(msg); err != nil {
		p.logger.WithError(err).Warn("sink refused frame, keeping it buffered")
		metrics.DeliveriesTotal.WithLabelValues(p.sink.Name(), "refused").Inc()
		return false
	}
	metrics.DeliveriesTotal.WithLabelValues(p.sink.Name(), "ok").Inc()
	metrics.FramesTotal.WithLabelValues(p.source, "parsed").Inc()
	return true
}

func parseErrorReason(err error) string {
	switch {
	case errors.Is(err, ringbuffer.ErrBufferOverflow):
		return "overflow"
	case errors.Is(err, streamparser.ErrBodyTooLarge):
		return "body_too_large"
	default:
		return "decode"
	}
}
