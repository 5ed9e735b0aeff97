// Package console implements the console sink: one summary log line per
// deframed message.
package console

import (
	"encoding/hex"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/internal/sink"
	"firestige.xyz/strix/internal/wire"
)

const Name = "console"

// Options configures the console sink.
type Options struct {
	// HexPreviewBytes is the number of leading body bytes to print in
	// hex; zero disables the preview.
	HexPreviewBytes int `mapstructure:"hex_preview_bytes"`
}

type Sink struct {
	opts Options
}

func init() {
	sink.Register(Name, NewSink)
}

func NewSink(options map[string]any) (sink.Sink, error) {
	var opts Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, err
	}
	return &Sink{opts: opts}, nil
}

func (s *Sink) Name() string {
	return Name
}

func (s *Sink) Deliver(msg *wire.Message) error {
	l := log.GetLogger().
		WithField("stream_id", msg.Header.StreamID).
		WithField("type", msg.Header.Type).
		WithField("length", msg.Header.Length)
	if n := s.opts.HexPreviewBytes; n > 0 && len(msg.Body) > 0 {
		if n > len(msg.Body) {
			n = len(msg.Body)
		}
		l = l.WithField("body", hex.EncodeToString(msg.Body[:n]))
	}
	l.Info("frame")
	return nil
}

func (s *Sink) Close() error {
	return nil
}
