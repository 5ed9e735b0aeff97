// Package file implements the file source: a recorded stream replayed
// from a binary file in fixed-size chunks through a single pipeline.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/internal/source"
)

const Name = "file"

const defaultChunkBytes = 4096

// Options configures the file source.
type Options struct {
	Path string `mapstructure:"path"` // required
	// ChunkBytes is the replay granularity. Small values exercise
	// fragmented delivery.
	ChunkBytes int `mapstructure:"chunk_bytes"`
}

type Source struct {
	opts      Options
	pipelines source.Pipelines
}

func init() {
	source.Register(Name, NewSource)
}

func NewSource(options map[string]any, pipelines source.Pipelines) (source.Source, error) {
	opts := Options{ChunkBytes: defaultChunkBytes}
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, err
	}
	if opts.Path == "" {
		return nil, errors.New("path is required")
	}
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = defaultChunkBytes
	}
	return &Source{opts: opts, pipelines: pipelines}, nil
}

func (s *Source) Name() string {
	return Name
}

// Run replays the file and returns when it is exhausted.
func (s *Source) Run(ctx context.Context) error {
	f, err := os.Open(s.opts.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	pl, err := s.pipelines("file:" + s.opts.Path)
	if err != nil {
		return err
	}
	defer pl.Close()

	buf := make([]byte, s.opts.ChunkBytes)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := f.Read(buf)
		if n > 0 {
			if ferr := pl.Feed(buf[:n]); ferr != nil {
				return fmt.Errorf("file source: %w", ferr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.GetLogger().WithField("path", s.opts.Path).Info("file replay complete")
				return nil
			}
			return err
		}
	}
}

func (s *Source) Close() error {
	return nil
}
