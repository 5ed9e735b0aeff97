// Package source defines the byte ingress interface and its factory
// registry. A source produces logical byte streams and feeds each one into
// its own pipeline; it owns nothing of the framing itself.
package source

import (
	"context"
	"fmt"
	"sync"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/pipeline"
)

// Pipelines creates the pipeline for a newly opened stream. Sources call
// it once per stream and close the returned pipeline when the stream ends.
type Pipelines func(streamID string) (*pipeline.Pipeline, error)

// Source feeds stream bytes into pipelines. Run blocks until the source is
// exhausted (file, pcap) or the context is cancelled (tcp).
type Source interface {
	Name() string
	Run(ctx context.Context) error
	Close() error
}

// Factory builds a source from its config options map.
type Factory func(options map[string]any, pipelines Pipelines) (Source, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register installs a source constructor under name. Called from init
// functions of implementation packages; duplicate names panic.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("source: %q already registered", name))
	}
	registry[name] = f
}

// New builds the source selected by cfg.
func New(cfg config.SourceConfig, pipelines Pipelines) (Source, error) {
	mu.RLock()
	f, ok := registry[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source: unknown type %q", cfg.Type)
	}
	s, err := f(cfg.Options, pipelines)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", cfg.Type, err)
	}
	return s, nil
}
