// Package sink defines the message egress interface and its factory
// registry. Implementations register themselves by name at init time and
// are built from the config's options map.
package sink

import (
	"fmt"
	"sync"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/wire"
)

// Sink consumes deframed messages. Deliver returning an error signals that
// the message was not consumed; pipelines translate that into handler
// refusal so the message stays buffered. Implementations must be safe for
// use from multiple pipelines.
type Sink interface {
	Name() string
	Deliver(msg *wire.Message) error
	Close() error
}

// Factory builds a sink from its config options map.
type Factory func(options map[string]any) (Sink, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register installs a sink constructor under name. Called from init
// functions of implementation packages; duplicate names panic.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("sink: %q already registered", name))
	}
	registry[name] = f
}

// New builds the sink selected by cfg.
func New(cfg config.SinkConfig) (Sink, error) {
	mu.RLock()
	f, ok := registry[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sink: unknown type %q", cfg.Type)
	}
	s, err := f(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("sink %q: %w", cfg.Type, err)
	}
	return s, nil
}
