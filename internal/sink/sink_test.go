package sink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/wire"
)

type stubSink struct{}

func (stubSink) Name() string                { return "stub" }
func (stubSink) Deliver(*wire.Message) error { return nil }
func (stubSink) Close() error                { return nil }

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.SinkConfig{Type: "no-such-sink"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestRegisterAndNew(t *testing.T) {
	Register("stub", func(options map[string]any) (Sink, error) {
		return stubSink{}, nil
	})

	s, err := New(config.SinkConfig{Type: "stub"})
	require.NoError(t, err)
	assert.Equal(t, "stub", s.Name())
}

func TestNew_FactoryErrorIsWrapped(t *testing.T) {
	cause := errors.New("bad options")
	Register("failing", func(options map[string]any) (Sink, error) {
		return nil, cause
	})

	_, err := New(config.SinkConfig{Type: "failing"})
	assert.ErrorIs(t, err, cause)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	Register("dup", func(options map[string]any) (Sink, error) {
		return stubSink{}, nil
	})
	assert.Panics(t, func() {
		Register("dup", func(options map[string]any) (Sink, error) {
			return stubSink{}, nil
		})
	})
}
