package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/internal/wire"
)

func TestNewSink_DecodesOptions(t *testing.T) {
	s, err := NewSink(map[string]any{"hex_preview_bytes": 16})
	require.NoError(t, err)
	assert.Equal(t, 16, s.(*Sink).opts.HexPreviewBytes)
}

func TestDeliver(t *testing.T) {
	s, err := NewSink(map[string]any{"hex_preview_bytes": 4})
	require.NoError(t, err)
	defer s.Close()

	msg := &wire.Message{
		Header: wire.Header{
			Magic:    wire.Magic,
			Version:  wire.Version,
			Type:     wire.TypeData,
			StreamID: 42,
			Length:   5,
		},
		Body: []byte("hello"),
	}
	assert.NoError(t, s.Deliver(msg))

	// Preview longer than the body must not panic.
	short := &wire.Message{Header: msg.Header, Body: []byte("hi")}
	assert.NoError(t, s.Deliver(short))
}
