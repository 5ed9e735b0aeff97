package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/pipeline"
	"firestige.xyz/strix/internal/wire"
)

type recordSink struct {
	messages []*wire.Message
}

func (s *recordSink) Name() string { return "record" }

func (s *recordSink) Deliver(msg *wire.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordSink) Close() error { return nil }

func writeStream(t *testing.T, messages ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.bin")
	var data []byte
	for _, m := range messages {
		data = append(data, m...)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func pipelinesFor(snk *recordSink) func(string) (*pipeline.Pipeline, error) {
	return func(streamID string) (*pipeline.Pipeline, error) {
		return pipeline.New(streamID, Name,
			config.ParserConfig{BufferCapacity: 4096}, snk)
	}
}

func TestRun_ReplaysRecordedStream(t *testing.T) {
	path := writeStream(t,
		wire.EncodeMessage(wire.TypeData, 1, []byte("alpha")),
		wire.EncodeMessage(wire.TypeData, 1, []byte("beta")),
		wire.EncodeMessage(wire.TypeHeartbeat, 1, nil),
	)

	snk := &recordSink{}
	src, err := NewSource(map[string]any{"path": path}, pipelinesFor(snk))
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.Run(context.Background()))
	require.Len(t, snk.messages, 3)
	assert.Equal(t, []byte("alpha"), snk.messages[0].Body)
	assert.Equal(t, []byte("beta"), snk.messages[1].Body)
	assert.Equal(t, wire.TypeHeartbeat, snk.messages[2].Header.Type)
}

func TestRun_SmallChunksPreserveFraming(t *testing.T) {
	body := make([]byte, 300)
	for i := range body {
		body[i] = byte(i)
	}
	path := writeStream(t, wire.EncodeMessage(wire.TypeData, 7, body))

	snk := &recordSink{}
	src, err := NewSource(map[string]any{
		"path":        path,
		"chunk_bytes": 1,
	}, pipelinesFor(snk))
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, src.Run(context.Background()))
	require.Len(t, snk.messages, 1)
	assert.Equal(t, body, snk.messages[0].Body)
}

func TestRun_CorruptStreamFails(t *testing.T) {
	msg := wire.EncodeMessage(wire.TypeData, 1, []byte("x"))
	msg[0] = 0xFF
	path := writeStream(t, msg)

	snk := &recordSink{}
	src, err := NewSource(map[string]any{"path": path}, pipelinesFor(snk))
	require.NoError(t, err)
	defer src.Close()

	assert.ErrorIs(t, src.Run(context.Background()), wire.ErrBadMagic)
	assert.Empty(t, snk.messages)
}

func TestNewSource_RequiresPath(t *testing.T) {
	_, err := NewSource(map[string]any{}, pipelinesFor(&recordSink{}))
	assert.Error(t, err)
}
