package tcp

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/pipeline"
	"firestige.xyz/strix/internal/wire"
)

type recordSink struct {
	mu       sync.Mutex
	messages []*wire.Message
}

func (s *recordSink) Name() string { return "record" }

func (s *recordSink) Deliver(msg *wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordSink) Close() error { return nil }

func (s *recordSink) snapshot() []*wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wire.Message(nil), s.messages...)
}

func waitForAddr(t *testing.T, src *Source) net.Addr {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := src.Addr(); addr != nil {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("listener never came up")
	return nil
}

func TestRun_DeliversFramesFromConnection(t *testing.T) {
	snk := &recordSink{}
	src, err := NewSource(map[string]any{"listen": "127.0.0.1:0"},
		func(streamID string) (*pipeline.Pipeline, error) {
			return pipeline.New(streamID, Name,
				config.ParserConfig{BufferCapacity: 4096}, snk)
		})
	require.NoError(t, err)
	tcpSrc := src.(*Source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	addr := waitForAddr(t, tcpSrc)
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)

	_, err = conn.Write(wire.EncodeMessage(wire.TypeData, 5, []byte("hello")))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return len(snk.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte("hello"), snk.snapshot()[0].Body)

	cancel()
	require.NoError(t, <-done)
}

func TestNewSource_RequiresListen(t *testing.T) {
	_, err := NewSource(map[string]any{}, nil)
	assert.Error(t, err)
}
