// Package tcp implements the TCP source: one accepted connection is one
// logical stream with its own pipeline.
package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/net/netutil"

	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/internal/source"
)

const Name = "tcp"

const defaultReadChunk = 4096

// Options configures the TCP source.
type Options struct {
	Listen string `mapstructure:"listen"` // required, e.g. ":7400"
	// MaxConns caps concurrently served connections; zero means no cap.
	MaxConns int `mapstructure:"max_conns"`
	// ReadChunk is the per-read buffer size; fragmentation of frames
	// across reads is expected and handled by the pipeline.
	ReadChunk int `mapstructure:"read_chunk"`
}

type Source struct {
	opts      Options
	pipelines source.Pipelines

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func init() {
	source.Register(Name, NewSource)
}

func NewSource(options map[string]any, pipelines source.Pipelines) (source.Source, error) {
	opts := Options{ReadChunk: defaultReadChunk}
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, err
	}
	if opts.Listen == "" {
		return nil, errors.New("listen is required")
	}
	if opts.ReadChunk <= 0 {
		opts.ReadChunk = defaultReadChunk
	}
	return &Source{opts: opts, pipelines: pipelines}, nil
}

func (s *Source) Name() string {
	return Name
}

// Run accepts connections until the context is cancelled.
func (s *Source) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	if s.opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConns)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log.GetLogger().WithField("listen", ln.Addr().String()).Info("tcp source listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		s.wg.Add(1)
		go s.serve(ctx, conn)
	}

	s.wg.Wait()
	return nil
}

// serve reads one connection until EOF or a stream-fatal pipeline error.
func (s *Source) serve(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	streamID := conn.RemoteAddr().String()
	logger := log.GetLogger().WithField("stream", streamID)

	pl, err := s.pipelines(streamID)
	if err != nil {
		logger.WithError(err).Error("failed to open pipeline")
		return
	}
	defer pl.Close()

	buf := make([]byte, s.opts.ReadChunk)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := pl.Feed(buf[:n]); ferr != nil {
				// Protocol violation or sustained backpressure: drop
				// the connection, the stream cannot continue.
				logger.WithError(ferr).Warn("closing stream")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.WithError(err).Debug("read error")
			}
			return
		}
	}
}

// Addr returns the bound listener address once Run has started, nil
// before that. Useful with ":0" listen configs.
func (s *Source) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Source) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
	return nil
}
