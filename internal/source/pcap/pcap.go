// Package pcap implements the pcap source: TCP payloads are lifted out of
// a capture file and replayed per flow, so recorded traffic can be
// deframed offline exactly as the tcp source would have seen it live.
package pcap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	gopcap "github.com/google/gopacket/pcap"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/internal/pipeline"
	"firestige.xyz/strix/internal/source"
)

const Name = "pcap"

// Options configures the pcap source.
type Options struct {
	Path string `mapstructure:"path"` // required
	// Port narrows the capture to one TCP port. Ignored when Filter is
	// set explicitly.
	Port int `mapstructure:"port"`
	// Filter is a raw BPF expression applied to the capture.
	Filter string `mapstructure:"filter"`
}

type Source struct {
	opts      Options
	pipelines source.Pipelines
}

func init() {
	source.Register(Name, NewSource)
}

func NewSource(options map[string]any, pipelines source.Pipelines) (source.Source, error) {
	var opts Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, err
	}
	if opts.Path == "" {
		return nil, errors.New("path is required")
	}
	return &Source{opts: opts, pipelines: pipelines}, nil
}

func (s *Source) Name() string {
	return Name
}

func (s *Source) bpf() string {
	if s.opts.Filter != "" {
		return s.opts.Filter
	}
	if s.opts.Port > 0 {
		return fmt.Sprintf("tcp port %d", s.opts.Port)
	}
	return "tcp"
}

// Run replays the capture file and returns when it is exhausted. One TCP
// flow maps to one pipeline; retransmissions and reordering are not
// reconstructed, the capture is assumed to be in stream order.
func (s *Source) Run(ctx context.Context) error {
	handle, err := gopcap.OpenOffline(s.opts.Path)
	if err != nil {
		return fmt.Errorf("failed to open pcap file %s: %w", s.opts.Path, err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(s.bpf()); err != nil {
		return fmt.Errorf("failed to set bpf filter %q: %w", s.bpf(), err)
	}

	logger := log.GetLogger().WithField("path", s.opts.Path)
	logger.WithField("filter", s.bpf()).Info("pcap replay starting")

	flows := make(map[string]*pipeline.Pipeline)
	dead := make(map[string]bool)
	defer func() {
		for _, pl := range flows {
			pl.Close()
		}
	}()

	packets := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packets.Packets() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil || packet.NetworkLayer() == nil {
			continue
		}
		tcp := tcpLayer.(*layers.TCP)
		if len(tcp.Payload) == 0 {
			continue
		}

		flow := packet.NetworkLayer().NetworkFlow().String() + "|" +
			tcp.TransportFlow().String()
		if dead[flow] {
			continue
		}
		pl, ok := flows[flow]
		if !ok {
			pl, err = s.pipelines("pcap:" + flow)
			if err != nil {
				return err
			}
			flows[flow] = pl
		}

		if ferr := pl.Feed(tcp.Payload); ferr != nil {
			// A broken flow does not stop the replay of the others.
			logger.WithError(ferr).WithField("flow", flow).Warn("dropping flow")
			pl.Close()
			delete(flows, flow)
			dead[flow] = true
		}
	}

	logger.WithField("flows", len(flows)).Info("pcap replay complete")
	return nil
}

func (s *Source) Close() error {
	return nil
}
