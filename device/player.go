package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrAlreadyOpen is returned when a second player is opened. The audio
// backend supports a single context per process.
var ErrAlreadyOpen = errors.New("device: audio context already open")

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
	otoUsed bool
	otoMu   sync.Mutex
)

// PlayerConfig describes the playback device.
type PlayerConfig struct {
	SampleRate int
	Channels   int
	// BlockFrames is the render granularity of the stream.
	BlockFrames int
	// BufferSize is the device buffer; zero lets the backend choose.
	BufferSize time.Duration
	Logger     *slog.Logger
}

// Player streams a Renderer to the default audio output.
type Player struct {
	stream *Stream
	player *oto.Player
	logger *slog.Logger
}

// Open starts playback of r. It waits for the device to become ready or for
// ctx to be done.
func Open(ctx context.Context, r Renderer, cfg PlayerConfig) (*Player, error) {
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stream, err := NewStream(r, cfg.Channels, cfg.BlockFrames)
	if err != nil {
		return nil, err
	}

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoUsed {
		return nil, ErrAlreadyOpen
	}
	var ready chan struct{}
	otoOnce.Do(func() {
		otoRate = cfg.SampleRate
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   cfg.BufferSize,
		})
	})
	if otoErr != nil {
		return nil, fmt.Errorf("device: cannot create audio context: %w", otoErr)
	}
	if otoRate != cfg.SampleRate {
		return nil, fmt.Errorf("device: audio context runs at %d Hz, not %d Hz", otoRate, cfg.SampleRate)
	}
	if ready != nil {
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p := &Player{
		stream: stream,
		player: otoCtx.NewPlayer(stream),
		logger: logger,
	}
	p.player.Play()
	otoUsed = true
	logger.Info("playback started",
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Int("channels", cfg.Channels))
	return p, nil
}

// Frames returns the number of frames handed to the device.
func (p *Player) Frames() int64 { return p.stream.Frames() }

// Err reports a playback error raised by the backend.
func (p *Player) Err() error { return p.player.Err() }

// Close stops playback and reports any backend error. The audio context
// stays alive for the process; a later Open reuses it.
func (p *Player) Close() error {
	p.player.Pause()
	err := p.player.Err()

	otoMu.Lock()
	otoUsed = false
	otoMu.Unlock()

	p.logger.Info("playback stopped", slog.Int64("frames", p.stream.Frames()))
	if err != nil {
		return fmt.Errorf("device: playback failed: %w", err)
	}
	return nil
}
