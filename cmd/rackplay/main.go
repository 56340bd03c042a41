// Command rackplay loads a patch and plays it on the default audio device or
// renders it to a WAV file.
//
// Usage:
//
//	rackplay [flags] [patch.yaml]
//
// Without a patch file a built-in demo patch is played.
//
// Examples:
//
//	rackplay patch.yaml
//	rackplay -seconds 10 -wav out.wav patch.yaml
//	rackplay -rate 44100 -block 256 -pcm16 -wav out.wav
package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/algo-rack/device"
	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/modules"
	"github.com/cwbudde/algo-rack/preset"
)

//go:embed demo.yaml
var demoPatch []byte

type options struct {
	patch   string
	wav     string
	pcm16   bool
	seconds float64
	rate    int
	block   int
	seed    uint64
	verbose bool
}

func main() {
	var o options
	flag.StringVar(&o.wav, "wav", "", "render to this WAV file instead of the audio device")
	flag.BoolVar(&o.pcm16, "pcm16", false, "write 16-bit PCM instead of 32-bit float")
	flag.Float64Var(&o.seconds, "seconds", 0, "stop after this many seconds (0 plays until interrupted; WAV default is 8)")
	flag.IntVar(&o.rate, "rate", 48000, "sample rate in Hz")
	flag.IntVar(&o.block, "block", 512, "maximum block size in frames")
	flag.Uint64Var(&o.seed, "seed", 1, "seed for noise modules")
	flag.BoolVar(&o.verbose, "v", false, "log engine activity")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rackplay [flags] [patch.yaml]\n\n")
		fmt.Fprintf(os.Stderr, "Plays a rack patch. Without a patch the built-in demo is used.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}
	o.patch = flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	p, err := loadPatch(o.patch)
	if err != nil {
		return err
	}

	e, err := graph.New(
		graph.WithRegistry(modules.DefaultRegistry(modules.WithSeed(o.seed))),
		graph.WithLogger(logger),
		graph.WithConfig(core.WithSampleRate(float64(o.rate)), core.WithBlockSize(o.block)),
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Close(closeCtx); err != nil {
			logger.Warn("engine close failed", slog.Any("error", err))
		}
	}()

	if _, err := preset.Load(e, p); err != nil {
		return fmt.Errorf("load %q: %w", p.Name, err)
	}
	logger.Info("patch loaded", slog.String("name", p.Name), slog.Int("modules", len(p.Modules)))

	if o.wav != "" {
		return renderWAV(e, o)
	}
	return play(ctx, e, o, logger)
}

func loadPatch(path string) (*preset.Preset, error) {
	if path == "" {
		return preset.Decode(bytes.NewReader(demoPatch))
	}
	return preset.ReadFile(path)
}

func renderWAV(e *graph.Engine, o options) error {
	seconds := o.seconds
	if seconds <= 0 {
		seconds = 8
	}
	frames := int(seconds * float64(o.rate))
	planar := device.Capture(e, 2, frames)

	f, err := os.Create(o.wav)
	if err != nil {
		return err
	}
	if err := device.WriteWAV(f, o.rate, planar, o.pcm16); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func play(ctx context.Context, e *graph.Engine, o options, logger *slog.Logger) error {
	if o.seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.seconds*float64(time.Second)))
		defer cancel()
	}

	p, err := device.Open(ctx, e, device.PlayerConfig{
		SampleRate:  o.rate,
		Channels:    2,
		BlockFrames: o.block,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			err := p.Close()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			return errors.Join(err, ctx.Err())
		case <-ticker.C:
			e.Poll()
			if err := p.Err(); err != nil {
				_ = p.Close()
				return err
			}
			st := e.Stats()
			logger.Debug("engine",
				slog.Int64("frames", p.Frames()),
				slog.Duration("render", time.Duration(st.RenderNanos)),
				slog.Uint64("generation", st.Generation),
				slog.Uint64("faults", st.Faults),
				slog.Uint64("underruns", st.Underruns))
		}
	}
}
