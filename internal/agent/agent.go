// Package agent drives the camera: a periodic poll loop that gates analysis
// on scene change, plus the one-shot operations triggered by commands.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/pizero-camera/internal/analysis"
	"github.com/fpang/pizero-camera/internal/camera"
	"github.com/fpang/pizero-camera/internal/change"
	"github.com/fpang/pizero-camera/internal/enroll"
	"github.com/fpang/pizero-camera/internal/metrics"
	"github.com/fpang/pizero-camera/internal/transport"
	"github.com/fpang/pizero-camera/internal/vision"
)

// Uploader stores a capture and returns where it went.
type Uploader interface {
	UploadImage(ctx context.Context, img camera.Image) (vision.ImageRef, error)
}

// Analyzer runs the analysis cascade for an uploaded capture.
type Analyzer interface {
	Analyze(ctx context.Context, ref vision.ImageRef) (analysis.Report, error)
}

// Enroller registers a named face from a fresh capture.
type Enroller interface {
	Enroll(ctx context.Context, name string) (enroll.Result, error)
}

// Notifier publishes status events. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, ev transport.Event) error
}

// Config holds the poll loop parameters. A zero Threshold triggers on any
// size change; only a negative one falls back to change.DefaultThreshold.
type Config struct {
	Interval  time.Duration
	Threshold float64
}

// Agent owns the monitoring state and the collaborators of every cycle.
type Agent struct {
	cfg      Config
	state    *camera.State
	source   camera.Source
	uploader Uploader
	analyzer Analyzer
	enroller Enroller
	notifier Notifier
}

// New creates an Agent. source must be shared with the enroller so captures
// never overlap; notifier may be nil.
func New(cfg Config, state *camera.State, source camera.Source, uploader Uploader, analyzer Analyzer, enroller Enroller, notifier Notifier) *Agent {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = change.DefaultThreshold
	}
	return &Agent{
		cfg:      cfg,
		state:    state,
		source:   source,
		uploader: uploader,
		analyzer: analyzer,
		enroller: enroller,
		notifier: notifier,
	}
}

// Run polls every interval until ctx is cancelled. A failing cycle is logged
// and the next tick proceeds normally.
func (a *Agent) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", a.cfg.Interval).
		Float64("threshold", a.cfg.Threshold).
		Msg("Poll loop started")

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poll loop stopped")
			return nil
		case <-ticker.C:
			if _, err := a.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("Capture cycle failed")
			}
		}
	}
}

// Tick runs one periodic cycle and reports whether analysis was triggered.
// It does nothing while monitoring is disabled.
func (a *Agent) Tick(ctx context.Context) (bool, error) {
	if !a.state.Active() {
		return false, nil
	}
	logger := cycleLogger("poll")
	rec := metrics.New(metrics.Namespace).Dimension("Mode", "poll")
	defer rec.Flush()

	img, err := a.source.Capture(ctx)
	if err != nil {
		rec.Count("Failed")
		return false, fmt.Errorf("capture: %w", err)
	}
	size := img.Size()
	m := change.Detect(a.state.Observe(size), size)
	triggered := change.Triggered(m, a.cfg.Threshold, false)

	rec.Metric("CaptureBytes", float64(size), metrics.UnitBytes).
		Metric("ChangeRatio", m.Ratio, metrics.UnitNone).
		Metric("Triggered", boolMetric(triggered), metrics.UnitCount)
	logger.Debug().
		Uint64("previousSize", m.PreviousSize).
		Uint64("currentSize", m.CurrentSize).
		Float64("ratio", m.Ratio).
		Bool("triggered", triggered).
		Msg("Change checked")
	if !triggered {
		return false, nil
	}

	logger.Info().Float64("ratio", m.Ratio).Msg("Change detected")
	return true, a.process(ctx, logger, rec, img)
}

// UseOnce captures and analyzes regardless of the monitoring state. The
// change baseline is not touched.
func (a *Agent) UseOnce(ctx context.Context) error {
	logger := cycleLogger("once")
	rec := metrics.New(metrics.Namespace).Dimension("Mode", "once")
	defer rec.Flush()

	img, err := a.source.Capture(ctx)
	if err != nil {
		rec.Count("Failed")
		return fmt.Errorf("capture: %w", err)
	}
	rec.Metric("CaptureBytes", float64(img.Size()), metrics.UnitBytes)
	return a.process(ctx, logger, rec, img)
}

// process uploads a triggered capture and runs the analysis cascade.
func (a *Agent) process(ctx context.Context, logger zerolog.Logger, rec *metrics.Recorder, img camera.Image) error {
	if md, err := camera.Describe(img); err == nil {
		logger.Debug().Str("make", md.Make).Str("model", md.Model).Time("taken", md.Taken).Msg("Capture metadata")
	}

	ref, err := a.uploader.UploadImage(ctx, img)
	if err != nil {
		rec.Count("Failed")
		return fmt.Errorf("upload: %w", err)
	}
	logger.Info().Str("bucket", ref.Bucket).Str("key", ref.Key).Msg("Image uploaded")

	start := time.Now()
	rep, err := a.analyzer.Analyze(ctx, ref)
	rec.Duration("AnalysisMs", time.Since(start))
	if err != nil {
		rec.Count("Failed")
		return fmt.Errorf("analyze %s: %w", ref.Key, err)
	}
	rec.Property("key", ref.Key)
	a.notify(ctx, transport.SeenEvent(rep.Record))
	return nil
}

// Enable turns monitoring on. The next periodic capture only sets a baseline.
func (a *Agent) Enable() {
	a.state.Enable()
	a.notify(context.Background(), transport.CameraEvent(true))
}

// Disable turns monitoring off.
func (a *Agent) Disable() {
	a.state.Disable()
	a.notify(context.Background(), transport.CameraEvent(false))
}

// Enroll registers the current view under name.
func (a *Agent) Enroll(ctx context.Context, name string) error {
	res, err := a.enroller.Enroll(ctx, name)
	if err != nil {
		return err
	}
	a.notify(ctx, transport.IndexedEvent(res))
	return nil
}

// State exposes the monitoring state.
func (a *Agent) State() *camera.State {
	return a.state
}

func (a *Agent) notify(ctx context.Context, ev transport.Event) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", ev.Event).Msg("Failed to publish event")
	}
}

func cycleLogger(mode string) zerolog.Logger {
	return log.With().Str("cycle", uuid.NewString()).Str("mode", mode).Logger()
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
