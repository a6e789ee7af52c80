package agent

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fpang/pizero-camera/internal/analysis"
	"github.com/fpang/pizero-camera/internal/camera"
	"github.com/fpang/pizero-camera/internal/enroll"
	"github.com/fpang/pizero-camera/internal/metrics"
	"github.com/fpang/pizero-camera/internal/transport"
	"github.com/fpang/pizero-camera/internal/vision"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// sizedSource returns captures of the queued sizes, then repeats the last.
type sizedSource struct {
	mu    sync.Mutex
	sizes []int
	calls int
	err   error
}

func (s *sizedSource) Capture(context.Context) (camera.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return camera.Image{}, s.err
	}
	n := s.sizes[0]
	if len(s.sizes) > 1 {
		s.sizes = s.sizes[1:]
	}
	return camera.Image{Data: make([]byte, n), CapturedAt: time.Now()}, nil
}

func (s *sizedSource) captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []int
	err     error
}

func (u *fakeUploader) UploadImage(_ context.Context, img camera.Image) (vision.ImageRef, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return vision.ImageRef{}, u.err
	}
	u.uploads = append(u.uploads, len(img.Data))
	return vision.ImageRef{Bucket: "bucket", Key: "pizero/image.jpg"}, nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, ref vision.ImageRef) (analysis.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return analysis.Report{}, f.err
	}
	return analysis.Report{Record: analysis.Record{Image: ref, Labels: []vision.Label{{Name: "Person"}}}}, nil
}

func (f *fakeAnalyzer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEnroller struct {
	names []string
	err   error
}

func (f *fakeEnroller) Enroll(_ context.Context, name string) (enroll.Result, error) {
	if f.err != nil {
		return enroll.Result{}, f.err
	}
	f.names = append(f.names, name)
	return enroll.Result{Name: enroll.Normalize(name)}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []transport.Event
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, ev transport.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type fixture struct {
	agent    *Agent
	source   *sizedSource
	uploader *fakeUploader
	analyzer *fakeAnalyzer
	enroller *fakeEnroller
	notifier *recordingNotifier
}

func newFixture(sizes ...int) *fixture {
	f := &fixture{
		source:   &sizedSource{sizes: sizes},
		uploader: &fakeUploader{},
		analyzer: &fakeAnalyzer{},
		enroller: &fakeEnroller{},
		notifier: &recordingNotifier{},
	}
	f.agent = New(Config{Interval: time.Millisecond, Threshold: 0.005}, camera.NewState(),
		f.source, f.uploader, f.analyzer, f.enroller, f.notifier)
	return f
}

func (f *fixture) tick(t *testing.T) bool {
	t.Helper()
	triggered, err := f.agent.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return triggered
}

// --- Poll Tests ---

func TestTick_DisabledDoesNothing(t *testing.T) {
	f := newFixture(1000)
	if f.tick(t) {
		t.Error("disabled agent must not trigger")
	}
	if f.source.captures() != 0 {
		t.Error("disabled agent must not capture")
	}
}

func TestTick_FirstSampleAfterEnableNeverTriggers(t *testing.T) {
	f := newFixture(1000, 50000)
	f.agent.Enable()

	if f.tick(t) {
		t.Error("first sample after enable must not trigger")
	}
	if _, last := f.agent.State().Snapshot(); last != 1000 {
		t.Errorf("expected baseline 1000, got %d", last)
	}
	if !f.tick(t) {
		t.Error("second sample with a large change should trigger")
	}
}

func TestTick_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		sizes   []int
		trigger bool
	}{
		{"20 percent growth", []int{1000, 1200}, true},
		{"below threshold", []int{1000, 1004}, false},
		{"exactly threshold", []int{1000, 1005}, false},
		{"just above threshold", []int{1000, 1006}, true},
		{"shrink", []int{1000, 900}, true},
		{"identical", []int{1000, 1000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.sizes...)
			f.agent.Enable()
			f.tick(t)
			if got := f.tick(t); got != tt.trigger {
				t.Errorf("triggered = %v, want %v", got, tt.trigger)
			}
			want := 0
			if tt.trigger {
				want = 1
			}
			if f.analyzer.count() != want || len(f.uploader.uploads) != want {
				t.Errorf("expected %d upload/analysis, got %d/%d", want, len(f.uploader.uploads), f.analyzer.count())
			}
		})
	}
}

func TestTick_EnableResetsBaseline(t *testing.T) {
	f := newFixture(1000, 1000, 5000)
	f.agent.Enable()
	f.tick(t)
	f.tick(t)

	f.agent.Disable()
	f.agent.Enable()
	if f.tick(t) {
		t.Error("re-enable must reset the baseline so the next sample does not trigger")
	}
}

func TestTick_FailureKeepsBaselineAndLoopContinues(t *testing.T) {
	f := newFixture(1000, 2000, 4000)
	f.analyzer.err = errors.New("vision unavailable")
	f.agent.Enable()
	f.tick(t)

	triggered, err := f.agent.Tick(context.Background())
	if !triggered || err == nil {
		t.Fatalf("expected triggered cycle to fail, got %v, %v", triggered, err)
	}
	if _, last := f.agent.State().Snapshot(); last != 2000 {
		t.Errorf("baseline should advance before analysis, got %d", last)
	}

	f.analyzer.err = nil
	if !f.tick(t) {
		t.Error("next cycle should proceed normally")
	}
}

func TestTick_CaptureError(t *testing.T) {
	f := newFixture(1000)
	f.source.err = errors.New("sensor busy")
	f.agent.Enable()
	if _, err := f.agent.Tick(context.Background()); err == nil {
		t.Error("expected capture error")
	}
}

// --- One-shot Tests ---

func TestUseOnce_WhileDisabled(t *testing.T) {
	f := newFixture(9000)
	if err := f.agent.UseOnce(context.Background()); err != nil {
		t.Fatalf("UseOnce: %v", err)
	}
	if f.analyzer.count() != 1 || len(f.uploader.uploads) != 1 || f.uploader.uploads[0] != 9000 {
		t.Fatalf("expected one-shot upload of 9000 bytes, got %v", f.uploader.uploads)
	}
	if active, last := f.agent.State().Snapshot(); active || last != 0 {
		t.Errorf("one-shot must not change state, got active=%v last=%d", active, last)
	}
}

func TestUseOnce_DoesNotMoveBaseline(t *testing.T) {
	f := newFixture(1000, 9000, 1002)
	f.agent.Enable()
	f.tick(t)

	if err := f.agent.UseOnce(context.Background()); err != nil {
		t.Fatalf("UseOnce: %v", err)
	}
	if _, last := f.agent.State().Snapshot(); last != 1000 {
		t.Errorf("baseline moved to %d", last)
	}
	if f.tick(t) {
		t.Error("1000 -> 1002 must not trigger; the one-shot size is not a baseline")
	}
	if f.analyzer.count() != 1 {
		t.Errorf("expected only the one-shot analysis, got %d", f.analyzer.count())
	}
}

func TestUseOnce_Errors(t *testing.T) {
	f := newFixture(1000)
	f.uploader.err = errors.New("s3 down")
	if err := f.agent.UseOnce(context.Background()); err == nil {
		t.Error("expected upload error")
	}
	if f.analyzer.count() != 0 {
		t.Error("analysis must not run after a failed upload")
	}
}

// --- Command Action Tests ---

func TestEnableDisable_PublishEvents(t *testing.T) {
	f := newFixture(1000)
	f.agent.Enable()
	f.agent.Disable()

	if len(f.notifier.events) != 2 {
		t.Fatalf("expected two events, got %d", len(f.notifier.events))
	}
	for i, want := range []bool{true, false} {
		ev := f.notifier.events[i]
		if ev.Event != transport.EventCamera || ev.Active == nil || *ev.Active != want {
			t.Errorf("event %d = %+v, want active=%v", i, ev, want)
		}
	}
}

func TestEnroll(t *testing.T) {
	f := newFixture(1000)
	if err := f.agent.Enroll(context.Background(), "alice"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if len(f.enroller.names) != 1 || f.enroller.names[0] != "alice" {
		t.Errorf("unexpected enroll calls %v", f.enroller.names)
	}
	last := f.notifier.events[len(f.notifier.events)-1]
	if last.Event != transport.EventIndexed || last.Name != "Alice" {
		t.Errorf("unexpected event %+v", last)
	}

	f.enroller.err = enroll.ErrEmptyName
	if err := f.agent.Enroll(context.Background(), ""); !errors.Is(err, enroll.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestNotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(1000)
	f.notifier.err = errors.New("offline")
	f.agent.Enable()
	if err := f.agent.UseOnce(context.Background()); err != nil {
		t.Errorf("notification failure must not fail the operation: %v", err)
	}
	if active, _ := f.agent.State().Snapshot(); !active {
		t.Error("enable must apply even when the event cannot be published")
	}
}

func TestNew_NilNotifier(t *testing.T) {
	a := New(Config{Threshold: -1}, camera.NewState(), &sizedSource{sizes: []int{1}}, &fakeUploader{}, &fakeAnalyzer{}, &fakeEnroller{}, nil)
	a.Enable()
	if a.cfg.Interval != 3*time.Second || a.cfg.Threshold != 0.005 {
		t.Errorf("unexpected defaults %+v", a.cfg)
	}
}

func TestTick_ZeroThresholdIsKept(t *testing.T) {
	f := newFixture(1000, 1001)
	f.agent = New(Config{Interval: time.Millisecond, Threshold: 0}, camera.NewState(),
		f.source, f.uploader, f.analyzer, f.enroller, f.notifier)
	if f.agent.cfg.Threshold != 0 {
		t.Fatalf("threshold 0 replaced by %v", f.agent.cfg.Threshold)
	}
	f.agent.Enable()
	f.tick(t)
	if !f.tick(t) {
		t.Error("with threshold 0 any size change must trigger")
	}
}

// --- Run Tests ---

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(1000, 1000, 2000)
	f.agent.Enable()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.agent.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for f.analyzer.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("poll loop never triggered analysis")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
