package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vrewcraft/backend/internal/media"
	"github.com/vrewcraft/backend/internal/progress"
	"github.com/vrewcraft/backend/internal/store"
)

type cutCall struct {
	output   string
	start    float64
	duration float64
}

// fakeCutter records invocations and writes the output file unless the
// output name matches failOn or skipWrite is set.
type fakeCutter struct {
	mu        sync.Mutex
	calls     []cutCall
	failOn    string
	skipWrite bool
}

func (c *fakeCutter) Cut(ctx context.Context, inputPath, outputPath string, start, duration float64) error {
	c.mu.Lock()
	c.calls = append(c.calls, cutCall{output: outputPath, start: start, duration: duration})
	c.mu.Unlock()

	if c.failOn != "" && strings.Contains(outputPath, c.failOn) {
		return &ProcessingError{Phase: "ffmpeg", Reason: "exit status 1"}
	}
	if c.skipWrite {
		return nil
	}
	return os.WriteFile(outputPath, []byte("cut"), 0644)
}

func (c *fakeCutter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeProber struct {
	meta *media.Metadata
	err  error
}

func (p *fakeProber) Probe(ctx context.Context, path string) (*media.Metadata, error) {
	return p.meta, p.err
}

// recordingPublisher captures every emitted event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingPublisher) Emit(ev progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) all() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}

type testRig struct {
	engine *Engine
	store  *store.Store
	cutter *fakeCutter
	events *recordingPublisher
	input  string
}

func newTestRig(t *testing.T, cutter *fakeCutter, prober media.Prober) *testRig {
	t.Helper()

	st, err := store.New(t.TempDir(), "/videos")
	if err != nil {
		t.Fatal(err)
	}
	mf, err := st.Save(strings.NewReader("source video"), "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}

	events := &recordingPublisher{}
	eng := New(Config{
		Store:          st,
		Prober:         prober,
		Cutter:         cutter,
		Hub:            events,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatRetryDelay: time.Millisecond,
	})

	return &testRig{engine: eng, store: st, cutter: cutter, events: events, input: mf.Filename}
}

func TestTrim_Valid(t *testing.T) {
	rig := newTestRig(t, &fakeCutter{}, &fakeProber{})

	result, err := rig.engine.Submit(context.Background(), Request{
		Kind: KindTrim, Input: rig.input, Start: 2, Duration: 4,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if len(result.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(result.Files))
	}
	f := result.Files[0]
	if !strings.HasPrefix(f.URL, "/videos/") {
		t.Errorf("URL = %q, want /videos/ prefix", f.URL)
	}
	if f.Duration != 4 {
		t.Errorf("Duration = %v, want 4", f.Duration)
	}

	call := rig.cutter.calls[0]
	if call.start != 2 || call.duration != 4 {
		t.Errorf("cut window = (%v, %v), want (2, 4)", call.start, call.duration)
	}

	assertTerminal(t, rig.events.all(), progress.EventComplete)
}

func TestTrim_EndTimeResolvesWindow(t *testing.T) {
	rig := newTestRig(t, &fakeCutter{}, &fakeProber{})

	result, err := rig.engine.Submit(context.Background(), Request{
		Kind: KindTrim, Input: rig.input, Start: 2, End: 6,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Files[0].Duration != 4 {
		t.Errorf("Duration = %v, want 4", result.Files[0].Duration)
	}
}

func TestTrim_InvalidWindow(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"no duration or end", Request{Kind: KindTrim, Start: 2}},
		{"negative duration", Request{Kind: KindTrim, Start: 2, Duration: -1}},
		{"end before start", Request{Kind: KindTrim, Start: 6, End: 2}},
		{"negative start", Request{Kind: KindTrim, Start: -1, Duration: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, &fakeCutter{}, &fakeProber{})
			tt.req.Input = rig.input

			_, err := rig.engine.Submit(context.Background(), tt.req)

			var invalid *InvalidOperationError
			if !errors.As(err, &invalid) {
				t.Fatalf("error = %v, want *InvalidOperationError", err)
			}
			if rig.cutter.callCount() != 0 {
				t.Error("sub-job spawned for an invalid request")
			}
			if len(rig.events.all()) != 0 {
				t.Error("events emitted for an invalid request")
			}
		})
	}
}

func TestTrim_MissingInput(t *testing.T) {
	rig := newTestRig(t, &fakeCutter{}, &fakeProber{})

	_, err := rig.engine.Submit(context.Background(), Request{
		Kind: KindTrim, Input: "ghost.mp4", Start: 0, Duration: 4,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSplit_Valid(t *testing.T) {
	rig := newTestRig(t, &fakeCutter{}, &fakeProber{meta: &media.Metadata{Duration: 10}})

	result, err := rig.engine.Submit(context.Background(), Request{
		Kind: KindSplit, Input: rig.input, SplitPoint: 6,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if len(result.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(result.Files))
	}
	if !strings.Contains(result.Files[0].Filename, "split-part1") {
		t.Errorf("files[0] = %q, want part 1 first", result.Files[0].Filename)
	}
	if !strings.Contains(result.Files[1].Filename, "split-part2") {
		t.Errorf("files[1] = %q, want part 2 second", result.Files[1].Filename)
	}
	if result.Files[0].Duration != 6 || result.Files[1].Duration != 4 {
		t.Errorf("durations = (%v, %v), want (6, 4)",
			result.Files[0].Duration, result.Files[1].Duration)
	}

	assertTerminal(t, rig.events.all(), progress.EventComplete)
}

// barrierCutter blocks every Cut until two sub-jobs have arrived, so the
// test deadlocks unless both engine invocations are issued before either
// is awaited.
type barrierCutter struct {
	fakeCutter
	barrier sync.WaitGroup
}

func (c *barrierCutter) Cut(ctx context.Context, inputPath, outputPath string, start, duration float64) error {
	c.barrier.Done()
	c.barrier.Wait()
	return c.fakeCutter.Cut(ctx, inputPath, outputPath, start, duration)
}

func TestSplit_SubJobsOverlap(t *testing.T) {
	cutter := &barrierCutter{}
	cutter.barrier.Add(2)

	st, err := store.New(t.TempDir(), "/videos")
	if err != nil {
		t.Fatal(err)
	}
	mf, err := st.Save(strings.NewReader("source video"), "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	eng := New(Config{
		Store:  st,
		Prober: &fakeProber{meta: &media.Metadata{Duration: 10}},
		Cutter: cutter,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	done := make(chan error, 1)
	go func() {
		_, err := eng.Submit(context.Background(), Request{Kind: KindSplit, Input: mf.Filename, SplitPoint: 6})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("split sub-jobs did not run concurrently")
	}
}

func TestSplit_InvalidSplitPoint(t *testing.T) {
	tests := []struct {
		name  string
		point float64
	}{
		{"at total duration", 10},
		{"beyond total duration", 12},
		{"zero", 0},
		{"negative", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, &fakeCutter{}, &fakeProber{meta: &media.Metadata{Duration: 10}})

			_, err := rig.engine.Submit(context.Background(), Request{
				Kind: KindSplit, Input: rig.input, SplitPoint: tt.point,
			})

			var invalid *InvalidOperationError
			if !errors.As(err, &invalid) {
				t.Fatalf("error = %v, want *InvalidOperationError", err)
			}
			if rig.cutter.callCount() != 0 {
				t.Error("sub-job spawned for an invalid split point")
			}
			if len(rig.events.all()) != 0 {
				t.Error("events emitted for an invalid split point")
			}
		})
	}
}

func TestSplit_PartialFailureFailsWhole(t *testing.T) {
	rig := newTestRig(t, &fakeCutter{failOn: "split-part2"}, &fakeProber{meta: &media.Metadata{Duration: 10}})

	result, err := rig.engine.Submit(context.Background(), Request{
		Kind: KindSplit, Input: rig.input, SplitPoint: 6,
	})
	if err == nil {
		t.Fatal("Submit() should fail when one sub-job fails")
	}
	if result != nil {
		t.Errorf("partial result returned as success: %+v", result)
	}

	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Errorf("error = %v, want *ProcessingError", err)
	}

	assertTerminal(t, rig.events.all(), progress.EventError)
}

func TestTrim_MissingOutputIsProcessingError(t *testing.T) {
	rig := newTestRig(t, &fakeCutter{skipWrite: true}, &fakeProber{})

	_, err := rig.engine.Submit(context.Background(), Request{
		Kind: KindTrim, Input: rig.input, Start: 0, Duration: 4,
	})

	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("error = %v, want *ProcessingError", err)
	}
	if procErr.Phase != "finalize" {
		t.Errorf("phase = %q, want finalize", procErr.Phase)
	}

	assertTerminal(t, rig.events.all(), progress.EventError)
}

func TestSubmit_UnknownKind(t *testing.T) {
	rig := newTestRig(t, &fakeCutter{}, &fakeProber{})

	_, err := rig.engine.Submit(context.Background(), Request{Kind: "transmogrify", Input: rig.input})

	var invalid *InvalidOperationError
	if !errors.As(err, &invalid) {
		t.Errorf("error = %v, want *InvalidOperationError", err)
	}
}

// assertTerminal checks that exactly one terminal event was emitted and
// that it is the last event in the sequence.
func assertTerminal(t *testing.T, events []progress.Event, want progress.EventType) {
	t.Helper()

	if len(events) == 0 {
		t.Fatal("no events emitted")
	}

	terminals := 0
	for _, ev := range events {
		if ev.Type == progress.EventComplete || ev.Type == progress.EventError {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal events = %d, want exactly 1", terminals)
	}
	if last := events[len(events)-1].Type; last != want {
		t.Errorf("last event = %q, want %q", last, want)
	}
}
