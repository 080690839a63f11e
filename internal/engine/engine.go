// Package engine orchestrates video edit operations. It validates requests,
// drives ffmpeg sub-jobs as concurrent units of work, registers derived
// artifacts with the content store, and reports lifecycle events through
// the progress hub. An operation moves Created -> Running -> Succeeded or
// Failed; the terminal state is always the last event observed for its id.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vrewcraft/backend/internal/journal"
	"github.com/vrewcraft/backend/internal/logging"
	"github.com/vrewcraft/backend/internal/media"
	"github.com/vrewcraft/backend/internal/progress"
	"github.com/vrewcraft/backend/internal/store"
)

// Kind discriminates the supported edit operations.
type Kind string

const (
	KindTrim  Kind = "trim"
	KindSplit Kind = "split"
)

// Request describes one edit operation over a file registered in the
// content store. For trim, Duration and End are mutually exclusive ways to
// express the window; exactly the effective duration must resolve to a
// positive value.
type Request struct {
	Kind       Kind    `json:"kind"`
	Input      string  `json:"input"`
	Start      float64 `json:"start,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	End        float64 `json:"end,omitempty"`
	SplitPoint float64 `json:"splitPoint,omitempty"`
}

// Result is the ordered sequence of produced artifacts: one file for trim,
// part-1-then-part-2 for split.
type Result struct {
	OperationID string            `json:"operationId"`
	Operation   Kind              `json:"operation"`
	Files       []store.MediaFile `json:"files"`
}

// Config wires the engine's collaborators. Hub and Journal may be nil; the
// engine then runs without progress delivery or persistence.
type Config struct {
	Store   *store.Store
	Prober  media.Prober
	Cutter  Cutter
	Hub     progress.Publisher
	Journal journal.Repository
	Logger  *slog.Logger

	// StatRetryDelay is how long to wait before the single retry of the
	// post-exit output stat. Zero selects the default.
	StatRetryDelay time.Duration
}

const defaultStatRetryDelay = 100 * time.Millisecond

// Engine executes operations synchronously from the caller's perspective;
// progress events are the only channel for interim visibility.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.StatRetryDelay <= 0 {
		cfg.StatRetryDelay = defaultStatRetryDelay
	}
	return &Engine{cfg: cfg}
}

// Submit runs one operation to completion and returns its artifacts, or a
// structured error describing phase and reason. Nothing is retried
// automatically; callers may resubmit. Cancelling ctx kills any in-flight
// sub-process.
func (e *Engine) Submit(ctx context.Context, req Request) (*Result, error) {
	switch req.Kind {
	case KindTrim:
		return e.trim(ctx, req)
	case KindSplit:
		return e.split(ctx, req)
	default:
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("unknown operation kind %q", req.Kind)}
	}
}

func (e *Engine) trim(ctx context.Context, req Request) (*Result, error) {
	duration := req.Duration
	if req.End > 0 {
		duration = req.End - req.Start
	}
	if req.Start < 0 {
		return nil, &InvalidOperationError{Reason: "start time must not be negative"}
	}
	if duration <= 0 {
		return nil, &InvalidOperationError{Reason: "duration or end time must resolve to a positive window"}
	}
	if _, err := e.cfg.Store.Stat(req.Input); err != nil {
		return nil, err
	}

	opID := uuid.NewString()
	logger := logging.WithOperationID(e.cfg.Logger, opID)
	logger.Info("trim operation dispatched", "input", req.Input, "start", req.Start, "window", duration)

	e.begin(ctx, opID, req)
	e.emitProgress(opID, KindTrim, 0, "starting trim")

	output := e.cfg.Store.ReserveName("trim", filepath.Ext(req.Input))
	err := e.cfg.Cutter.Cut(ctx, e.cfg.Store.Path(req.Input), e.cfg.Store.Path(output), req.Start, duration)
	if err != nil {
		return nil, e.fail(ctx, opID, logger, err)
	}

	mf, err := e.finalize(output, duration)
	if err != nil {
		return nil, e.fail(ctx, opID, logger, err)
	}

	result := &Result{OperationID: opID, Operation: KindTrim, Files: []store.MediaFile{*mf}}
	e.succeed(ctx, opID, logger, result)
	return result, nil
}

func (e *Engine) split(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.cfg.Store.Stat(req.Input); err != nil {
		return nil, err
	}

	meta, err := e.cfg.Prober.Probe(ctx, e.cfg.Store.Path(req.Input))
	if err != nil {
		return nil, err
	}
	if req.SplitPoint <= 0 || req.SplitPoint >= meta.Duration {
		return nil, &InvalidOperationError{
			Reason: fmt.Sprintf("split point %.3f outside (0, %.3f)", req.SplitPoint, meta.Duration),
		}
	}

	opID := uuid.NewString()
	logger := logging.WithOperationID(e.cfg.Logger, opID)
	logger.Info("split operation dispatched", "input", req.Input, "split_point", req.SplitPoint, "total", meta.Duration)

	e.begin(ctx, opID, req)
	e.emitProgress(opID, KindSplit, 0, "starting split")

	ext := filepath.Ext(req.Input)
	names := [2]string{
		e.cfg.Store.ReserveName("split-part1", ext),
		e.cfg.Store.ReserveName("split-part2", ext),
	}
	starts := [2]float64{0, req.SplitPoint}
	// Part 2 runs to the end of the input; its reported duration is the
	// remainder.
	cutDurations := [2]float64{req.SplitPoint, 0}
	durations := [2]float64{req.SplitPoint, meta.Duration - req.SplitPoint}

	inputPath := e.cfg.Store.Path(req.Input)
	var files [2]*store.MediaFile
	var completed atomic.Int32

	// Both sub-jobs are issued before either is awaited; they have no
	// ordering dependency.
	g, gctx := errgroup.WithContext(ctx)
	for i := range names {
		g.Go(func() error {
			if err := e.cfg.Cutter.Cut(gctx, inputPath, e.cfg.Store.Path(names[i]), starts[i], cutDurations[i]); err != nil {
				return err
			}
			mf, err := e.finalize(names[i], durations[i])
			if err != nil {
				return err
			}
			files[i] = mf
			pct := float64(completed.Add(1)) * 50
			e.emitProgress(opID, KindSplit, pct, fmt.Sprintf("part %d complete", i+1))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// The successful sibling's file is now orphaned; no compensating
		// deletion happens, so surface the condition in the logs.
		for _, mf := range files {
			if mf != nil {
				logger.Warn("orphaned artifact from partial split failure", "filename", mf.Filename)
			}
		}
		return nil, e.fail(ctx, opID, logger, err)
	}

	result := &Result{
		OperationID: opID,
		Operation:   KindSplit,
		Files:       []store.MediaFile{*files[0], *files[1]},
	}
	e.succeed(ctx, opID, logger, result)
	return result, nil
}

// finalize resolves a sub-job's output to a MediaFile. A stat miss right
// after process exit is retried exactly once after a short delay; if the
// file still is not there the sub-job's reported success is a lie and the
// operation fails.
func (e *Engine) finalize(filename string, duration float64) (*store.MediaFile, error) {
	mf, err := e.cfg.Store.Resolve(filename)
	if errors.Is(err, store.ErrNotFound) {
		time.Sleep(e.cfg.StatRetryDelay)
		mf, err = e.cfg.Store.Resolve(filename)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ProcessingError{
				Phase:  "finalize",
				Reason: fmt.Sprintf("sub-job reported success but %s was never written", filename),
				Err:    err,
			}
		}
		return nil, err
	}
	mf.Duration = duration
	return mf, nil
}

func (e *Engine) begin(ctx context.Context, opID string, req Request) {
	if e.cfg.Journal == nil {
		return
	}
	now := time.Now().UTC()
	op := &journal.Operation{
		ID:        opID,
		Kind:      string(req.Kind),
		Input:     req.Input,
		Status:    journal.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.cfg.Journal.Create(ctx, op); err != nil {
		e.cfg.Logger.Error("failed to journal operation start", "operation_id", opID, "error", err)
	}
}

func (e *Engine) succeed(ctx context.Context, opID string, logger *slog.Logger, result *Result) {
	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.MarkSucceeded(ctx, opID, result.Files); err != nil {
			logger.Error("failed to journal operation success", "error", err)
		}
	}
	e.emitProgress(opID, result.Operation, 100, "operation complete")
	e.emit(progress.Event{Type: progress.EventComplete, Data: result})
	logger.Info("operation succeeded", "files", len(result.Files))
}

func (e *Engine) fail(ctx context.Context, opID string, logger *slog.Logger, err error) error {
	if e.cfg.Journal != nil {
		if jerr := e.cfg.Journal.MarkFailed(ctx, opID, err.Error()); jerr != nil {
			logger.Error("failed to journal operation failure", "error", jerr)
		}
	}
	e.emit(progress.Event{
		Type: progress.EventError,
		Data: progress.ErrorPayload{OperationID: opID, Message: err.Error()},
	})
	logger.Warn("operation failed", "error", err)
	return err
}

func (e *Engine) emitProgress(opID string, kind Kind, pct float64, message string) {
	e.emit(progress.Event{
		Type: progress.EventProgress,
		Data: progress.ProgressPayload{
			OperationID: opID,
			Operation:   string(kind),
			Progress:    pct,
			Message:     message,
		},
	})
}

func (e *Engine) emit(ev progress.Event) {
	if e.cfg.Hub != nil {
		e.cfg.Hub.Emit(ev)
	}
}
