package media

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestDoctor_MissingBinaries(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDoctor("/nonexistent/ffmpeg", "/nonexistent/ffprobe", logger)

	caps := d.Get(context.Background())
	if caps.FFmpeg {
		t.Error("FFmpeg = true for nonexistent binary")
	}
	if caps.FFprobe {
		t.Error("FFprobe = true for nonexistent binary")
	}
	if caps.ProbedAt.IsZero() {
		t.Error("ProbedAt not stamped")
	}
}

func TestDoctor_CachesResult(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDoctor("/nonexistent/ffmpeg", "/nonexistent/ffprobe", logger)

	first := d.Get(context.Background())
	second := d.Get(context.Background())
	if first != second {
		t.Error("expected cached capabilities pointer on second Get")
	}

	refreshed := d.Refresh(context.Background())
	if refreshed == first {
		t.Error("Refresh returned the stale cache entry")
	}
}

func TestDoctor_RefreshAfterTTL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDoctor("/nonexistent/ffmpeg", "/nonexistent/ffprobe", logger)
	d.ttl = time.Nanosecond

	first := d.Get(context.Background())
	time.Sleep(time.Millisecond)
	second := d.Get(context.Background())
	if first == second {
		t.Error("expected re-probe after TTL expiry")
	}
}
