package media

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const toolCheckTTL = 5 * time.Minute

// Capabilities reports which external media tools are usable. ProbedAt
// stamps when the probe ran so stale results can be refreshed.
type Capabilities struct {
	FFmpeg        bool      `json:"ffmpeg"`
	FFprobe       bool      `json:"ffprobe"`
	FFmpegVersion string    `json:"ffmpeg_version,omitempty"`
	ProbedAt      time.Time `json:"-"`
}

// Doctor probes for the ffmpeg and ffprobe binaries and caches the result.
// The health endpoint hits this on every request, so results are reused
// for a TTL instead of spawning subprocesses each time.
type Doctor struct {
	ffmpegBin  string
	ffprobeBin string
	ttl        time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewDoctor creates a tool checker. Empty binary paths mean PATH lookup.
func NewDoctor(ffmpegBin, ffprobeBin string, logger *slog.Logger) *Doctor {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Doctor{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		ttl:        toolCheckTTL,
		logger:     logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) *Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (d *Doctor) Refresh(ctx context.Context) *Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{ProbedAt: time.Now()}

	if version, ok := toolVersion(ctx, d.ffmpegBin); ok {
		caps.FFmpeg = true
		caps.FFmpegVersion = version
	} else {
		d.logger.Warn("ffmpeg not available", "bin", d.ffmpegBin)
	}

	if _, ok := toolVersion(ctx, d.ffprobeBin); ok {
		caps.FFprobe = true
	} else {
		d.logger.Warn("ffprobe not available", "bin", d.ffprobeBin)
	}

	d.cached = caps
	return caps
}

// toolVersion runs "<bin> -version" and extracts the version token from the
// first output line, e.g. "ffmpeg version 6.1.1" yields "6.1.1".
func toolVersion(ctx context.Context, bin string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "-version").Output()
	if err != nil {
		return "", false
	}

	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1], true
		}
	}
	return "", true
}
