package engine

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// Cutter executes a single sub-job: one invocation of the external
// processing engine producing exactly one output file.
type Cutter interface {
	// Cut extracts [start, start+duration) from inputPath into outputPath.
	// A duration <= 0 means "through the end of the input".
	Cut(ctx context.Context, inputPath, outputPath string, start, duration float64) error
}

// FFmpegCutter cuts at container level with stream copy, so no re-encoding
// happens. Cut points therefore snap to keyframes, which is acceptable for
// the editor's trim/split semantics.
type FFmpegCutter struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFmpegCutter creates an FFmpegCutter. An empty bin means "ffmpeg"
// resolved from PATH at invocation time.
func NewFFmpegCutter(bin string, timeout time.Duration, logger *slog.Logger) *FFmpegCutter {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegCutter{bin: bin, timeout: timeout, logger: logger}
}

func (c *FFmpegCutter) Cut(ctx context.Context, inputPath, outputPath string, start, duration float64) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", inputPath,
	}
	if duration > 0 {
		args = append(args, "-t", formatSeconds(duration))
	}
	args = append(args, "-c", "copy", outputPath)

	begin := time.Now()
	cmd := exec.CommandContext(ctx, c.bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("executing ffmpeg cut",
		"input", inputPath,
		"output", outputPath,
		"start", start,
		"cut_duration", duration,
	)

	if err := cmd.Run(); err != nil {
		reason := truncate(stderr.String(), maxStderrBytes)
		if reason == "" {
			reason = err.Error()
		}
		c.logger.Warn("ffmpeg cut failed",
			"output", outputPath,
			"duration_ms", time.Since(begin).Milliseconds(),
			"error", reason,
		)
		return &ProcessingError{Phase: "ffmpeg", Reason: reason, Err: err}
	}

	c.logger.Info("ffmpeg cut succeeded",
		"output", outputPath,
		"duration_ms", time.Since(begin).Milliseconds(),
	)
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
