// Package media extracts container metadata from media files by invoking
// ffprobe as a subprocess and parsing its JSON description of format and
// streams.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// Metadata is a derived, ephemeral read of a media file's container. It is
// recomputed on demand and never persisted. Width, height and codec are
// absent for audio-only containers.
type Metadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Codec    string  `json:"codec,omitempty"`
	Bitrate  int64   `json:"bitrate,omitempty"`
}

// ProbeError indicates the probing tool exited non-zero, the path does not
// exist, or the output could not be parsed.
type ProbeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Prober extracts metadata from a media file. One subprocess invocation per
// call; callers that need metadata repeatedly must cache it themselves.
type Prober interface {
	Probe(ctx context.Context, path string) (*Metadata, error)
}

// FFprobe is the production Prober backed by the ffprobe binary.
type FFprobe struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFprobe creates an FFprobe. An empty bin means "ffprobe" resolved from
// PATH at invocation time.
func NewFFprobe(bin string, timeout time.Duration, logger *slog.Logger) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{bin: bin, timeout: timeout, logger: logger}
}

// Probe runs ffprobe against path and parses its structured output.
func (f *FFprobe) Probe(ctx context.Context, path string) (*Metadata, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		reason := truncate(stderr.String(), maxStderrBytes)
		if reason == "" {
			reason = err.Error()
		}
		f.logger.Warn("ffprobe failed",
			"path", path,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", reason,
		)
		return nil, &ProbeError{Path: path, Reason: reason, Err: err}
	}

	meta, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, &ProbeError{Path: path, Reason: err.Error(), Err: err}
	}

	f.logger.Debug("probe complete",
		"path", path,
		"media_duration_s", meta.Duration,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return meta, nil
}

// probeOutput mirrors the subset of ffprobe's JSON the backend consumes.
// Numeric fields in the format section arrive as strings.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// parseProbeOutput converts ffprobe JSON into Metadata. The first stream of
// kind "video" supplies width/height/codec; its absence is not an error so
// audio-only containers still report duration.
func parseProbeOutput(data []byte) (*Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing duration %q: %w", out.Format.Duration, err)
	}

	meta := &Metadata{Duration: duration}

	if out.Format.BitRate != "" {
		if bitrate, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
			meta.Bitrate = bitrate
		}
	}

	for _, s := range out.Streams {
		if s.CodecType == "video" {
			meta.Width = s.Width
			meta.Height = s.Height
			meta.Codec = s.CodecName
			break
		}
	}

	return meta, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
