package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Default video rendition settings
const (
	DefaultFFmpegBinary      = "ffmpeg"
	DefaultCRF               = 28
	DefaultPreset            = "fast"
	DefaultAudioBitrate      = "96k"
	DefaultTranscodeTimeout  = 5 * time.Minute
	TranscodedExt            = ".mp4"
	TranscodedContentType    = "video/mp4"
	maxLoggedTranscodeOutput = 2048
)

// ErrTranscodeFailed covers every way the external transcoder can fail
var ErrTranscodeFailed = errors.New("video transcode failed")

// VideoConfig controls the external transcoder invocation
type VideoConfig struct {
	Binary       string
	CRF          int
	Preset       string
	AudioBitrate string
	// Timeout bounds one invocation; zero disables the bound
	Timeout time.Duration
}

// DefaultVideoConfig returns ffmpeg with crf 28, preset fast, 96k audio and a 5 minute bound
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Binary:       DefaultFFmpegBinary,
		CRF:          DefaultCRF,
		Preset:       DefaultPreset,
		AudioBitrate: DefaultAudioBitrate,
		Timeout:      DefaultTranscodeTimeout,
	}
}

// Runner executes an external program and returns its combined output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// VideoTranscoder re-encodes videos to H.264/AAC MP4 through ffmpeg
type VideoTranscoder struct {
	cfg    VideoConfig
	runner Runner
	logger *slog.Logger
}

// NewVideoTranscoder creates a transcoder. A nil runner uses ExecRunner.
func NewVideoTranscoder(cfg VideoConfig, runner Runner, logger *slog.Logger) *VideoTranscoder {
	def := DefaultVideoConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.CRF <= 0 {
		cfg.CRF = def.CRF
	}
	if cfg.Preset == "" {
		cfg.Preset = def.Preset
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = def.AudioBitrate
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoTranscoder{cfg: cfg, runner: runner, logger: logger}
}

// Args returns the ffmpeg argument list for one conversion
func (t *VideoTranscoder) Args(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-c:v", "libx264",
		"-preset", t.cfg.Preset,
		"-crf", strconv.Itoa(t.cfg.CRF),
		"-c:a", "aac",
		"-b:a", t.cfg.AudioBitrate,
		"-movflags", "+faststart",
		out,
	}
}

// Transcode converts in to out. Any failure, including a missing binary,
// a crash, a non-zero exit or an empty output, is reported as ErrTranscodeFailed.
func (t *VideoTranscoder) Transcode(ctx context.Context, in, out string) error {
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := t.runner.Run(ctx, t.cfg.Binary, t.Args(in, out)...)
	if err != nil {
		t.logger.Warn("Video transcode failed",
			slog.String("input", in),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("output", truncate(output)),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.logger.Warn("Video transcode produced no output", slog.String("input", in))
		return fmt.Errorf("%w: empty output", ErrTranscodeFailed)
	}

	t.logger.Debug("Video transcoded",
		slog.String("input", in),
		slog.Int64("size", info.Size()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxLoggedTranscodeOutput {
		b = b[len(b)-maxLoggedTranscodeOutput:]
	}
	return string(b)
}

// Available reports whether the configured binary can be found
func (t *VideoTranscoder) Available() error {
	if _, err := exec.LookPath(t.cfg.Binary); err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	return nil
}
