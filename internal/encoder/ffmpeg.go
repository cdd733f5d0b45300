package encoder

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

// FFmpeg implements render.Encoder by shelling out to an ffmpeg
// binary. All encoder-specific flags live here; the capture core only
// hands over a frame pattern, an fps and an output path.
type FFmpeg struct {
	bin    string
	logger *zap.Logger
}

func NewFFmpeg(bin string, logger *zap.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin, logger: logger}
}

// Encode assembles the ordered frame sequence into the requested
// container. The frame pattern is printf-style (frame_%04d.png).
func (e *FFmpeg) Encode(ctx context.Context, framePattern string, fps int, outputPath string, opts model.RenderOptions) error {
	args := []string{
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", framePattern,
	}

	switch opts.Format {
	case model.FormatGIF:
		args = append(args,
			"-vf", "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse",
			"-loop", "0",
		)
	case model.FormatMP4:
		args = append(args,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-crf", x264CRF(opts.Quality),
			"-movflags", "+faststart",
		)
	case model.FormatWebM:
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-b:v", "0",
			"-crf", vp9CRF(opts.Quality),
		)
	default:
		return fmt.Errorf("unsupported output format %q", opts.Format)
	}
	args = append(args, outputPath)

	e.logger.Debug("running ffmpeg", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, e.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(string(out), 400))
	}
	return nil
}

func x264CRF(q model.QualityPreset) string {
	switch q {
	case model.QualityLow:
		return "32"
	case model.QualityHigh:
		return "18"
	default:
		return "23"
	}
}

func vp9CRF(q model.QualityPreset) string {
	switch q {
	case model.QualityLow:
		return "45"
	case model.QualityHigh:
		return "24"
	default:
		return "33"
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
