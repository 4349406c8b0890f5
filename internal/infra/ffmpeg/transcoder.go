package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// StickerSize is the edge length of converted images
const StickerSize = 512

// Runner executes ffmpeg with the given arguments
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command as a subprocess. The last stderr line is
// folded into the error.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = msg[i+1:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}

// Transcoder wraps the ffmpeg binary
type Transcoder struct {
	binary string
	run    Runner
	log    *slog.Logger
}

// NewTranscoder creates a transcoder. run may be nil to use ExecRunner.
func NewTranscoder(binary string, run Runner) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Transcoder{binary: binary, run: run, log: logger.Component("ffmpeg")}
}

// OutputPath returns where the converted file for in is written
func OutputPath(in string, target domain.Format, dir string) string {
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(dir, stem+"."+string(target))
}

// BuildArgs returns the ffmpeg arguments converting in to out
func BuildArgs(in, out string, target domain.Format, bitrate string) ([]string, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", in}

	withBitrate := func(codec string) []string {
		a := []string{"-vn", "-c:a", codec}
		if bitrate != "" {
			a = append(a, "-b:a", bitrate)
		}
		return a
	}

	switch target {
	case domain.FormatMP3:
		args = append(args, withBitrate("libmp3lame")...)
	case domain.FormatOGG:
		args = append(args, withBitrate("libvorbis")...)
	case domain.FormatOpus:
		args = append(args, withBitrate("libopus")...)
	case domain.FormatM4A:
		args = append(args, withBitrate("aac")...)
	case domain.FormatWAV:
		args = append(args, "-vn", "-c:a", "pcm_s16le")
	case domain.FormatFLAC:
		args = append(args, "-vn", "-c:a", "flac")
	case domain.FormatMP4:
		args = append(args, "-c:v", "libx264", "-c:a", "aac", "-movflags", "+faststart")
	case domain.FormatWebP:
		scale := fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=0x00000000",
			StickerSize, StickerSize, StickerSize, StickerSize)
		args = append(args, "-vf", scale, "-frames:v", "1", "-c:v", "libwebp", "-quality", "80")
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, target)
	}
	return append(args, out), nil
}

// Transcode converts the file at inPath to target inside dir and returns the
// output path
func (t *Transcoder) Transcode(ctx context.Context, inPath string, target domain.Format, bitrate, dir string) (string, error) {
	out := OutputPath(inPath, target, dir)
	if out == inPath {
		return "", fmt.Errorf("transcode %s: output would overwrite input", filepath.Base(inPath))
	}
	args, err := BuildArgs(inPath, out, target, bitrate)
	if err != nil {
		return "", err
	}
	if err := t.run(ctx, t.binary, args...); err != nil {
		return "", fmt.Errorf("transcode %s -> %s: %w", filepath.Base(inPath), target, err)
	}
	t.log.Debug("transcode finished", logger.FieldPath, out)
	return out, nil
}
