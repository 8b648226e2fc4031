// Package transcode shells out to ffmpeg for the final re-encode.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrTranscodeFailed is returned when ffmpeg exits non-zero or cannot run.
var ErrTranscodeFailed = errors.New("transcode failed")

// FFmpeg converts the raw MJPG intermediate into an H.264 mp4 with the
// moov atom up front so browsers can start playback while downloading.
type FFmpeg struct {
	bin string
}

func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

func (f *FFmpeg) Transcode(ctx context.Context, rawPath string) (string, error) {
	outPath := strings.TrimSuffix(rawPath, ".avi") + ".mp4"

	cmd := exec.CommandContext(ctx, f.bin,
		"-y",
		"-i", rawPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-an",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %v: %s", ErrTranscodeFailed, err, stderrTail(stderr.String()))
	}
	return outPath, nil
}

// stderrTail keeps the last few lines; ffmpeg puts the actual error at
// the end of a long banner.
func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, " | ")
}
