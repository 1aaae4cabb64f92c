package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// FFmpegConverter converts compressed voice codecs (OGG/OPUS voice notes)
// into MP3 by shelling out to ffmpeg.
type FFmpegConverter struct {
	binary  string
	timeout time.Duration
}

// NewFFmpegConverter creates a converter using the given ffmpeg binary.
// An empty binary defaults to "ffmpeg" on PATH.
func NewFFmpegConverter(binary string, timeout time.Duration) *FFmpegConverter {
	if binary == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFmpegConverter{binary: binary, timeout: timeout}
}

// Convert transcodes the file at path to MP3 and returns the output path.
// A tool failure or timeout surfaces as ErrConversionFailed; a partial
// output artifact is removed before returning.
func (c *FFmpegConverter) Convert(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return "", fmt.Errorf("%w: %s not found", ErrConversionFailed, c.binary)
	}

	out := strings.TrimSuffix(path, fileExt(path)) + ".mp3"

	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.binary,
		"-i", path,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-y", out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		if execCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: timed out after %s", ErrConversionFailed, c.timeout)
		}
		return "", fmt.Errorf("%w: %v: %s", ErrConversionFailed, err, firstLine(stderr.String()))
	}
	return out, nil
}

func fileExt(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && !strings.Contains(path[i:], "/") {
		return path[i:]
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
