package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

const (
	micSampleRateHz   = 16000
	pcmBytesPerSample = 2
	// 200ms of 16kHz mono s16le
	micChunkBytes = micSampleRateHz * pcmBytesPerSample / 5
)

// openMicFunc starts a microphone stream of mono s16le PCM.
type openMicFunc func(ctx context.Context, sampleRate int) (io.ReadCloser, error)

// audioPlayer plays one encoded clip and blocks until it finishes or ctx ends.
type audioPlayer interface {
	Play(ctx context.Context, audio []byte, format string) error
}

// MicAvailable reports whether ffmpeg can be used for capture on this host.
func MicAvailable() bool {
	if _, err := micFFmpegArgs(runtime.GOOS, micSampleRateHz); err != nil {
		return false
	}
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// PlayerAvailable reports whether ffplay is installed.
func PlayerAvailable() bool {
	_, err := exec.LookPath("ffplay")
	return err == nil
}

type ffmpegMic struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
}

func openFFmpegMic(ctx context.Context, sampleRate int) (io.ReadCloser, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH", ErrCapabilityUnavailable)
	}
	args, err := micFFmpegArgs(runtime.GOOS, sampleRate)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	return &ffmpegMic{cmd: cmd, stdout: stdout}, nil
}

func micFFmpegArgs(goos string, sampleRate int) ([]string, error) {
	var input []string
	switch goos {
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", ":0"}
	case "linux":
		input = []string{"-f", "pulse", "-i", "default"}
	default:
		return nil, fmt.Errorf("%w: mic capture is not implemented for %s", ErrCapabilityUnavailable, goos)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	return append(args,
		"-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-f", "s16le", "-",
	), nil
}

func (m *ffmpegMic) Read(p []byte) (int, error) {
	return m.stdout.Read(p)
}

func (m *ffmpegMic) Close() error {
	m.once.Do(func() {
		if m.cmd.Process != nil {
			_ = m.cmd.Process.Kill()
			_ = m.cmd.Wait()
		}
	})
	return nil
}

// ffplayPlayer pipes one clip per process into ffplay.
type ffplayPlayer struct{}

func (ffplayPlayer) Play(ctx context.Context, audio []byte, format string) error {
	if len(audio) == 0 {
		return errors.New("empty audio clip")
	}
	args := []string{"-nodisp", "-autoexit", "-loglevel", "error"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, "-i", "pipe:0")

	cmd := exec.CommandContext(ctx, "ffplay", args...)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffplay: %w", err)
	}
	return nil
}
