package livestream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrSpawn indicates the transcoder process could not be started at all,
// which is fatal to a session.
var ErrSpawn = errors.New("transcoder spawn failed")

// Transcoder is the external encoding process bound to one session. It is
// fed raw media bytes and writes HLS artifacts to its output directory.
type Transcoder interface {
	Start(outputDir string) error
	Write(chunk []byte) error
	Close() error
	Kill()
	Done() <-chan struct{}
	Err() error
}

// FFmpegTranscoder supervises one ffmpeg process. The argument contract is
// fixed: low-latency x264, 25 fps with a 1-second GOP and scene detection
// disabled so keyframe cadence stays deterministic, AAC audio, HLS output
// with a 5-segment window of independent segments.
type FFmpegTranscoder struct {
	ffmpegPath string
	streamID   string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	done      chan struct{}
	closeOnce sync.Once
	exited    atomic.Bool
	dropped   atomic.Bool

	mu      sync.Mutex
	exitErr error
}

// NewFFmpegTranscoder creates an unstarted transcoder for streamID.
func NewFFmpegTranscoder(ffmpegPath, streamID string) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		ffmpegPath: ffmpegPath,
		streamID:   streamID,
		done:       make(chan struct{}),
	}
}

// CheckFFmpeg verifies that ffmpeg is installed and runnable.
func CheckFFmpeg(ffmpegPath string) error {
	cmd := exec.Command(ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	if !strings.Contains(string(output), "ffmpeg version") {
		return fmt.Errorf("ffmpeg not properly installed")
	}

	return nil
}

// Start spawns ffmpeg reading from a stdin pipe and writing playlist and
// segments into outputDir.
func (t *FFmpegTranscoder) Start(outputDir string) error {
	args := []string{
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-r", "25",
		"-g", "25",
		"-keyint_min", "25",
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", "1",
		"-hls_list_size", "5",
		"-hls_flags", "delete_segments+independent_segments",
		"-hls_segment_filename", filepath.Join(outputDir, "segment_%03d.ts"),
		filepath.Join(outputDir, "stream.m3u8"),
	}
	cmd := exec.Command(t.ffmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	t.cmd = cmd
	t.stdin = stdin

	go t.drainStderr(stderr)
	go func() {
		err := cmd.Wait()
		t.mu.Lock()
		t.exitErr = err
		t.mu.Unlock()
		t.exited.Store(true)
		close(t.done)
	}()

	return nil
}

// Write forwards a chunk of media bytes to ffmpeg's stdin. Writes after the
// process has exited are dropped with a single logged notice; the exit itself
// is surfaced through Done.
func (t *FFmpegTranscoder) Write(chunk []byte) error {
	if t.exited.Load() {
		t.warnDropped()
		return nil
	}
	if _, err := t.stdin.Write(chunk); err != nil {
		t.warnDropped()
	}
	return nil
}

func (t *FFmpegTranscoder) warnDropped() {
	if t.dropped.CompareAndSwap(false, true) {
		log.Printf("FFmpeg[%s]: dropping input, process no longer accepts writes", t.streamID)
	}
}

// Close signals end-of-input so ffmpeg can flush its trailing segments and
// exit. Safe to call more than once.
func (t *FFmpegTranscoder) Close() error {
	t.closeOnce.Do(func() {
		if t.stdin != nil {
			if err := t.stdin.Close(); err != nil {
				log.Printf("FFmpeg[%s]: closing stdin: %v", t.streamID, err)
			}
		}
	})
	return nil
}

// Kill forcibly terminates the process if it is still running.
func (t *FFmpegTranscoder) Kill() {
	if t.cmd == nil || t.cmd.Process == nil || t.exited.Load() {
		return
	}
	log.Printf("FFmpeg[%s]: killing process that outlived its drain grace", t.streamID)
	_ = t.cmd.Process.Kill()
}

// Done is closed once the process has exited.
func (t *FFmpegTranscoder) Done() <-chan struct{} {
	return t.done
}

// Err reports the process exit error, if any.
func (t *FFmpegTranscoder) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitErr
}

func (t *FFmpegTranscoder) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Printf("FFmpeg[%s]: %s", t.streamID, scanner.Text())
	}
}
