package ffmpegcli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// tailLimit is how much ffmpeg stderr is kept on failure.
const tailLimit = 2000

type Config struct {
	FFmpegBin string
	Timeout   time.Duration
	// WaitDelay bounds how long output pipes may outlive a killed ffmpeg.
	WaitDelay time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		FFmpegBin: envutil.String("FFMPEG_BIN", "ffmpeg"),
		Timeout:   envutil.Seconds("EXPORT_MERGE_TIMEOUT_SECONDS", 10*time.Minute),
		WaitDelay: 5 * time.Second,
	}
}

// Runner concatenates finished videos with the ffmpeg CLI.
type Runner struct {
	log *logger.Logger
	cfg Config
}

func New(log *logger.Logger, cfg Config) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 5 * time.Second
	}
	return &Runner{log: log.With("service", "FFmpegCLI"), cfg: cfg}
}

func (r *Runner) AssertReady(context.Context) error {
	if _, err := exec.LookPath(r.cfg.FFmpegBin); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", r.cfg.FFmpegBin, err)
	}
	return nil
}

// Args is the ffmpeg command line joining inputs, in order, into out. The concat filter
// re-encodes, so inputs may differ in resolution or codec parameters.
func Args(inputs []string, out string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	return append(args,
		"-filter_complex", "concat=n="+strconv.Itoa(len(inputs))+":v=1:a=0 [v]",
		"-map", "[v]",
		"-movflags", "+faststart",
		out,
	)
}

func (r *Runner) Concat(ctx context.Context, inputs []string, out string) error {
	if len(inputs) < 2 {
		return errors.New("concat needs at least two inputs")
	}
	if strings.TrimSpace(out) == "" {
		return errors.New("concat needs an output path")
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.FFmpegBin, Args(inputs, out)...)
	cmd.WaitDelay = r.cfg.WaitDelay
	var stderr tailBuffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", r.cfg.Timeout)
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, tail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	r.log.Debug("videos merged", "inputs", len(inputs), "elapsed", time.Since(start).String())
	return nil
}

type tailBuffer struct {
	mu sync.Mutex
	b  []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b = append(t.b, p...)
	if over := len(t.b) - tailLimit; over > 0 {
		t.b = append(t.b[:0], t.b[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.b)
}
