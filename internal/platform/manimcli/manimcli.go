package manimcli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// tailLimit is how much renderer output is kept for failure classification.
const tailLimit = 2000

type Config struct {
	ManimBin  string
	PythonBin string
	WorkRoot  string
	// WaitDelay bounds how long output pipes may outlive a killed renderer.
	WaitDelay time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		ManimBin:  envutil.String("MANIM_BIN", "manim"),
		PythonBin: envutil.String("PYTHON_BIN", "python3"),
		WorkRoot:  envutil.String("RENDER_WORK_ROOT", filepath.Join(os.TempDir(), "chartmotion-render")),
		WaitDelay: 5 * time.Second,
	}
}

// Engine runs scenes through the manim CLI. It implements render.Engine and
// codegen.SyntaxChecker.
type Engine struct {
	log *logger.Logger
	cfg Config
}

func New(log *logger.Logger, cfg Config) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ManimBin == "" {
		cfg.ManimBin = "manim"
	}
	if cfg.PythonBin == "" {
		cfg.PythonBin = "python3"
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 5 * time.Second
	}
	return &Engine{log: log.With("service", "ManimCLI"), cfg: cfg}
}

// AssertReady checks both binaries are on PATH and the work root is writable.
func (e *Engine) AssertReady(ctx context.Context) error {
	for _, bin := range []string{e.cfg.ManimBin, e.cfg.PythonBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if e.cfg.WorkRoot != "" {
		if err := os.MkdirAll(e.cfg.WorkRoot, 0o755); err != nil {
			return fmt.Errorf("create workRoot: %w", err)
		}
	}
	return nil
}

const syntaxScript = `import ast, sys
src = sys.stdin.read()
try:
    ast.parse(src)
except SyntaxError as e:
    print("SyntaxError: %s (line %s)" % (e.msg, e.lineno), file=sys.stderr)
    sys.exit(1)
`

// CheckSyntax parses source with python's ast module without executing it.
func (e *Engine) CheckSyntax(ctx context.Context, source string) error {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 20*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, e.cfg.PythonBin, "-c", syntaxScript)
	cmd.Stdin = strings.NewReader(source)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) && stderr.Len() > 0 {
			return errors.New(strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("syntax check failed: %w", err)
	}
	return nil
}

func qualityFlag(t render.Tier) string {
	switch t {
	case render.TierHigh:
		return "-qh"
	case render.TierMedium:
		return "-qm"
	default:
		return "-ql"
	}
}

func prelude(p render.Preset) string {
	return fmt.Sprintf("from manim import config\nconfig.frame_size = (%d, %d)\nconfig.frame_width = %.2f\nconfig.frame_rate = %d\n\n",
		p.Width, p.Height, p.FrameWidth, p.FPS)
}

// Args is the manim command line for a job whose scene file is scene.py in workDir.
func Args(job render.Job, mediaDir string) []string {
	format := "mp4"
	if job.Preset.Frames {
		format = "png"
	}
	entry := job.EntryPoint
	if entry == "" {
		entry = "GenScene"
	}
	return []string{
		"scene.py", entry,
		"--format=" + format,
		qualityFlag(job.Preset.Tier),
		"--media_dir", mediaDir,
		"--custom_folders",
		"--disable_caching",
		"-r", fmt.Sprintf("%d,%d", job.Preset.Width, job.Preset.Height),
		"--fps", strconv.Itoa(job.Preset.FPS),
	}
}

// Render starts manim and streams its events. The returned channel always ends with one
// terminal event.
func (e *Engine) Render(ctx context.Context, job render.Job) (<-chan render.Event, error) {
	if strings.TrimSpace(job.WorkDir) == "" {
		return nil, errors.New("render job needs a work dir")
	}
	mediaDir := filepath.Join(job.WorkDir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir work dir: %w", err)
	}
	scene := filepath.Join(job.WorkDir, "scene.py")
	if err := os.WriteFile(scene, []byte(prelude(job.Preset)+job.Source), 0o644); err != nil {
		return nil, fmt.Errorf("write scene: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.cfg.ManimBin, Args(job, mediaDir)...)
	cmd.Dir = job.WorkDir
	cmd.WaitDelay = e.cfg.WaitDelay
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, fmt.Errorf("start %s: %w", e.cfg.ManimBin, err)
	}

	out := make(chan render.Event, 16)
	start := time.Now()
	log := e.log.With("run_id", job.RunID.String(), "phase", string(job.Phase), "attempt", job.Attempt)
	log.Debug("renderer started", "pid", cmd.Process.Pid)

	var tail tailBuffer
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		scanOutput(ctx, pr, job.Phase, &tail, out)
	}()

	if job.HeartbeatInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(job.HeartbeatInterval)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case now := <-t.C:
					select {
					case out <- render.Heartbeat{At: now.UTC(), Elapsed: now.Sub(start)}:
					case <-done:
						return
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		waitErr := cmd.Wait()
		_ = pw.Close()
		close(done)
		wg.Wait()
		out <- e.terminal(ctx, job, mediaDir, waitErr, tail.String(), log)
		close(out)
	}()
	return out, nil
}

func (e *Engine) terminal(ctx context.Context, job render.Job, mediaDir string, waitErr error, tail string, log *logger.Logger) render.Event {
	if ctx.Err() != nil {
		return render.Failed{Phase: job.Phase, Raw: "render interrupted: " + context.Cause(ctx).Error()}
	}
	if waitErr != nil {
		log.Warn("renderer exited with error", "error", waitErr)
		raw := strings.TrimSpace(tail)
		if raw == "" {
			raw = waitErr.Error()
		}
		return render.Failed{Phase: job.Phase, Raw: raw}
	}
	if job.Preset.Frames {
		frames, err := CollectFrames(mediaDir, job.Preset.SampleEvery, job.Preset.MaxFrames)
		if err != nil || len(frames) == 0 {
			return render.Failed{Phase: job.Phase, Raw: "renderer produced no frames" + errSuffix(err)}
		}
		return render.Succeeded{Phase: job.Phase, FramePaths: frames}
	}
	video, err := newestWithExt(mediaDir, ".mp4")
	if err != nil {
		return render.Failed{Phase: job.Phase, Raw: "renderer produced no video" + errSuffix(err)}
	}
	return render.Succeeded{Phase: job.Phase, ArtifactPath: video}
}

func errSuffix(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}

var (
	animationRe = regexp.MustCompile(`Animation\s+(\d+)`)
	percentRe   = regexp.MustCompile(`(\d{1,3})%`)
)

// scanLines splits on \n or \r so progress bars redrawn in place yield one line each.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ParseProgress extracts the animation index and percent from one output line.
func ParseProgress(line string) (step, percent int, ok bool) {
	step, percent = -1, -1
	if m := animationRe.FindStringSubmatch(line); m != nil {
		step, _ = strconv.Atoi(m[1])
		ok = true
	}
	if m := percentRe.FindStringSubmatch(line); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil && p <= 100 {
			percent = p
			ok = true
		}
	}
	return step, percent, ok
}

func scanOutput(ctx context.Context, r io.Reader, phase render.Phase, tail *tailBuffer, out chan<- render.Event) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(scanLines)
	lastStep, lastPct := -1, -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		tail.Write(line)
		step, pct, ok := ParseProgress(line)
		if !ok {
			continue
		}
		if step < 0 {
			step = lastStep
		}
		if step == lastStep && pct == lastPct {
			continue
		}
		lastStep, lastPct = step, pct
		select {
		case out <- render.Progress{Phase: phase, Step: step, Percent: pct, Message: render.CapMessage(line)}:
		case <-ctx.Done():
		}
	}
	// Drain so the renderer never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

type tailBuffer struct {
	mu sync.Mutex
	b  []byte
}

func (t *tailBuffer) Write(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b = append(t.b, line...)
	t.b = append(t.b, '\n')
	if over := len(t.b) - tailLimit; over > 0 {
		t.b = append(t.b[:0], t.b[over:]...)
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.b)
}

var frameIndexRe = regexp.MustCompile(`(\d+)\.png$`)

// CollectFrames finds rendered PNG frames under dir, orders them by trailing frame index
// and keeps every Nth frame up to max.
func CollectFrames(dir string, every, max int) ([]string, error) {
	var frames []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".png") {
			frames = append(frames, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	index := func(p string) int {
		if m := frameIndexRe.FindStringSubmatch(filepath.Base(p)); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
		return -1
	}
	sort.SliceStable(frames, func(i, j int) bool {
		a, b := index(frames[i]), index(frames[j])
		if a != b {
			return a < b
		}
		return frames[i] < frames[j]
	})
	if every < 1 {
		every = 1
	}
	var out []string
	for i := 0; i < len(frames); i += every {
		if max > 0 && len(out) >= max {
			break
		}
		out = append(out, frames[i])
	}
	return out, nil
}

func newestWithExt(dir, ext string) (string, error) {
	var best string
	var bestMod time.Time
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) || strings.Contains(path, "partial_movie_files") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if best == "" {
		return "", fmt.Errorf("no %s file under %s", ext, dir)
	}
	return best, nil
}
