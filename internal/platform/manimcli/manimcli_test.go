package manimcli

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/render"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

func fakeManim(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script renderer")
	}
	path := filepath.Join(t.TempDir(), "manim")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func drain(t *testing.T, ch <-chan render.Event) []render.Event {
	t.Helper()
	var out []render.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("engine channel never closed")
		}
	}
}

func job(t *testing.T, phase render.Phase) render.Job {
	return render.Job{
		RunID:      uuid.New(),
		Attempt:    1,
		Source:     "class GenScene(Scene):\n    def construct(self):\n        pass\n",
		EntryPoint: "GenScene",
		Phase:      phase,
		Preset:     render.PresetFor(phase, "16:9", render.TierLow),
		WorkDir:    filepath.Join(t.TempDir(), "work"),
	}
}

func TestArgs(t *testing.T) {
	j := render.Job{EntryPoint: "GenScene", Preset: render.PresetFor(render.PhasePreview, "1:1", render.TierHigh)}
	args := Args(j, "/tmp/media")
	assert.Equal(t, []string{"scene.py", "GenScene", "--format=png", "-ql", "--media_dir", "/tmp/media",
		"--custom_folders", "--disable_caching", "-r", "720,720", "--fps", "10"}, args)

	j.Preset = render.PresetFor(render.PhaseExport, "16:9", render.TierLow)
	args = Args(j, "m")
	assert.Contains(t, args, "--format=mp4")
	assert.Contains(t, args, "-qh")
}

func TestParseProgress(t *testing.T) {
	step, pct, ok := ParseProgress("Animation 3: Transform(Text)  42%|####")
	assert.True(t, ok)
	assert.Equal(t, 3, step)
	assert.Equal(t, 42, pct)

	step, pct, ok = ParseProgress("57%")
	assert.True(t, ok)
	assert.Equal(t, -1, step)
	assert.Equal(t, 57, pct)

	_, _, ok = ParseProgress("INFO File ready")
	assert.False(t, ok)
}

func TestRenderVideoSucceeds(t *testing.T) {
	bin := fakeManim(t, `
printf 'Animation 0: Write  10%%\rAnimation 0: Write  80%%\n'
echo 'Animation 1: FadeIn 100%'
mkdir -p "$6/videos"
echo video > "$6/videos/GenScene.mp4"
`)
	e := New(logger.Nop(), Config{ManimBin: bin})
	j := job(t, render.PhaseRender)
	ch, err := e.Render(context.Background(), j)
	require.NoError(t, err)
	events := drain(t, ch)
	require.NotEmpty(t, events)

	var progress []render.Progress
	for _, ev := range events[:len(events)-1] {
		if p, ok := ev.(render.Progress); ok {
			progress = append(progress, p)
		}
	}
	require.Len(t, progress, 3)
	assert.Equal(t, 0, progress[0].Step)
	assert.Equal(t, 10, progress[0].Percent)
	assert.Equal(t, 1, progress[2].Step)

	last, ok := events[len(events)-1].(render.Succeeded)
	require.True(t, ok, "terminal %T", events[len(events)-1])
	assert.True(t, strings.HasSuffix(last.ArtifactPath, "GenScene.mp4"))

	scene, err := os.ReadFile(filepath.Join(j.WorkDir, "scene.py"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(scene), "from manim import config\nconfig.frame_size = (1280, 720)"))
	assert.Contains(t, string(scene), "class GenScene(Scene)")
}

func TestRenderPreviewFramesSampled(t *testing.T) {
	bin := fakeManim(t, `
mkdir -p "$6/images"
i=0
while [ $i -lt 12 ]; do
  echo x > "$6/images/GenScene$i.png"
  i=$((i+1))
done
`)
	e := New(logger.Nop(), Config{ManimBin: bin})
	ch, err := e.Render(context.Background(), job(t, render.PhasePreview))
	require.NoError(t, err)
	events := drain(t, ch)
	last, ok := events[len(events)-1].(render.Succeeded)
	require.True(t, ok)
	require.Len(t, last.FramePaths, 3)
	assert.True(t, strings.HasSuffix(last.FramePaths[0], "GenScene0.png"))
	assert.True(t, strings.HasSuffix(last.FramePaths[1], "GenScene4.png"))
	assert.True(t, strings.HasSuffix(last.FramePaths[2], "GenScene8.png"))
}

func TestRenderFailureCarriesTail(t *testing.T) {
	bin := fakeManim(t, `
echo 'Traceback (most recent call last):' >&2
echo 'KeyError: population' >&2
exit 1
`)
	e := New(logger.Nop(), Config{ManimBin: bin})
	ch, err := e.Render(context.Background(), job(t, render.PhaseRender))
	require.NoError(t, err)
	events := drain(t, ch)
	f, ok := events[len(events)-1].(render.Failed)
	require.True(t, ok)
	assert.Contains(t, f.Raw, "KeyError: population")
	assert.Equal(t, render.MissingDataColumn, render.Classify(f.Raw))
}

func TestRenderNoOutputFails(t *testing.T) {
	bin := fakeManim(t, "exit 0\n")
	e := New(logger.Nop(), Config{ManimBin: bin})
	ch, err := e.Render(context.Background(), job(t, render.PhaseRender))
	require.NoError(t, err)
	events := drain(t, ch)
	_, ok := events[len(events)-1].(render.Failed)
	assert.True(t, ok)
}

func TestRenderCancelEndsWithOneTerminalEvent(t *testing.T) {
	bin := fakeManim(t, "exec sleep 30\n")
	e := New(logger.Nop(), Config{ManimBin: bin, WaitDelay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	j := job(t, render.PhaseRender)
	j.HeartbeatInterval = 20 * time.Millisecond
	ch, err := e.Render(ctx, j)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	cancel()
	events := drain(t, ch)

	terminals := 0
	beats := 0
	for _, ev := range events {
		if render.Terminal(ev) {
			terminals++
		}
		if _, ok := ev.(render.Heartbeat); ok {
			beats++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, render.Terminal(events[len(events)-1]))
	assert.Positive(t, beats)
}

func TestRenderRequiresWorkDir(t *testing.T) {
	e := New(nil, Config{})
	_, err := e.Render(context.Background(), render.Job{})
	assert.Error(t, err)
}

func TestCollectFramesOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"f10.png", "f2.png", "f1.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
	frames, err := CollectFrames(dir, 1, 2)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "f1.png", filepath.Base(frames[0]))
	assert.Equal(t, "f2.png", filepath.Base(frames[1]))
}
