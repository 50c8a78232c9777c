package ffmpegcli

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script ffmpeg")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestArgs(t *testing.T) {
	args := Args([]string{"a.mp4", "b.mp4", "c.mp4"}, "out.mp4")
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i a.mp4 -i b.mp4 -i c.mp4")
	assert.Contains(t, args, "concat=n=3:v=1:a=0 [v]")
	assert.Contains(t, joined, "-map [v] -movflags +faststart")
	assert.Equal(t, "out.mp4", args[len(args)-1])
	assert.Equal(t, "-y", args[0])
}

func TestConcatRunsBinary(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")
	// The last argument is the output path.
	bin := fakeFFmpeg(t, `for a; do last="$a"; done; printf merged > "$last"`)
	r := New(logger.Nop(), Config{FFmpegBin: bin})

	require.NoError(t, r.Concat(context.Background(), []string{"a.mp4", "b.mp4"}, out))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "merged", string(b))
}

func TestConcatKeepsStderrTail(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "a.mp4: Invalid data found when processing input" >&2; exit 1`)
	r := New(logger.Nop(), Config{FFmpegBin: bin})

	err := r.Concat(context.Background(), []string{"a.mp4", "b.mp4"}, filepath.Join(t.TempDir(), "out.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestConcatNeedsTwoInputs(t *testing.T) {
	r := New(nil, Config{})
	assert.Error(t, r.Concat(context.Background(), []string{"a.mp4"}, "out.mp4"))
}

func TestTailBufferKeepsEnd(t *testing.T) {
	var tb tailBuffer
	_, _ = tb.Write([]byte(strings.Repeat("x", tailLimit)))
	_, _ = tb.Write([]byte("end"))
	assert.Len(t, tb.String(), tailLimit)
	assert.True(t, strings.HasSuffix(tb.String(), "end"))
}
