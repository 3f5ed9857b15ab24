package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseOptions() Options {
	return Options{
		OutputDir:      "/tmp/rec",
		BaseName:       "flight",
		SegmentSeconds: 60,
		PreviewWidth:   640,
		PreviewHeight:  360,
		PreviewFPS:     10,
	}
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}

func TestArgsSources(t *testing.T) {
	tests := []struct {
		name string
		sdp  string
		url  string
		want []string
	}{
		{"sdp", "cam.sdp", "", []string{"-protocol_whitelist", "file,rtp,udp", "-i", "cam.sdp"}},
		{"rtsp", "", "rtsp://10.0.0.2/live", []string{"-rtsp_transport", "tcp", "-i", "rtsp://10.0.0.2/live"}},
		{"udp", "", "udp://@:5600", []string{"-i", "udp://@:5600"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := baseOptions()
			o.SDPPath, o.URL = tc.sdp, tc.url
			args, err := Args(o)
			require.NoError(t, err)
			i := indexOf(args, tc.want[0])
			require.GreaterOrEqual(t, i, 0, args)
			assert.Equal(t, tc.want, args[i:i+len(tc.want)])
		})
	}
}

func TestArgsRecordingOnly(t *testing.T) {
	o := baseOptions()
	o.URL = "udp://@:5600"
	args, err := Args(o)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/tmp/rec", "flight_%Y%m%d_%H%M%S.mkv"), args[len(args)-1])
	assert.Equal(t, -1, indexOf(args, "pipe:1"))
	assert.Equal(t, "60", args[indexOf(args, "-segment_time")+1])
	assert.Equal(t, "copy", args[indexOf(args, "-c")+1])
}

func TestArgsPreview(t *testing.T) {
	o := baseOptions()
	o.SDPPath = "cam.sdp"
	o.Preview = true
	args, err := Args(o)
	require.NoError(t, err)

	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Equal(t, PixelFormat, args[indexOf(args, "-pix_fmt")+1])
	vf := args[indexOf(args, "-vf")+1]
	assert.True(t, strings.HasPrefix(vf, "fps=10,scale=640:360"), vf)
	assert.Contains(t, vf, "pad=640:360")
	// the recording output comes before the preview output
	assert.Less(t, indexOf(args, "-segment_time"), indexOf(args, "-pix_fmt"))
}

func TestArgsErrors(t *testing.T) {
	o := baseOptions()
	_, err := Args(o)
	require.Error(t, err)

	o.SDPPath, o.URL = "a.sdp", "rtsp://x"
	_, err = Args(o)
	require.Error(t, err)

	o = baseOptions()
	o.URL = "rtsp://x"
	o.SegmentSeconds = 0
	_, err = Args(o)
	require.Error(t, err)

	o = baseOptions()
	o.URL = "rtsp://x"
	o.Preview = true
	o.PreviewFPS = 0
	_, err = Args(o)
	require.Error(t, err)
}

func fakeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return p
}

func TestFindFFmpeg(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	explicit := fakeBinary(t, dir, "my-ffmpeg")

	got, err := FindFFmpeg(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	_, err = FindFFmpeg(filepath.Join(dir, "missing"))
	require.Error(t, err)

	plain := filepath.Join(dir, "not-exec")
	require.NoError(t, os.WriteFile(plain, nil, 0o644))
	_, err = FindFFmpeg(plain)
	require.Error(t, err)

	pathDir := t.TempDir()
	onPath := fakeBinary(t, pathDir, "ffmpeg")
	t.Setenv("PATH", pathDir)
	got, err = FindFFmpeg("")
	require.NoError(t, err)
	assert.Equal(t, onPath, got)
}

func TestProcessFrames(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	p := NewProcess("/bin/sh", []string{"-c", "printf abcdef; echo oops >&2"}, true, time.Second)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	data, err := io.ReadAll(p.Frames())
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	require.NoError(t, p.Wait())
	require.NoError(t, p.Wait())
	select {
	case <-p.Exited():
	default:
		t.Fatal("exited not closed")
	}
}

func TestProcessNoPreview(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	p := NewProcess("/bin/sh", []string{"-c", "exit 3"}, false, time.Second)
	require.Error(t, p.Wait(), "not started")
	require.NoError(t, p.Start(context.Background()))
	assert.Nil(t, p.Frames())
	require.Error(t, p.Wait())
	require.Error(t, p.Start(context.Background()), "already started")
}

func TestProcessStop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	p := NewProcess("/bin/sh", []string{"-c", "exec sleep 30"}, true, 500*time.Millisecond)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	start := time.Now()
	require.NoError(t, p.Stop())
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Error(t, p.Wait(), "terminated by signal")
	require.NoError(t, p.Stop())

	// reader sees EOF once the child is gone
	_, err := io.ReadAll(p.Frames())
	require.NoError(t, err)
}

func TestProcessStartFailure(t *testing.T) {
	p := NewProcess(filepath.Join(t.TempDir(), "nope"), nil, true, time.Second)
	require.Error(t, p.Start(context.Background()))
	assert.Nil(t, p.Frames())
	require.NoError(t, p.Stop())
}
