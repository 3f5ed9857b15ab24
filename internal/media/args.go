package media

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PixelFormat is the raw preview layout written to stdout, 3 bytes per pixel.
const PixelFormat = "rgb24"

type Options struct {
	SDPPath string
	URL     string

	OutputDir      string
	BaseName       string
	SegmentSeconds int

	Preview       bool
	PreviewWidth  int
	PreviewHeight int
	PreviewFPS    int
}

// SegmentPattern is the strftime output template handed to the segment muxer.
func (o Options) SegmentPattern() string {
	return filepath.Join(o.OutputDir, o.BaseName+"_%Y%m%d_%H%M%S.mkv")
}

// PreviewFilter scales to the preview size, letterboxing to keep the aspect ratio.
func (o Options) PreviewFilter() string {
	w, h := o.PreviewWidth, o.PreviewHeight
	return fmt.Sprintf("fps=%d,scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		o.PreviewFPS, w, h, w, h)
}

// Args builds the ffmpeg argument list, without the program name.
func Args(o Options) ([]string, error) {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "warning"}

	sdp, url := strings.TrimSpace(o.SDPPath), strings.TrimSpace(o.URL)
	switch {
	case sdp != "" && url != "":
		return nil, errors.New("both sdp and url set")
	case sdp != "":
		args = append(args, "-protocol_whitelist", "file,rtp,udp", "-i", sdp)
	case strings.HasPrefix(strings.ToLower(url), "rtsp://"):
		args = append(args, "-rtsp_transport", "tcp", "-i", url)
	case url != "":
		args = append(args, "-i", url)
	default:
		return nil, errors.New("no source")
	}

	if o.SegmentSeconds <= 0 {
		return nil, errors.Errorf("invalid segment length %d", o.SegmentSeconds)
	}
	args = append(args,
		"-map", "0:v:0",
		"-c", "copy",
		"-f", "segment",
		"-segment_time", strconv.Itoa(o.SegmentSeconds),
		"-reset_timestamps", "1",
		"-strftime", "1",
		o.SegmentPattern(),
	)

	if o.Preview {
		if o.PreviewWidth <= 0 || o.PreviewHeight <= 0 || o.PreviewFPS <= 0 {
			return nil, errors.Errorf("invalid preview %dx%d@%d", o.PreviewWidth, o.PreviewHeight, o.PreviewFPS)
		}
		args = append(args,
			"-map", "0:v:0",
			"-vf", o.PreviewFilter(),
			"-f", "rawvideo",
			"-pix_fmt", PixelFormat,
			"pipe:1",
		)
	}
	return args, nil
}

// FindFFmpeg resolves the ffmpeg binary: explicit path, then PATH, then next to the executable.
func FindFFmpeg(explicit string) (string, error) {
	if explicit != "" {
		if isExecutable(explicit) {
			return explicit, nil
		}
		return "", errors.Errorf("ffmpeg %q is not an executable file", explicit)
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	self, err := os.Executable()
	if err == nil {
		dir := filepath.Dir(self)
		for _, name := range []string{"ffmpeg", "ffmpeg.exe"} {
			if cand := filepath.Join(dir, name); isExecutable(cand) {
				return cand, nil
			}
		}
	}
	return "", errors.New("ffmpeg not found in PATH or next to the executable")
}

func isExecutable(path string) bool {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return st.Mode().Perm()&0o111 != 0
}
