package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/imagescore"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const envPrefix = "HORIZON_"

// Config is the read-only startup configuration of one recording session.
type Config struct {
	// source, exactly one of these
	SDPPath string
	URL     string

	OutputDir      string
	BaseName       string
	SegmentSeconds int

	CameraPort int
	MastPort   int
	CameraPCAP string
	MastPCAP   string

	Preview       bool
	PreviewWidth  int
	PreviewHeight int
	PreviewFPS    int
	CameraHFOV    float64

	HorizonKernelSize             int
	HorizonElongationThreshold    float64
	HorizonVarianceRelThreshold   float64
	OverlayBaseThickness          int
	OutsideFOVThicknessMultiplier int

	ReceiveTimeout       time.Duration
	StopGrace            time.Duration
	MaxPendingFrames     int
	FrozenFrameThreshold int
	BlankScoreThreshold  float64

	FFmpegPath string
	LogLevel   string
}

func Default() Config {
	return Config{
		OutputDir:      ".",
		BaseName:       "recording",
		SegmentSeconds: 60,

		CameraPort: 5005,
		MastPort:   5006,

		Preview:       true,
		PreviewWidth:  640,
		PreviewHeight: 360,
		PreviewFPS:    10,
		CameraHFOV:    40,

		HorizonKernelSize:             21,
		HorizonElongationThreshold:    10,
		HorizonVarianceRelThreshold:   0.5,
		OverlayBaseThickness:          2,
		OutsideFOVThicknessMultiplier: 8,

		ReceiveTimeout:   time.Second,
		StopGrace:        3 * time.Second,
		MaxPendingFrames: 2,

		BlankScoreThreshold: imagescore.DefaultMinScore,

		LogLevel: "info",
	}
}

// FrameSize is the byte length of one preview frame.
func (c *Config) FrameSize() int {
	return c.PreviewWidth * c.PreviewHeight * 3
}

// FrozenThreshold is the number of unchanged frames before the preview counts as frozen.
func (c *Config) FrozenThreshold() int {
	if c.FrozenFrameThreshold > 0 {
		return c.FrozenFrameThreshold
	}
	return 3 * c.PreviewFPS
}

// Validate rejects configurations that must not reach the pipeline.
func (c *Config) Validate() error {
	sdp, url := strings.TrimSpace(c.SDPPath), strings.TrimSpace(c.URL)
	switch {
	case sdp == "" && url == "":
		return errors.New("missing source: set an SDP file or a stream URL")
	case sdp != "" && url != "":
		return errors.New("ambiguous source: set either an SDP file or a stream URL, not both")
	}
	if sdp != "" {
		st, err := os.Stat(sdp)
		if err != nil {
			return errors.Wrap(err, "sdp file")
		}
		if st.IsDir() {
			return errors.Errorf("sdp file %q is a directory", sdp)
		}
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("missing output directory")
	}
	if strings.TrimSpace(c.BaseName) == "" {
		return errors.New("missing output base name")
	}
	if c.SegmentSeconds <= 0 {
		return errors.Errorf("segment seconds must be positive, got %d", c.SegmentSeconds)
	}
	for name, port := range map[string]int{"camera port": c.CameraPort, "mast port": c.MastPort} {
		if port < 1 || port > 65535 {
			return errors.Errorf("%s %d out of range 1-65535", name, port)
		}
	}
	if c.CameraPort == c.MastPort && c.CameraPCAP == "" && c.MastPCAP == "" {
		return errors.Errorf("camera and mast ports must differ, both are %d", c.CameraPort)
	}
	if c.Preview {
		if c.PreviewWidth <= 0 || c.PreviewHeight <= 0 {
			return errors.Errorf("invalid preview size %dx%d", c.PreviewWidth, c.PreviewHeight)
		}
		if c.PreviewFPS <= 0 {
			return errors.Errorf("invalid preview fps %d", c.PreviewFPS)
		}
	}
	if c.CameraHFOV <= 0 || c.CameraHFOV >= 360 {
		return errors.Errorf("camera hfov %.1f out of range (0, 360)", c.CameraHFOV)
	}
	if c.HorizonKernelSize < 1 {
		return errors.Errorf("horizon kernel size must be >= 1, got %d", c.HorizonKernelSize)
	}
	if c.HorizonVarianceRelThreshold <= 0 {
		return errors.New("horizon variance threshold must be positive")
	}
	if c.OverlayBaseThickness < 1 || c.OutsideFOVThicknessMultiplier < 1 {
		return errors.New("overlay thickness and multiplier must be >= 1")
	}
	if c.ReceiveTimeout <= 0 {
		return errors.New("receive timeout must be positive")
	}
	if c.BlankScoreThreshold < 0 || c.BlankScoreThreshold >= 1 {
		return errors.Errorf("blank score threshold %.3f out of range [0, 1)", c.BlankScoreThreshold)
	}
	return nil
}

// RegisterFlags binds every field to fs, using the current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.SDPPath, "sdp", c.SDPPath, "SDP file describing the RTP source")
	fs.StringVar(&c.URL, "url", c.URL, "network stream endpoint (rtsp://, udp://, ...)")
	fs.StringVar(&c.OutputDir, "out-dir", c.OutputDir, "directory for recorded segments")
	fs.StringVar(&c.BaseName, "out-name", c.BaseName, "base name for recorded segments")
	fs.IntVar(&c.SegmentSeconds, "segment", c.SegmentSeconds, "segment length in seconds")
	fs.IntVar(&c.CameraPort, "camera-port", c.CameraPort, "UDP port for CamAngle sentences")
	fs.IntVar(&c.MastPort, "mast-port", c.MastPort, "UDP port for MastRot sentences")
	fs.StringVar(&c.CameraPCAP, "camera-pcap", c.CameraPCAP, "replay CamAngle sentences from a pcap file instead of listening")
	fs.StringVar(&c.MastPCAP, "mast-pcap", c.MastPCAP, "replay MastRot sentences from a pcap file instead of listening")
	fs.BoolVar(&c.Preview, "preview", c.Preview, "decode a raw preview stream and run the overlay")
	fs.IntVar(&c.PreviewWidth, "preview-width", c.PreviewWidth, "preview frame width")
	fs.IntVar(&c.PreviewHeight, "preview-height", c.PreviewHeight, "preview frame height")
	fs.IntVar(&c.PreviewFPS, "preview-fps", c.PreviewFPS, "preview frame rate")
	fs.Float64Var(&c.CameraHFOV, "hfov", c.CameraHFOV, "camera horizontal field of view in degrees")
	fs.IntVar(&c.HorizonKernelSize, "horizon-kernel", c.HorizonKernelSize, "box filter size for the local variance map")
	fs.Float64Var(&c.HorizonElongationThreshold, "horizon-elongation", c.HorizonElongationThreshold, "minimum contour aspect ratio")
	fs.Float64Var(&c.HorizonVarianceRelThreshold, "horizon-variance", c.HorizonVarianceRelThreshold, "variance deviation allowed, relative to the mean")
	fs.IntVar(&c.OverlayBaseThickness, "overlay-thickness", c.OverlayBaseThickness, "overlay line thickness in pixels")
	fs.IntVar(&c.OutsideFOVThicknessMultiplier, "outside-fov-multiplier", c.OutsideFOVThicknessMultiplier, "thickness multiplier when the angle leaves the field of view")
	fs.DurationVar(&c.ReceiveTimeout, "receive-timeout", c.ReceiveTimeout, "telemetry receive timeout, bounds shutdown latency")
	fs.DurationVar(&c.StopGrace, "stop-grace", c.StopGrace, "time to wait for ffmpeg after SIGTERM before killing it")
	fs.IntVar(&c.MaxPendingFrames, "max-pending-frames", c.MaxPendingFrames, "frames kept for a slow presentation loop")
	fs.IntVar(&c.FrozenFrameThreshold, "frozen-frames", c.FrozenFrameThreshold, "unchanged frames before the preview is reported frozen (0 = 3s worth)")
	fs.Float64Var(&c.BlankScoreThreshold, "blank-score", c.BlankScoreThreshold, "compressibility below which a preview frame counts as blank (0 disables)")
	fs.StringVar(&c.FFmpegPath, "ffmpeg", c.FFmpegPath, "ffmpeg binary (default: search)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "logrus level")
}

// LoadEnv applies HORIZON_* overrides from the environment and, when it exists, the dotenv file at path.
// Process environment wins over the file.
func (c *Config) LoadEnv(path string) error {
	vars := map[string]string{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileVars, err := godotenv.Read(path)
			if err != nil {
				return errors.Wrap(err, "godotenv.Read")
			}
			for k, v := range fileVars {
				vars[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, envPrefix) {
			vars[k] = v
		}
	}

	fs := flag.NewFlagSet("env", flag.ContinueOnError)
	c.RegisterFlags(fs)
	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil {
			return
		}
		key := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		v, ok := vars[key]
		if !ok {
			return
		}
		if setErr := fs.Set(f.Name, v); setErr != nil {
			err = errors.Wrapf(setErr, "%s=%s", key, strconv.Quote(v))
		}
	})
	return err
}
