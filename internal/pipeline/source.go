package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/config"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/media"
	"github.com/pkg/errors"
)

// Source produces the raw preview byte stream. A child process is one implementation.
type Source interface {
	Start(ctx context.Context) error
	// Frames is nil when the source carries no preview.
	Frames() io.Reader
	// Wait blocks until the source ends on its own or is stopped.
	Wait() error
	Stop() error
	Close() error
}

var _ Source = &media.Process{}

// MediaSource builds the ffmpeg-backed source described by cfg.
func MediaSource(cfg config.Config) (Source, error) {
	path, err := media.FindFFmpeg(cfg.FFmpegPath)
	if err != nil {
		return nil, err
	}
	args, err := media.Args(media.Options{
		SDPPath:        cfg.SDPPath,
		URL:            cfg.URL,
		OutputDir:      cfg.OutputDir,
		BaseName:       cfg.BaseName,
		SegmentSeconds: cfg.SegmentSeconds,
		Preview:        cfg.Preview,
		PreviewWidth:   cfg.PreviewWidth,
		PreviewHeight:  cfg.PreviewHeight,
		PreviewFPS:     cfg.PreviewFPS,
	})
	if err != nil {
		return nil, errors.Wrap(err, "media.Args")
	}
	return media.NewProcess(path, args, cfg.Preview, cfg.StopGrace), nil
}

// ReaderSource serves an existing stream, such as a recorded raw dump or a pipe.
// Wait returns once Stop is called; the end of the stream is seen by the frame reader.
// Stop closes the stream, which is what unblocks a pending frame read.
type ReaderSource struct {
	r    io.ReadCloser
	once sync.Once
	done chan struct{}
}

var _ Source = &ReaderSource{}

// NewReaderSource wraps r. Use io.NopCloser only for readers that never block, like in-memory ones.
func NewReaderSource(r io.ReadCloser) *ReaderSource {
	return &ReaderSource{r: r, done: make(chan struct{})}
}

func (s *ReaderSource) Start(context.Context) error { return nil }
func (s *ReaderSource) Frames() io.Reader             { return s.r }

func (s *ReaderSource) Wait() error {
	<-s.done
	return nil
}

func (s *ReaderSource) Stop() error {
	s.once.Do(func() { close(s.done) })
	return s.Close()
}

func (s *ReaderSource) Close() error {
	if s.r == nil {
		return nil
	}
	return s.r.Close()
}
