package imagescore

import (
	"compress/gzip"
	"context"
	"image"

	"github.com/pkg/errors"
)

// GzipScorer is the compressed size of the luma plane over its raw size.
type GzipScorer struct{}

var _ ImageScorer = &GzipScorer{}

func NewGzipScorer() *GzipScorer { return &GzipScorer{} }

func (ps *GzipScorer) ScoreImage(ctx context.Context, img image.Image) (float64, error) {
	pix := grayPixels(img)
	if len(pix) == 0 {
		return 0, errors.New("empty image")
	}
	buf := &discardCounter{}
	enc, err := gzip.NewWriterLevel(buf, gzip.BestSpeed)
	if err != nil {
		return -1, errors.Wrap(err, "gzip.NewWriterLevel")
	}
	if _, err := enc.Write(pix); err != nil {
		return -1, errors.Wrap(err, "gzip write")
	}
	if err := enc.Close(); err != nil {
		return -1, errors.Wrap(err, "gzip close")
	}
	return float64(buf.count) / float64(len(pix)), nil
}
