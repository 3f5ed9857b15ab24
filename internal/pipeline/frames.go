package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/event"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/filter"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/frame"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/histogram"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/horizon"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/imagescore"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/overlay"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const previewSource = "preview"

// Processor turns one raw frame into a FrameReady event.
type Processor struct {
	detector *horizon.Detector
	renderer *overlay.Renderer
	hfov     float64
	angle    func() float64
}

func (c *Coordinator) newProcessor() *Processor {
	op := overlay.DefaultParams()
	op.BaseThickness = c.cfg.OverlayBaseThickness
	op.OutsideFOVMultiplier = c.cfg.OutsideFOVThicknessMultiplier
	return &Processor{
		detector: horizon.NewDetector(horizon.Params{
			KernelSize:           c.cfg.HorizonKernelSize,
			VarianceRelThreshold: c.cfg.HorizonVarianceRelThreshold,
			ElongationThreshold:  c.cfg.HorizonElongationThreshold,
		}),
		renderer: overlay.NewRenderer(op),
		hfov:     c.cfg.CameraHFOV,
		angle:    c.angle.Angle,
	}
}

// Process runs detection, rendering and the histogram. gray is raw's luma plane; the histogram is
// taken from it rather than from the annotated copy.
func (p *Processor) Process(raw frame.RawFrame, gray *image.Gray) (event.Event, overlay.Result) {
	line := p.detector.Detect(gray)
	res := p.renderer.Render(raw.RGBA(), p.angle(), line, p.hfov)
	return event.FrameReady(previewSource, res.Image, histogram.Compute(gray)), res
}

func (c *Coordinator) frameLoop(ctx context.Context, r io.Reader) error {
	log := logger.Entry(ctx).WithField("component", previewSource)
	ch := frame.NewChannel(r, c.cfg.PreviewWidth, c.cfg.PreviewHeight)
	proc := c.newProcessor()
	frozen := filter.NewFrozenWatch(filter.Motion(filter.DefaultHashDim, filter.DefaultMinDist), c.cfg.FrozenThreshold())
	var blank *filter.FrozenWatch
	if c.cfg.BlankScoreThreshold > 0 {
		blank = filter.NewFrozenWatch(imagescore.Filter(imagescore.NewGzipScorer(), c.cfg.BlankScoreThreshold), c.cfg.FrozenThreshold())
	}

	log.WithFields(logrus.Fields{
		"width":      c.cfg.PreviewWidth,
		"height":     c.cfg.PreviewHeight,
		"frame_size": ch.Size(),
	}).Info("frame loop started")

	for !c.stopping.Load() {
		raw, err := ch.ReadFrame()
		if err != nil {
			if c.stopping.Load() {
				break
			}
			if errors.Is(err, io.EOF) {
				c.terminate("preview stream ended")
			} else {
				log.WithError(err).Warn("ReadFrame")
				c.events.Push(event.Log(previewSource, err.Error()))
				c.terminate(fmt.Sprintf("preview stream failed: %v", err))
			}
			break
		}

		gray := raw.Gray()
		ev, res := proc.Process(raw, gray)
		n := c.frames.Add(1)
		log.WithFields(logrus.Fields{
			"frame_count": n,
			"angle":       res.Angle,
			"outside_fov": res.OutsideFOV,
		}).Trace("frame")
		c.events.Push(ev)

		switch tr, err := frozen.Observe(ctx, gray); {
		case err != nil:
			log.WithError(err).Debug("motion filter")
		case tr == filter.BecameFrozen:
			c.events.Push(event.Log(previewSource, fmt.Sprintf("preview frozen for %d frames", frozen.Still())))
		case tr == filter.Resumed:
			c.events.Push(event.Status(previewSource, "preview motion resumed"))
		}
		if blank == nil {
			continue
		}
		switch tr, err := blank.Observe(ctx, gray); {
		case err != nil:
			log.WithError(err).Debug("blank filter")
		case tr == filter.BecameFrozen:
			c.events.Push(event.Log(previewSource, fmt.Sprintf("preview blank for %d frames", blank.Still())))
		case tr == filter.Resumed:
			c.events.Push(event.Status(previewSource, "preview picture restored"))
		}
	}
	log.WithField("frames", c.frames.Load()).Info("frame loop stopped")
	return nil
}
