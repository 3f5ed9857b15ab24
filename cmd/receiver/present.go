package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/event"
	"github.com/WIZARDISHUNGRY/horizon-await/internal/pipeline"
	"github.com/eliukblau/pixterm/pkg/ansimage"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// present is the single consumer of the event queue. It returns once the pipeline has stopped
// and every remaining event has been shown.
func present(ctx context.Context, c *pipeline.Coordinator, poll time.Duration) error {
	q := c.Events()
	var frameCount int

	handle := func(e event.Event) (stop bool) {
		switch e.Kind {
		case event.KindStatus:
			fmt.Printf("%s [%s] %s\n", e.Time.Format("15:04:05"), e.Source, e.Text)
		case event.KindLog:
			log.WithField("source", e.Source).Warn(e.Text)
		case event.KindFrameReady:
			frameCount++
			if !renderNext.Swap(false) && (*flagAnsiArt == 0 || frameCount%*flagAnsiArt != 0) {
				return false
			}
			if err := drawANSI(e.Frame); err != nil {
				log.WithError(err).Warn("drawANSI")
			}
			if *flagHistogram && e.Histogram != nil {
				if err := drawANSI(e.Histogram); err != nil {
					log.WithError(err).Warn("drawANSI histogram")
				}
			}
		case event.KindRequestStop:
			return true
		}
		return false
	}

	for {
		stop := false
		q.Wait(ctx, poll)
		for _, e := range q.Drain() {
			if handle(e) {
				stop = true
			}
		}

		select {
		case <-ctx.Done():
			stop = true
		case <-c.Done():
			stop = true
		default:
		}
		if !stop {
			continue
		}

		err := c.Stop()
		for _, e := range q.Drain() {
			handle(e)
		}
		log.WithField("frames", frameCount).Info("presentation stopped")
		return err
	}
}

func drawANSI(img image.Image) error {
	if img == nil {
		return nil
	}
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return errors.Wrap(err, "unix.IoctlGetWinsize")
	}
	ansi, err := ansimage.NewScaledFromImage(img, 8*int(ws.Col), 7*int(ws.Row), color.Black, ansimage.ScaleModeFit, ansimage.DitheringWithChars)
	if err != nil {
		return errors.Wrap(err, "ansimage.NewScaledFromImage")
	}
	if *flagFlicker {
		fmt.Print("\033[H\033[2J")
	}
	ansi.Draw()
	return nil
}
