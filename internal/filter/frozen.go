package filter

import (
	"context"
	"image"
)

type Transition int

const (
	NoChange Transition = iota
	BecameFrozen
	Resumed
)

// FrozenWatch counts consecutive frames that fail a filter, such as Motion.
type FrozenWatch struct {
	filter    FilterFunc
	threshold int
	still     int
	frozen    bool
}

func NewFrozenWatch(f FilterFunc, threshold int) *FrozenWatch {
	if threshold < 1 {
		threshold = 1
	}
	return &FrozenWatch{filter: f, threshold: threshold}
}

// Observe feeds one frame and reports a state change, if any.
func (w *FrozenWatch) Observe(ctx context.Context, img image.Image) (Transition, error) {
	moved, err := w.filter(ctx, img)
	if err != nil {
		return NoChange, err
	}
	if moved {
		w.still = 0
		if w.frozen {
			w.frozen = false
			return Resumed, nil
		}
		return NoChange, nil
	}
	w.still++
	if !w.frozen && w.still >= w.threshold {
		w.frozen = true
		return BecameFrozen, nil
	}
	return NoChange, nil
}

// Still is the current run of unchanged frames.
func (w *FrozenWatch) Still() int { return w.still }
