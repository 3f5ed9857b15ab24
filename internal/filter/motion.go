package filter

import (
	"context"
	"image"
	"sync"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/corona10/goimagehash"
	"github.com/pkg/errors"
)

const (
	DefaultHashDim = 8 // power of 2
	DefaultMinDist = 2
)

// Motion returns a filter that passes an image when its ExtPerceptionHash differs from the
// previous image's hash by at least minDist. The first image always passes.
func Motion(dim, minDist int) FilterFunc {
	var (
		mu   sync.Mutex
		prev *goimagehash.ExtImageHash
	)
	return func(ctx context.Context, img image.Image) (bool, error) {
		log := logger.Entry(ctx)

		hash, err := goimagehash.ExtPerceptionHash(img, dim, dim)
		if err != nil {
			return false, errors.Wrap(err, "ExtPerceptionHash")
		}
		mu.Lock()
		defer mu.Unlock()
		if prev == nil {
			prev = hash
			return true, nil
		}
		distance, err := prev.Distance(hash)
		if err != nil {
			return false, errors.Wrap(err, "ExtPerceptionHash Distance")
		}
		prev = hash
		ok := distance >= minDist
		if !ok {
			log.Tracef("ExtPerceptionHash distance is %d, threshold is %d", distance, minDist)
		}
		return ok, nil
	}
}
