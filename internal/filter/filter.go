package filter

import (
	"context"
	"image"
)

// FilterFunc reports whether an image passes a filter.
type FilterFunc func(context.Context, image.Image) (bool, error)
