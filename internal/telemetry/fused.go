package telemetry

import "sync"

// FusedAngle holds the latest camera and mast angles. Each field is written by its own listener;
// a read sees both fields from some consistent moment but they need not come from the same instant.
type FusedAngle struct {
	mu     sync.RWMutex
	camera float64
	mast   float64
}

func (f *FusedAngle) SetCamera(deg float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.camera = deg
}

func (f *FusedAngle) SetMast(deg float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mast = deg
}

// Apply stores s in the field matching its tag.
func (f *FusedAngle) Apply(s AngleSample) {
	switch s.Tag {
	case Camera:
		f.SetCamera(s.Degrees)
	case Mast:
		f.SetMast(s.Degrees)
	}
}

// Angle is camera minus mast.
func (f *FusedAngle) Angle() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.camera - f.mast
}

func (f *FusedAngle) Snapshot() (camera, mast float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.camera, f.mast
}
