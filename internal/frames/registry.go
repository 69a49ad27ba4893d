package frames

import "fmt"

// Registry is an append-only, randomly-indexable store of Frames keyed by
// frame number. Lookups are O(1) and references returned by Append or Find
// stay valid for the registry's lifetime: frames are held by pointer and
// never relocated.
type Registry struct {
	frames []*Frame
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append stores f under its frame number and returns a stable reference.
// The caller supplies the number; numbers must arrive densely (1, 2, 3, ...).
// A gap or reuse is a programming error and panics.
func (r *Registry) Append(f *Frame) *Frame {
	next := uint32(len(r.frames)) + 1
	if f.Num != next {
		panic(fmt.Sprintf("frames: non-dense append: frame %d after %d frames", f.Num, len(r.frames)))
	}
	r.frames = append(r.frames, f)
	return f
}

// Find returns the frame with the given number, or false when absent.
// Absence is never expected in normal operation since numbers are dense.
func (r *Registry) Find(num uint32) (*Frame, bool) {
	if num == 0 || num > uint32(len(r.frames)) {
		return nil, false
	}
	return r.frames[num-1], true
}

// Count returns the number of stored frames.
func (r *Registry) Count() int {
	return len(r.frames)
}

// Destroy releases all stored frames. Called once at end of run.
func (r *Registry) Destroy() {
	r.frames = nil
}

// MarkDepended sets the depended-upon flag on every frame named in deps,
// returning how many frames were marked. Unknown numbers are skipped; the
// flag overrides any pending drop decision for those frames.
func (r *Registry) MarkDepended(deps []uint32) int {
	marked := 0
	for _, num := range deps {
		f, ok := r.Find(num)
		if !ok {
			continue
		}
		if !f.DependedUpon {
			f.DependedUpon = true
			marked++
		}
	}
	return marked
}
