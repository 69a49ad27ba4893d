package frames

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunContext_ByteAndTimeBookkeeping(t *testing.T) {
	t.Parallel()

	rc := NewRunContext()
	t0 := time.Unix(1700000000, 0)

	f1 := NewFrame(1, 24, 60, 60, t0)
	rc.SetBeforeDissect(f1)
	assert.EqualValues(t, 60, f1.CumBytes) // provisional
	rc.SetAfterDissect(f1, true)
	rc.UpdateCaptured(f1)
	rc.UpdateDisplayed(f1)

	assert.True(t, f1.Passed)
	assert.EqualValues(t, 60, f1.CumBytes)
	assert.Equal(t, time.Duration(0), f1.Elapsed)
	assert.Equal(t, f1.Num, f1.RefFrame)

	// A failing frame contributes nothing to the running totals but still
	// advances the captured tracker.
	f2 := NewFrame(2, 100, 40, 40, t0.Add(time.Second))
	rc.SetBeforeDissect(f2)
	assert.EqualValues(t, 100, f2.CumBytes)
	assert.Equal(t, uint32(1), f2.PrevDisplayed)
	assert.Equal(t, uint32(1), f2.PrevCaptured)
	assert.Equal(t, time.Second, f2.Elapsed)
	rc.SetAfterDissect(f2, false)
	rc.UpdateCaptured(f2)

	assert.False(t, f2.Passed)
	assert.EqualValues(t, 60, rc.CumBytes)

	// The next frame sees frame 2 as previous captured but frame 1 as
	// previous displayed.
	f3 := NewFrame(3, 160, 100, 100, t0.Add(2*time.Second))
	rc.SetBeforeDissect(f3)
	assert.Equal(t, uint32(1), f3.PrevDisplayed)
	assert.Equal(t, uint32(2), f3.PrevCaptured)
	rc.SetAfterDissect(f3, true)
	assert.EqualValues(t, 160, f3.CumBytes)
	assert.Equal(t, uint32(1), f3.RefFrame)
}

func TestRunContext_FirstRetainedFrameAnchorsElapsed(t *testing.T) {
	t.Parallel()

	rc := NewRunContext()
	t0 := time.Unix(1700000000, 0)

	// First record fails its filter: it must not anchor the elapsed clock.
	f1 := NewFrame(1, 0, 10, 10, t0)
	rc.SetBeforeDissect(f1)
	rc.SetAfterDissect(f1, false)
	rc.UpdateCaptured(f1)

	f2 := NewFrame(2, 30, 10, 10, t0.Add(5*time.Second))
	rc.SetBeforeDissect(f2)
	rc.SetAfterDissect(f2, true)
	rc.UpdateCaptured(f2)
	assert.Equal(t, time.Duration(0), f2.Elapsed)

	f3 := NewFrame(3, 60, 10, 10, t0.Add(7*time.Second))
	rc.SetBeforeDissect(f3)
	assert.Equal(t, 2*time.Second, f3.Elapsed)
}

func TestRunContext_Reset(t *testing.T) {
	t.Parallel()

	rc := NewRunContext()
	f := NewFrame(1, 0, 10, 10, time.Now())
	rc.SetBeforeDissect(f)
	rc.SetAfterDissect(f, true)
	rc.UpdateCaptured(f)
	rc.UpdateDisplayed(f)

	rc.Reset()
	assert.EqualValues(t, 0, rc.CumBytes)
	assert.Nil(t, rc.Ref)
	assert.Nil(t, rc.PrevDisplayed)
	assert.Nil(t, rc.PrevCaptured)
}
