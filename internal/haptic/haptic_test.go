package haptic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFeedback_Triggers(t *testing.T) {
	rec := &Recorder{}
	f := New(rec)
	f.Light()
	f.Success()
	f.Warning()
	f.Warning()

	assert.Equal(t, []Intensity{Light, Success, Warning, Warning}, rec.Intensities())
	assert.Equal(t, 2, rec.Count(Warning))
}

func TestFeedback_NoDeviceIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil).Warning()
		var f *Feedback
		f.Light()
		LogDevice{}.Vibrate(Light, Patterns[Light])
	})
}

func TestPatterns(t *testing.T) {
	assert.Equal(t, []int64{15}, Patterns[Light].Millis())
	assert.Equal(t, []int64{20, 40, 20}, Patterns[Success].Millis())
	assert.Equal(t, []int64{100}, Patterns[Warning].Millis())
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	New(Multi(a, nil, b, LogDevice{Logger: zap.NewNop()})).Success()
	assert.Equal(t, 1, a.Count(Success))
	assert.Equal(t, 1, b.Count(Success))
}
