// Package haptic triggers vibration feedback on the user's device.
// Feedback is fire-and-forget: no return values, and a missing device is
// a silent no-op.
package haptic

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Intensity names one of the supported feedback kinds.
type Intensity string

const (
	Light   Intensity = "light"
	Success Intensity = "success"
	Warning Intensity = "warning"
)

// Pattern is a vibration pattern: alternating on/off durations.
type Pattern []time.Duration

// Patterns maps each intensity to its vibration pattern.
var Patterns = map[Intensity]Pattern{
	Light:   {15 * time.Millisecond},
	Success: {20 * time.Millisecond, 40 * time.Millisecond, 20 * time.Millisecond},
	Warning: {100 * time.Millisecond},
}

// Millis returns the pattern in milliseconds, the unit vibration APIs take.
func (p Pattern) Millis() []int64 {
	out := make([]int64, len(p))
	for i, d := range p {
		out[i] = d.Milliseconds()
	}
	return out
}

// Device is something able to vibrate.
type Device interface {
	Vibrate(intensity Intensity, pattern Pattern)
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(Intensity, Pattern)

func (f DeviceFunc) Vibrate(i Intensity, p Pattern) { f(i, p) }

// Feedback triggers the three intensities on a Device.
// A nil *Feedback or a nil device does nothing.
type Feedback struct {
	device Device
}

// New returns Feedback driving device, which may be nil.
func New(device Device) *Feedback {
	return &Feedback{device: device}
}

func (f *Feedback) Light()   { f.trigger(Light) }
func (f *Feedback) Success() { f.trigger(Success) }
func (f *Feedback) Warning() { f.trigger(Warning) }

func (f *Feedback) trigger(i Intensity) {
	if f == nil || f.device == nil {
		return
	}
	f.device.Vibrate(i, Patterns[i])
}

// Multi fans one trigger out to several devices, skipping nil entries.
func Multi(devices ...Device) Device {
	return DeviceFunc(func(i Intensity, p Pattern) {
		for _, d := range devices {
			if d != nil {
				d.Vibrate(i, p)
			}
		}
	})
}

// LogDevice records feedback in the structured log.
type LogDevice struct {
	Logger *zap.Logger
}

func (d LogDevice) Vibrate(i Intensity, p Pattern) {
	if d.Logger == nil {
		return
	}
	d.Logger.Debug("haptic feedback", zap.String("intensity", string(i)), zap.Int64s("pattern_ms", p.Millis()))
}

// Recorder remembers every intensity it receives, for tests.
type Recorder struct {
	mu  sync.Mutex
	got []Intensity
}

func (r *Recorder) Vibrate(i Intensity, _ Pattern) {
	r.mu.Lock()
	r.got = append(r.got, i)
	r.mu.Unlock()
}

// Intensities returns a copy of the recorded intensities in order.
func (r *Recorder) Intensities() []Intensity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Intensity(nil), r.got...)
}

// Count returns how many times i was recorded.
func (r *Recorder) Count(i Intensity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, g := range r.got {
		if g == i {
			n++
		}
	}
	return n
}
