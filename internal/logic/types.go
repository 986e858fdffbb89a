// Package logic contains the pure debounce and gesture classification logic.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable, either as Millis ticks or time.Time parameters.
package logic

import "time"

// Millis is a wrapping millisecond tick count. Elapsed time is always
// computed with unsigned subtraction, so a wrap between two ticks is harmless
// as long as the real gap is under ~49 days.
type Millis uint32

// Since returns the ticks elapsed from earlier to m.
func (m Millis) Since(earlier Millis) Millis {
	return m - earlier
}

// ToMillis converts a duration to ticks, saturating at the Millis range.
func ToMillis(d time.Duration) Millis {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > int64(^Millis(0)) {
		return ^Millis(0)
	}
	return Millis(ms)
}

// Timing holds the classification windows, all in ticks.
type Timing struct {
	// Debounce is the quiet time required after the last raw change.
	Debounce Millis
	// DoubleClick is the maximum gap between two accepted presses.
	DoubleClick Millis
	// LongPress is the hold time at or above which a release is long.
	LongPress Millis
}

// DefaultTiming matches common tactile switches.
var DefaultTiming = Timing{
	Debounce:    30,
	DoubleClick: 500,
	LongPress:   1000,
}

// NewTiming builds a Timing from durations.
func NewTiming(debounce, doubleClick, longPress time.Duration) Timing {
	return Timing{
		Debounce:    ToMillis(debounce),
		DoubleClick: ToMillis(doubleClick),
		LongPress:   ToMillis(longPress),
	}
}

// State represents the confirmed level of a button.
type State string

const (
	StateDown State = "DOWN"
	StateUp   State = "UP"
)

// Gesture is a classified event derived from one accepted transition.
type Gesture string

const (
	GestureClick        Gesture = "CLICK"
	GestureDoubleClick  Gesture = "DOUBLE_CLICK"
	GestureShortRelease Gesture = "SHORT_RELEASE"
	GestureLongRelease  Gesture = "LONG_RELEASE"
)

// Event is a gesture drained from a button by the polling consumer.
type Event struct {
	ID        string
	Timestamp time.Time
	Button    int // registry index
	Pin       int
	Gesture   Gesture
	State     State // confirmed state when drained
}

// EventCounts tracks the number of each gesture since startup.
type EventCounts struct {
	Clicks        int
	DoubleClicks  int
	ShortReleases int
	LongReleases  int
}

// Total returns the sum of all gestures.
func (c EventCounts) Total() int {
	return c.Clicks + c.DoubleClicks + c.ShortReleases + c.LongReleases
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// StateOf converts a down flag to a State.
func StateOf(down bool) State {
	if down {
		return StateDown
	}
	return StateUp
}
