package logic

import "time"

// Tally counts drained gestures and schedules heartbeats.
// Not safe for concurrent use; it belongs to the polling loop.
type Tally struct {
	startTime     time.Time
	lastHeartbeat time.Time
	counts        EventCounts
	perButton     []EventCounts
}

// NewTally creates a Tally for n buttons. The startTime is used for
// calculating uptime in heartbeat events.
func NewTally(n int, startTime time.Time) *Tally {
	return &Tally{
		startTime:     startTime,
		lastHeartbeat: startTime,
		perButton:     make([]EventCounts, n),
	}
}

// Record adds events to the running counts.
func (t *Tally) Record(events []Event) {
	for _, e := range events {
		count(&t.counts, e.Gesture)
		if e.Button >= 0 && e.Button < len(t.perButton) {
			count(&t.perButton[e.Button], e.Gesture)
		}
	}
}

func count(c *EventCounts, g Gesture) {
	switch g {
	case GestureClick:
		c.Clicks++
	case GestureDoubleClick:
		c.DoubleClicks++
	case GestureShortRelease:
		c.ShortReleases++
	case GestureLongRelease:
		c.LongReleases++
	}
}

// Counts returns totals across all buttons.
func (t *Tally) Counts() EventCounts {
	return t.counts
}

// ButtonCounts returns the counts for button i, or zero counts if i is unknown.
func (t *Tally) ButtonCounts(i int) EventCounts {
	if i < 0 || i >= len(t.perButton) {
		return EventCounts{}
	}
	return t.perButton[i]
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (t *Tally) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(t.lastHeartbeat) < interval {
		return nil
	}

	t.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(t.startTime),
		Counts:    t.counts,
	}
}
