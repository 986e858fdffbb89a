// Package status provides a thread-safe status tracker for the buttond daemon.
// It is written by the polling loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/buttond/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Chip          string
	Pins          []int
	ActiveHigh    bool
	PollMs        int64
	DebounceMs    int64
	DoubleClickMs int64
	LongPressMs   int64
	HeartbeatMs   int64
	Broker        string
	HTTPPort      string
}

// ButtonStatus is the last observed state of one button.
type ButtonStatus struct {
	Index  int
	Pin    int
	State  logic.State
	Counts logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; its slices are not shared with the tracker.
type Snapshot struct {
	Buttons       []ButtonStatus
	Running       bool
	Counts        logic.EventCounts
	ReadErrors    uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	cfg.Pins = append([]int(nil), cfg.Pins...)
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets button states, running status, totals and the dispatch read
// error count. Called from runLoop on every tick.
func (t *Tracker) Update(buttons []ButtonStatus, running bool, counts logic.EventCounts, readErrors uint64) {
	copied := append([]ButtonStatus(nil), buttons...)
	t.mu.Lock()
	t.snap.Buttons = copied
	t.snap.Running = running
	t.snap.Counts = counts
	t.snap.ReadErrors = readErrors
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]ButtonStatus(nil), t.snap.Buttons...)
	s.Config.Pins = append([]int(nil), t.snap.Config.Pins...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
