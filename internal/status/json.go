package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/buttond/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Running       bool         `json:"running"`
	Buttons       []ButtonJSON `json:"buttons"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	ReadErrors    uint64       `json:"read_errors"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	Index  int        `json:"index"`
	Pin    int        `json:"pin"`
	State  string     `json:"state"`
	Counts CountsJSON `json:"event_counts"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Clicks        int `json:"clicks"`
	DoubleClicks  int `json:"double_clicks"`
	ShortReleases int `json:"short_releases"`
	LongReleases  int `json:"long_releases"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip          string `json:"chip"`
	Pins          []int  `json:"pins"`
	ActiveHigh    bool   `json:"active_high"`
	PollMs        int64  `json:"poll_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	DoubleClickMs int64  `json:"double_click_ms"`
	LongPressMs   int64  `json:"long_press_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPPort      string `json:"http_port"`
}

func countsJSON(c logic.EventCounts) CountsJSON {
	return CountsJSON{
		Clicks:        c.Clicks,
		DoubleClicks:  c.DoubleClicks,
		ShortReleases: c.ShortReleases,
		LongReleases:  c.LongReleases,
	}
}

func buildInner(snap Snapshot) StatusInner {
	buttons := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		state := string(b.State)
		if state == "" {
			state = "UNKNOWN"
		}
		buttons[i] = ButtonJSON{
			Index:  b.Index,
			Pin:    b.Pin,
			State:  state,
			Counts: countsJSON(b.Counts),
		}
	}

	pins := snap.Config.Pins
	if pins == nil {
		pins = []int{}
	}

	return StatusInner{
		Running:       snap.Running,
		Buttons:       buttons,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		ReadErrors:    snap.ReadErrors,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        countsJSON(snap.Counts),
		Config: ConfigJSON{
			Chip:          snap.Config.Chip,
			Pins:          pins,
			ActiveHigh:    snap.Config.ActiveHigh,
			PollMs:        snap.Config.PollMs,
			DebounceMs:    snap.Config.DebounceMs,
			DoubleClickMs: snap.Config.DoubleClickMs,
			LongPressMs:   snap.Config.LongPressMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPPort:      snap.Config.HTTPPort,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
