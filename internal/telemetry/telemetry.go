// Package telemetry forwards gestures and lifecycle events to Application
// Insights. A nil *Client is valid and drops everything, so callers need not
// check whether telemetry was configured.
package telemetry

import (
	"strconv"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/sweeney/buttond/internal/logic"
)

// closeTimeout bounds how long Close retries unsent telemetry.
const closeTimeout = 5 * time.Second

// Client wraps an Application Insights telemetry client.
type Client struct {
	tc appinsights.TelemetryClient
}

// New returns a Client for the given instrumentation key, or nil when the
// key is empty.
func New(key string) *Client {
	if key == "" {
		return nil
	}
	return &Client{tc: appinsights.NewTelemetryClient(key)}
}

// NewWithEndpoint is New with a custom ingestion endpoint.
func NewWithEndpoint(key, endpoint string) *Client {
	if key == "" {
		return nil
	}
	cfg := appinsights.NewTelemetryConfiguration(key)
	cfg.EndpointUrl = endpoint
	return &Client{tc: appinsights.NewTelemetryClientFromConfig(cfg)}
}

// Track sends one gesture as a custom event named after the gesture.
func (c *Client) Track(event logic.Event) {
	if c == nil {
		return
	}
	et := appinsights.NewEventTelemetry(string(event.Gesture))
	for name, value := range eventProperties(event) {
		et.Properties[name] = value
	}
	c.tc.Track(et)
	c.tc.Channel().Flush()
}

// TrackSystem sends a lifecycle event such as STARTUP or SHUTDOWN.
func (c *Client) TrackSystem(event, reason string) {
	if c == nil {
		return
	}
	et := appinsights.NewEventTelemetry(event)
	if reason != "" {
		et.Properties["reason"] = reason
	}
	c.tc.Track(et)
	c.tc.Channel().Flush()
}

// Close flushes pending telemetry and waits for it to be sent.
func (c *Client) Close() {
	if c == nil {
		return
	}
	select {
	case <-c.tc.Channel().Close(closeTimeout):
	case <-time.After(2 * closeTimeout):
	}
}

func eventProperties(event logic.Event) map[string]string {
	return map[string]string{
		"id":        event.ID,
		"button":    strconv.Itoa(event.Button),
		"pin":       strconv.Itoa(event.Pin),
		"state":     string(event.State),
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
