// Command buttond watches debounced push buttons on GPIO lines and publishes
// click, double-click and release gestures to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/buttond/internal/buttons"
	"github.com/sweeney/buttond/internal/gpio"
	"github.com/sweeney/buttond/internal/logic"
	"github.com/sweeney/buttond/internal/mqtt"
	"github.com/sweeney/buttond/internal/status"
	"github.com/sweeney/buttond/internal/telemetry"
	"github.com/sweeney/buttond/internal/web"
)

type options struct {
	chip          string
	pins          []int
	activeHigh    bool
	debounce      time.Duration
	doubleClick   time.Duration
	longPress     time.Duration
	settle        time.Duration
	poll          time.Duration
	broker        string
	heartbeat     time.Duration
	httpAddr      string
	appInsightKey string
	printState    bool
}

func main() {
	var o options
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip name")
	pins := flag.String("pins", gpio.DefaultPins, "Comma separated line offsets, one per button")
	flag.BoolVar(&o.activeHigh, "active-high", false, "Buttons pull the line high (default: active low with pull-up)")
	flag.DurationVar(&o.debounce, "debounce", 30*time.Millisecond, "Minimum time between accepted transitions")
	flag.DurationVar(&o.doubleClick, "double-click", 500*time.Millisecond, "Maximum gap between presses of a double click")
	flag.DurationVar(&o.longPress, "long-press", time.Second, "Hold time that makes a release long")
	flag.DurationVar(&o.settle, "settle", 50*time.Millisecond, "Wait after requesting lines before the first sample")
	flag.DurationVar(&o.poll, "poll", 10*time.Millisecond, "Gesture drain interval")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.appInsightKey, "appinsights-key", "", "Application Insights instrumentation key (empty to disable)")
	flag.BoolVar(&o.printState, "print-state", false, "Print current button levels and exit")

	flag.Parse()

	var err error
	if o.pins, err = parsePins(*pins); err != nil {
		log.Fatalf("fatal: -pins: %v", err)
	}
	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parsePins turns "17, 27" into []int{17, 27}. Range and duplicate checks
// are left to the registry.
func parsePins(s string) ([]int, error) {
	var pins []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("empty entry in %q", s)
		}
		pin, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("pin %q: %w", field, err)
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

func run(o options) error {
	// Initialize GPIO
	lines, err := gpio.NewRealLines(o.chip, o.activeHigh)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	reg := buttons.New(len(o.pins), lines, gpio.NewSystemClock(), buttons.Config{
		Timing: logic.NewTiming(o.debounce, o.doubleClick, o.longPress),
		Settle: o.settle,
	})
	if err := reg.Begin(o.pins); err != nil {
		return fmt.Errorf("bind buttons: %w", err)
	}
	defer reg.Stop()

	// Print state mode
	if o.printState {
		return printState(os.Stdout, reg)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(o.broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tele := telemetry.New(o.appInsightKey)
	defer tele.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:          o.chip,
		Pins:          o.pins,
		ActiveHigh:    o.activeHigh,
		PollMs:        o.poll.Milliseconds(),
		DebounceMs:    o.debounce.Milliseconds(),
		DoubleClickMs: o.doubleClick.Milliseconds(),
		LongPressMs:   o.longPress.Milliseconds(),
		HeartbeatMs:   o.heartbeat.Milliseconds(),
		Broker:        o.broker,
		HTTPPort:      o.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	hub := web.NewHub()
	d := &daemon{
		reg:        reg,
		pins:       o.pins,
		publisher:  publisher,
		mqttStatus: publisher,
		hub:        hub,
		telemetry:  tele,
		tracker:    tracker,
		heartbeat:  o.heartbeat,
		now:        time.Now,
	}
	d.startup()

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: chip=%s pins=%v poll=%v debounce=%v double-click=%v long-press=%v broker=%s heartbeat=%v",
		o.chip, o.pins, o.poll, o.debounce, o.doubleClick, o.longPress, o.broker, o.heartbeat)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	return d.runLoop(ticker.C, sigCh)
}

func printState(w io.Writer, reg *buttons.Registry) error {
	pins := reg.Pins()
	for i := 0; i < reg.Count(); i++ {
		down, err := reg.Sample(i)
		if err != nil {
			return fmt.Errorf("read button %d: %w", i, err)
		}
		fmt.Fprintf(w, "button %d (pin %d): %s\n", i, pins[i], logic.StateOf(down))
	}
	return nil
}

// daemon is the polling side of the process: it drains gestures from the
// registry and fans them out. Everything except reg is optional.
type daemon struct {
	reg        *buttons.Registry
	pins       []int
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	hub        *web.Hub
	telemetry  *telemetry.Client
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time

	tally *logic.Tally
}

func (d *daemon) counts() *logic.Tally {
	if d.tally == nil {
		d.tally = logic.NewTally(d.reg.Count(), d.now())
	}
	return d.tally
}

// startup publishes the retained STARTUP status.
func (d *daemon) startup() {
	d.publishStatus("STARTUP", "")
	d.telemetry.TrackSystem("STARTUP", "")
}

func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	tally := d.counts()

	for {
		select {
		case s := <-sig:
			switch s {
			case syscall.SIGHUP:
				log.Printf("received %v, rebinding buttons", s)
				if err := d.reg.Begin(d.pins); err != nil {
					// Stay up so the status page shows the failure; the next
					// SIGHUP retries.
					log.Printf("rebind failed: %v", err)
					d.updateStatus()
					continue
				}
				d.publishStatus("RESTART", "SIGHUP")
				d.telemetry.TrackSystem("RESTART", "SIGHUP")
				continue
			case syscall.SIGUSR1:
				log.Printf("received %v, clearing pending gestures", s)
				d.reg.ClearAll()
				continue
			}

			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			// Report gestures completed before the signal, then unbind.
			d.drain(d.now())
			d.reg.Stop()
			d.publishStatus("SHUTDOWN", signalName)
			d.telemetry.TrackSystem("SHUTDOWN", signalName)
			return nil

		case <-tick:
			t := d.now()
			d.drain(t)

			// Check for heartbeat
			if hbData := tally.CheckHeartbeat(t, d.heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v clicks=%d double=%d short=%d long=%d read_errors=%d",
					hbData.Uptime, hbData.Counts.Clicks, hbData.Counts.DoubleClicks,
					hbData.Counts.ShortReleases, hbData.Counts.LongReleases, d.reg.ReadErrors())
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
				}
				d.publishStatus("HEARTBEAT", "")
			}

			// Update status tracker for HTTP consumers
			d.updateStatus()
		}
	}
}

// drain takes every pending gesture and fans it out. Publish failures are
// logged and never stop the loop.
func (d *daemon) drain(at time.Time) {
	events := d.reg.Events(at)
	for _, event := range events {
		log.Printf("event: button %d (pin %d) %s state=%s", event.Button, event.Pin, event.Gesture, event.State)
		if err := d.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
		}
		if d.hub != nil {
			d.hub.Broadcast(event)
		}
		d.telemetry.Track(event)
	}
	d.counts().Record(events)
}

func (d *daemon) updateStatus() {
	if d.tracker == nil {
		return
	}
	tally := d.counts()
	pins := d.reg.Pins()
	states := make([]status.ButtonStatus, len(pins))
	for i, pin := range pins {
		states[i] = status.ButtonStatus{
			Index:  i,
			Pin:    pin,
			State:  logic.StateOf(d.reg.IsDown(i)),
			Counts: tally.ButtonCounts(i),
		}
	}
	d.tracker.Update(states, d.reg.Begun(), tally.Counts(), d.reg.ReadErrors())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// publishStatus publishes a system event carrying a full status snapshot.
// Everything but HEARTBEAT is retained, so late subscribers see the last
// lifecycle change.
func (d *daemon) publishStatus(event, reason string) {
	sys := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     event,
		Reason:    reason,
		Retained:  event != "HEARTBEAT",
	}
	if d.tracker != nil {
		d.updateStatus()
		snap := d.tracker.Snapshot()
		sys.RawPayload = status.FormatStatusEvent(snap, event, reason)
	}
	if err := d.publisher.PublishSystem(sys); err != nil {
		log.Printf("failed to publish %s event: %v", strings.ToLower(event), err)
	} else {
		log.Printf("published %s event", strings.ToLower(event))
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
