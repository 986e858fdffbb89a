// Package buttons owns a fixed set of debounced buttons bound to edge
// signals, and exposes read-and-clear gesture queries to a polling loop.
//
// Edge handlers (the producer) and the polling loop (the consumer) never
// share a lock. Handler invocations are coalesced so that only one dispatch
// runs at a time even when the platform delivers edges on several goroutines.
package buttons

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sweeney/buttond/internal/gpio"
	"github.com/sweeney/buttond/internal/logic"
)

var (
	// ErrInvalidConfiguration is returned by Begin for a pin list that does
	// not fit the registry. The caller may retry with corrected input.
	ErrInvalidConfiguration = errors.New("invalid button configuration")

	// ErrBinding is returned by Begin when the platform refuses a line.
	// Nothing stays bound after it.
	ErrBinding = errors.New("button binding failed")
)

// Config holds registry settings that are fixed for its lifetime.
type Config struct {
	Timing logic.Timing
	// Settle is how long Begin waits after requesting lines, so pull
	// resistors can charge the input before it is sampled.
	Settle time.Duration
}

// Registry is a fixed-capacity collection of buttons.
type Registry struct {
	lines   gpio.Lines
	clock   gpio.Clock
	cfg     Config
	buttons []logic.ButtonState
	signal  func()

	begun   atomic.Bool
	busy    atomic.Bool
	pending atomic.Bool

	readErrors atomic.Uint64
}

// New creates a stopped registry for exactly capacity buttons. The button
// storage is allocated here and never grows.
func New(capacity int, lines gpio.Lines, clock gpio.Clock, cfg Config) *Registry {
	if capacity < 0 {
		capacity = 0
	}
	r := &Registry{
		lines:   lines,
		clock:   clock,
		cfg:     cfg,
		buttons: make([]logic.ButtonState, capacity),
	}
	// Bound once so Watch never captures a fresh closure per line.
	r.signal = r.onEdge
	return r
}

// Count returns the fixed number of buttons.
func (r *Registry) Count() int {
	return len(r.buttons)
}

// Begun reports whether the registry is bound to its lines.
func (r *Registry) Begun() bool {
	return r.begun.Load()
}

// Begin binds one button per pin, in order, and seeds each from a fresh
// sample. Calling Begin while begun performs a full Stop first.
func (r *Registry) Begin(pins []int) error {
	if r.begun.Load() {
		r.Stop()
	}
	if err := r.validate(pins); err != nil {
		return err
	}

	for i, pin := range pins {
		if err := r.lines.Watch(pin, r.signal); err != nil {
			r.unwatch(pins[:i])
			return fmt.Errorf("%w: pin %d: %w", ErrBinding, pin, err)
		}
	}

	if r.cfg.Settle > 0 {
		time.Sleep(r.cfg.Settle)
	}

	// Handlers are gated off until begun is set, so seeding does not race
	// with a dispatch.
	now := r.clock.Now()
	for i, pin := range pins {
		active, err := r.lines.Level(pin)
		if err != nil {
			r.unwatch(pins)
			return fmt.Errorf("%w: sample pin %d: %w", ErrBinding, pin, err)
		}
		r.buttons[i].Reset(pin, active, now)
	}

	r.begun.Store(true)
	r.reseed(pins)
	return nil
}

// reseed re-reads every line once dispatch is enabled and resets any button
// whose seed no longer matches. An edge that landed between the seed sample
// and the gate opening was dropped, so without this the button would sit in
// the wrong state until its next edge.
func (r *Registry) reseed(pins []int) {
	for !r.busy.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	now := r.clock.Now()
	for i, pin := range pins {
		active, err := r.lines.Level(pin)
		if err != nil {
			continue
		}
		if b := &r.buttons[i]; active != b.IsDown() {
			b.Reset(pin, active, now)
		}
	}
	r.busy.Store(false)

	// Edges that arrived while the slot was held.
	if r.pending.Load() {
		r.onEdge()
	}
}

func (r *Registry) validate(pins []int) error {
	if len(pins) == 0 {
		return fmt.Errorf("%w: no pins given", ErrInvalidConfiguration)
	}
	if len(pins) != len(r.buttons) {
		return fmt.Errorf("%w: got %d pins for %d buttons", ErrInvalidConfiguration, len(pins), len(r.buttons))
	}
	seen := make(map[int]bool, len(pins))
	for _, pin := range pins {
		if pin < 0 {
			return fmt.Errorf("%w: pin %d", ErrInvalidConfiguration, pin)
		}
		if seen[pin] {
			return fmt.Errorf("%w: pin %d listed twice", ErrInvalidConfiguration, pin)
		}
		seen[pin] = true
	}
	return nil
}

func (r *Registry) unwatch(pins []int) {
	for _, pin := range pins {
		if err := r.lines.Unwatch(pin); err != nil {
			log.Printf("buttons: unwatch pin %d: %v", pin, err)
		}
	}
}

// Stop unbinds every line. It is a no-op when not begun. When Stop returns
// no dispatch is running and none will start until the next Begin.
func (r *Registry) Stop() {
	if !r.begun.Swap(false) {
		return
	}
	for i := range r.buttons {
		pin := r.buttons[i].Pin()
		if err := r.lines.Unwatch(pin); err != nil {
			log.Printf("buttons: unwatch pin %d: %v", pin, err)
		}
	}
	// A handler that won the busy flag before begun was cleared may still
	// be dispatching.
	for r.busy.Load() {
		runtime.Gosched()
	}
}

// onEdge is the edge handler bound to every line. Concurrent calls collapse
// into one running dispatch that repeats while more edges arrive.
func (r *Registry) onEdge() {
	r.pending.Store(true)
	for r.pending.Load() && r.busy.CompareAndSwap(false, true) {
		for r.pending.Swap(false) {
			r.Dispatch(r.clock.Now())
		}
		r.busy.Store(false)
	}
}

// Dispatch samples every line and runs one debounce step per button.
// It does not allocate, block or report errors; a failed sample leaves
// that button untouched until the next edge. It does nothing when stopped.
func (r *Registry) Dispatch(now logic.Millis) {
	if !r.begun.Load() {
		return
	}
	for i := range r.buttons {
		b := &r.buttons[i]
		active, err := r.lines.Level(b.Pin())
		if err != nil {
			r.readErrors.Add(1)
			continue
		}
		b.Update(active, now, r.cfg.Timing)
	}
}

// ReadErrors returns how many line samples failed during dispatch.
func (r *Registry) ReadErrors() uint64 {
	return r.readErrors.Load()
}

// Pins returns the bound pin of each button, in index order.
func (r *Registry) Pins() []int {
	pins := make([]int, len(r.buttons))
	for i := range r.buttons {
		pins[i] = r.buttons[i].Pin()
	}
	return pins
}
