//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines drives button lines on the Linux GPIO character device.
type RealLines struct {
	chip       *gpiocdev.Chip
	activeHigh bool

	mu    sync.RWMutex
	lines map[int]*gpiocdev.Line
}

// NewRealLines opens the named chip. Buttons are active-low with pull-up
// unless activeHigh is set, in which case they get a pull-down.
func NewRealLines(chipName string, activeHigh bool) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealLines{
		chip:       chip,
		activeHigh: activeHigh,
		lines:      make(map[int]*gpiocdev.Line),
	}, nil
}

func (r *RealLines) inputOptions() []gpiocdev.LineReqOption {
	if r.activeHigh {
		return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	}
	return []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.AsActiveLow, gpiocdev.WithPullUp}
}

// Level returns the logical level of a watched line. The kernel applies
// active-low inversion, so 1 always means actuated.
func (r *RealLines) Level(pin int) (bool, error) {
	r.mu.RLock()
	line := r.lines[pin]
	r.mu.RUnlock()
	if line == nil {
		return false, fmt.Errorf("pin %d: not requested", pin)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 1, nil
}

// Watch requests pin as an input with edge events on both edges.
// go-gpiocdev calls handler from the request's watcher goroutine.
func (r *RealLines) Watch(pin int, handler func()) error {
	opts := append(r.inputOptions(),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }),
	)
	line, err := r.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[pin]; ok {
		line.Close()
		return fmt.Errorf("pin %d: already watched", pin)
	}
	r.lines[pin] = line
	return nil
}

// Unwatch releases pin. Closing the request stops its watcher goroutine
// before returning, so no handler call for it starts afterwards.
func (r *RealLines) Unwatch(pin int) error {
	r.mu.Lock()
	line := r.lines[pin]
	delete(r.lines, pin)
	r.mu.Unlock()
	if line == nil {
		return fmt.Errorf("pin %d: not watched", pin)
	}
	// Closed outside the lock: a running handler may be inside Level.
	return release(pin, line)
}

// release restores the line to the Pi boot default (input with pull-down)
// before closing it, so attached hardware sees a clean state on reboot.
func release(pin int, line *gpiocdev.Line) error {
	var errs []error
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
	}
	if err := line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}

// Close releases every watched line and the chip.
func (r *RealLines) Close() error {
	r.mu.Lock()
	lines := r.lines
	r.lines = make(map[int]*gpiocdev.Line)
	r.mu.Unlock()

	var errs []error
	for pin, line := range lines {
		if err := release(pin, line); err != nil {
			errs = append(errs, err)
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
