package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// FakeLines is a test double with scripted levels and synchronous edges.
// Safe for concurrent use.
type FakeLines struct {
	mu       sync.Mutex
	levels   map[int]bool
	handlers map[int]func()

	// WatchErrors, if set for a pin, is returned by Watch.
	WatchErrors map[int]error

	// LevelErrors, if set for a pin, is returned by Level.
	LevelErrors map[int]error

	// Unwatched records pins in the order they were released.
	Unwatched []int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeLines creates FakeLines exposing the given pins, all released.
// Other pins behave like lines the chip does not have.
func NewFakeLines(pins ...int) *FakeLines {
	f := &FakeLines{
		levels:      make(map[int]bool),
		handlers:    make(map[int]func()),
		WatchErrors: make(map[int]error),
		LevelErrors: make(map[int]error),
	}
	for _, p := range pins {
		f.levels[p] = false
	}
	return f
}

// Level returns the scripted level of pin.
func (f *FakeLines) Level(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.LevelErrors[pin]; err != nil {
		return false, err
	}
	level, ok := f.levels[pin]
	if !ok {
		return false, fmt.Errorf("pin %d: no such line", pin)
	}
	return level, nil
}

// Watch registers handler for edges on pin.
func (f *FakeLines) Watch(pin int, handler func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.WatchErrors[pin]; err != nil {
		return err
	}
	if _, ok := f.levels[pin]; !ok {
		return fmt.Errorf("pin %d: no such line", pin)
	}
	if _, ok := f.handlers[pin]; ok {
		return fmt.Errorf("pin %d: %w", pin, errBusy)
	}
	f.handlers[pin] = handler
	return nil
}

var errBusy = errors.New("line already requested")

// Unwatch removes the handler for pin.
func (f *FakeLines) Unwatch(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[pin]; !ok {
		return fmt.Errorf("pin %d: not watched", pin)
	}
	delete(f.handlers, pin)
	f.Unwatched = append(f.Unwatched, pin)
	return nil
}

// Close marks the lines as closed and drops all handlers.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = make(map[int]func())
	f.Closed = true
	return nil
}

// Set changes the level of pin. If the level changed and the pin is
// watched, the handler runs on the caller's goroutine before Set returns.
func (f *FakeLines) Set(pin int, active bool) {
	f.mu.Lock()
	prev, ok := f.levels[pin]
	f.levels[pin] = active
	handler := f.handlers[pin]
	f.mu.Unlock()

	if ok && prev != active && handler != nil {
		handler()
	}
}

// SetQuiet changes the level of pin without firing an edge, like a change
// that happened while nothing was listening.
func (f *FakeLines) SetQuiet(pin int, active bool) {
	f.mu.Lock()
	f.levels[pin] = active
	f.mu.Unlock()
}

// Edge fires the handler for pin without changing its level, like
// electrical noise that settled back before the handler sampled it.
func (f *FakeLines) Edge(pin int) {
	f.mu.Lock()
	handler := f.handlers[pin]
	f.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// Watching reports whether pin currently has a handler.
func (f *FakeLines) Watching(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[pin]
	return ok
}
