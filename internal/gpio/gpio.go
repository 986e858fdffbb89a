// Package gpio provides GPIO line access and edge signals with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/buttond/internal/logic"

// Lines samples input lines and delivers edge signals for them.
// Levels are logical: true means the button is actuated, whatever the wiring.
type Lines interface {
	// Level returns the instantaneous logical level of a watched line.
	Level(pin int) (bool, error)

	// Watch requests the line and calls handler on every edge.
	// handler may run on a goroutine owned by the implementation and
	// must return quickly.
	Watch(pin int, handler func()) error

	// Unwatch releases the line. No handler call for it starts after
	// Unwatch returns.
	Unwatch(pin int) error

	// Close releases all lines and the chip.
	Close() error
}

// Clock is a monotonic millisecond tick source.
type Clock interface {
	Now() logic.Millis
}

// Default wiring (BCM numbering)
const (
	DefaultChip = "gpiochip0"
	DefaultPins = "17,27"
)
