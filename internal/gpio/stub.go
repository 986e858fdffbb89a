//go:build !linux

package gpio

import "errors"

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string, activeHigh bool) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Level is not implemented on non-Linux platforms.
func (r *RealLines) Level(pin int) (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Watch is not implemented on non-Linux platforms.
func (r *RealLines) Watch(pin int, handler func()) error {
	return errors.New("gpio: not supported")
}

// Unwatch is not implemented on non-Linux platforms.
func (r *RealLines) Unwatch(pin int) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error {
	return nil
}
