package logic

import "sync/atomic"

// Flag is one bit of a button's shared state word.
type Flag uint32

const (
	// FlagPressed is the confirmed (debounced) level, not an event.
	FlagPressed Flag = 1 << iota
	FlagClicked
	FlagShortReleased
	FlagLongReleased
	FlagDoubleClicked
)

// GestureFlags covers every event bit.
const GestureFlags = FlagClicked | FlagShortReleased | FlagLongReleased | FlagDoubleClicked

// ButtonState is the record for one monitored input.
//
// The producer (Update) is the only writer of the pressed bit and the
// timestamps. Event bits are set by the producer and cleared by the consumer
// (Take, ClearFlags). The pressed bit and event bits live in one word so a
// consumer never sees a gesture without the level change behind it.
type ButtonState struct {
	pin int

	word       atomic.Uint32
	lastChange atomic.Uint32
	lastClick  atomic.Uint32
}

// Pin returns the line offset the record was last reset for.
func (b *ButtonState) Pin() int {
	return b.pin
}

// Reset seeds the record with a freshly sampled level. Both timestamps are set
// to now and all event bits are dropped.
func (b *ButtonState) Reset(pin int, active bool, now Millis) {
	b.pin = pin
	var w Flag
	if active {
		w = FlagPressed
	}
	b.word.Store(uint32(w))
	b.lastChange.Store(uint32(now))
	b.lastClick.Store(uint32(now))
}

// Update runs one debounce step for a raw sample taken at now.
// It never blocks or allocates and is safe to call from a signal handler
// while a consumer is taking flags.
func (b *ButtonState) Update(active bool, now Millis, t Timing) {
	if active == b.IsDown() {
		return
	}

	lastChange := Millis(b.lastChange.Load())
	if now.Since(lastChange) <= t.Debounce {
		// Still bouncing; restart the quiet window.
		b.lastChange.Store(uint32(now))
		return
	}

	lastClick := Millis(b.lastClick.Load())
	if active {
		set := FlagPressed | FlagClicked
		if now.Since(lastClick) <= t.DoubleClick {
			set |= FlagDoubleClicked
		}
		b.apply(0, set)
		b.lastClick.Store(uint32(now))
	} else {
		// Hold time is measured from the accepted press.
		set := FlagShortReleased
		if now.Since(lastClick) >= t.LongPress {
			set = FlagLongReleased
		}
		b.apply(FlagPressed, set)
	}
	b.lastChange.Store(uint32(now))
}

// apply clears and sets bits in one atomic step.
func (b *ButtonState) apply(clear, set Flag) {
	for {
		old := b.word.Load()
		next := (old &^ uint32(clear)) | uint32(set)
		if b.word.CompareAndSwap(old, next) {
			return
		}
	}
}

// IsDown reports the confirmed level without consuming anything.
func (b *ButtonState) IsDown() bool {
	return Flag(b.word.Load())&FlagPressed != 0
}

// Take clears f and reports whether it was set. A bit set by the producer
// after the clear survives for the next Take.
func (b *ButtonState) Take(f Flag) bool {
	f &= GestureFlags
	old := b.word.And(^uint32(f))
	return Flag(old)&f != 0
}

// Pending returns the event bits currently set, without clearing them.
func (b *ButtonState) Pending() Flag {
	return Flag(b.word.Load()) & GestureFlags
}

// ClearFlags drops every event bit and leaves the confirmed level alone.
func (b *ButtonState) ClearFlags() {
	b.word.And(^uint32(GestureFlags))
}

// LastChange returns the tick of the last accepted or rejected transition.
func (b *ButtonState) LastChange() Millis {
	return Millis(b.lastChange.Load())
}

// LastClick returns the tick of the last accepted press.
func (b *ButtonState) LastClick() Millis {
	return Millis(b.lastClick.Load())
}
