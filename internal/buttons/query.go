package buttons

import (
	"fmt"
	"time"

	"github.com/gobuffalo/uuid"
	"github.com/sweeney/buttond/internal/logic"
)

// button returns the record for index i. An index outside the registry is
// a programming error and panics.
func (r *Registry) button(i int) *logic.ButtonState {
	if i < 0 || i >= len(r.buttons) {
		panic(fmt.Sprintf("buttons: index %d out of range [0,%d)", i, len(r.buttons)))
	}
	return &r.buttons[i]
}

// IsDown reports the confirmed level of button i. It consumes nothing.
func (r *Registry) IsDown(i int) bool {
	return r.button(i).IsDown()
}

// IsUp is the negation of IsDown.
func (r *Registry) IsUp(i int) bool {
	return !r.IsDown(i)
}

// Sample reads the raw, undebounced level of button i from its line.
func (r *Registry) Sample(i int) (bool, error) {
	return r.lines.Level(r.button(i).Pin())
}

// TakeClicked reports and clears the clicked flag of button i.
func (r *Registry) TakeClicked(i int) bool {
	return r.button(i).Take(logic.FlagClicked)
}

// TakeShortReleased reports and clears the short-release flag of button i.
func (r *Registry) TakeShortReleased(i int) bool {
	return r.button(i).Take(logic.FlagShortReleased)
}

// TakeLongReleased reports and clears the long-release flag of button i.
func (r *Registry) TakeLongReleased(i int) bool {
	return r.button(i).Take(logic.FlagLongReleased)
}

// TakeDoubleClicked reports and clears the double-click flag of button i.
func (r *Registry) TakeDoubleClicked(i int) bool {
	return r.button(i).Take(logic.FlagDoubleClicked)
}

// ClearAll drops every pending flag on every button, e.g. when the caller
// switches mode and stale input must not leak into it.
func (r *Registry) ClearAll() {
	for i := range r.buttons {
		r.buttons[i].ClearFlags()
	}
}

// drainOrder is the order gestures of one button are reported in. A press
// always precedes the release that follows it.
var drainOrder = []struct {
	flag    logic.Flag
	gesture logic.Gesture
}{
	{logic.FlagClicked, logic.GestureClick},
	{logic.FlagDoubleClicked, logic.GestureDoubleClick},
	{logic.FlagShortReleased, logic.GestureShortRelease},
	{logic.FlagLongReleased, logic.GestureLongRelease},
}

// Events takes every pending flag and returns one Event per gesture,
// stamped with at. Buttons are visited in index order.
func (r *Registry) Events(at time.Time) []logic.Event {
	var events []logic.Event
	for i := range r.buttons {
		b := &r.buttons[i]
		if b.Pending() == 0 {
			continue
		}
		for _, d := range drainOrder {
			if !b.Take(d.flag) {
				continue
			}
			events = append(events, logic.Event{
				ID:        uuid.Must(uuid.NewV4()).String(),
				Timestamp: at,
				Button:    i,
				Pin:       b.Pin(),
				Gesture:   d.gesture,
				State:     logic.StateOf(b.IsDown()),
			})
		}
	}
	return events
}
