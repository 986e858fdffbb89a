package mqtt

import "log"

// message is a serialized publish waiting for a connection.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable.
// When full, the oldest message is dropped. Not safe for concurrent use;
// RealPublisher guards it.
type outbox struct {
	msgs    []message
	next    int // slot for the next add
	size    int
	dropped int // since the last takeAll
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]message, capacity)}
}

func (o *outbox) add(m message) {
	if o.size == len(o.msgs) {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", len(o.msgs))
		}
		o.dropped++
	} else {
		o.size++
	}
	o.msgs[o.next] = m
	o.next = (o.next + 1) % len(o.msgs)
}

// takeAll empties the outbox, oldest first.
func (o *outbox) takeAll() []message {
	if o.size == 0 {
		return nil
	}

	out := make([]message, 0, o.size)
	first := (o.next - o.size + len(o.msgs)) % len(o.msgs)
	for i := 0; i < o.size; i++ {
		out = append(out, o.msgs[(first+i)%len(o.msgs)])
	}

	if o.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while offline", o.dropped)
	}
	o.size, o.next, o.dropped = 0, 0, 0
	return out
}

func (o *outbox) len() int {
	return o.size
}
