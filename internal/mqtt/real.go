package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/buttond/internal/logic"
)

// outboxCapacity bounds how many messages are kept while disconnected.
const outboxCapacity = 256

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topic  string

	// mu guards the outbox and the flags below. publish decides between
	// sending and queueing under mu, so nothing lands in the outbox after a
	// replay has found it empty.
	mu        sync.Mutex
	outbox    *outbox
	online    bool   // a replay has drained the outbox since the last connect
	replaying bool
	again     bool   // a connect arrived during a replay
	losses    uint64 // connection losses seen
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{
		topic:  Topic,
		outbox: newOutbox(outboxCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("buttond").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// paho keeps retrying in the background; publishes queue until then.
		log.Printf("mqtt: %s not reachable yet, queueing until connected", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect replays everything queued while offline. paho runs it on its
// own goroutine, so waiting on tokens here is fine. Publishes made during the
// replay join the outbox and go out in a later batch, keeping order.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	if p.replaying {
		p.again = true
		p.mu.Unlock()
		return
	}
	p.replaying = true
	losses := p.losses

	replayed := 0
	for {
		queued := p.outbox.takeAll()
		if len(queued) == 0 {
			if p.again {
				p.again = false
				losses = p.losses
				continue
			}
			break
		}
		p.mu.Unlock()

		if replayed == 0 {
			log.Printf("mqtt: connected, replaying queued messages")
		}
		for _, m := range queued {
			if err := p.send(m); err != nil {
				log.Printf("mqtt: replay: %v", err)
			}
		}
		replayed += len(queued)

		p.mu.Lock()
	}
	p.replaying = false
	// Lost mid-replay: stay offline and let the next connect drain.
	p.online = p.losses == losses
	p.mu.Unlock()

	if replayed > 0 {
		log.Printf("mqtt: replayed %d messages", replayed)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.online = false
	p.losses++
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

func (p *RealPublisher) send(m message) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// publish sends m now, or queues it while the connection is down or a
// replay is still running.
func (p *RealPublisher) publish(m message) error {
	p.mu.Lock()
	if !p.online || p.replaying {
		p.outbox.add(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

// Publish sends a gesture event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: a missed gesture is worse than a duplicate, and the ID lets
	// subscribers drop repeats.
	return p.publish(message{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	return p.publish(message{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if n := p.outbox.len(); n > 0 {
		log.Printf("mqtt: discarding %d unsent messages", n)
	}
	p.mu.Unlock()

	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
