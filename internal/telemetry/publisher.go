// Package telemetry publishes MAC state-change events to an MQTT
// broker for shore-side monitoring, adapted from pskreporter/client.go's
// Paho wiring pattern: SetOnConnectHandler/SetConnectionLostHandler for
// connection state and a bounded channel between producer and publish
// goroutine. Reconnection is driven by hand with the package's own
// exponential backoff rather than Paho's built-in retry, since an
// underwater link's outages run far longer than Paho's reconnect
// interval is tuned for.
package telemetry

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	"github.com/goby3/mac/mac"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is the wire shape published to the telemetry topic. Which of
// the optional fields are set depends on Kind.
type Event struct {
	Kind         string    `json:"kind"`
	Src          int       `json:"src,omitempty"`
	Dest         int       `json:"dest,omitempty"`
	SlotType     int       `json:"slot_type,omitempty"`
	Transmitted  bool      `json:"transmitted,omitempty"`
	CycleLength  int       `json:"cycle_length,omitempty"`
	SlotCount    int       `json:"slot_count,omitempty"`
	At           time.Time `json:"at"`
}

const (
	kindDiscovery   = "discovery"
	kindEviction    = "eviction"
	kindCycleChange = "cycle_change"
	kindTick        = "tick"
)

// Publisher implements mac.AuditSink by queuing events and publishing
// them to an MQTT topic on a background goroutine. The MAC tick
// handler never blocks on network I/O: a full queue drops the oldest
// queued event rather than the new one, favoring current state over
// stale backlog.
type Publisher struct {
	broker   string
	port     int
	topic    string
	clientID string

	mu           sync.Mutex
	client       mqtt.Client
	queue        chan []byte
	stop         chan struct{}
	done         chan struct{}
	logger       *log.Logger
	backoff      *backoff
	reconnecting bool

	lastDropLog time.Time
}

// NewPublisher constructs a Publisher. queueDepth bounds the number of
// pending events; values <= 0 default to 256.
func NewPublisher(broker string, port int, topic, clientID string, queueDepth int, logger *log.Logger) *Publisher {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		broker:   broker,
		port:     port,
		topic:    topic,
		clientID: clientID,
		queue:    make(chan []byte, queueDepth),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
		backoff:  newBackoff(time.Second, time.Minute),
	}
}

// Connect opens the MQTT connection and starts the publish loop.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.broker, p.port))
	opts.SetClientID(p.clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(false)
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)

	p.mu.Lock()
	p.client = mqtt.NewClient(opts)
	client := p.client
	p.mu.Unlock()

	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "telemetry: connect to %s:%d", p.broker, p.port)
	}

	go p.publishLoop()
	return nil
}

func (p *Publisher) onConnect(mqtt.Client) {
	p.backoff.Reset()
	p.logger.Printf("telemetry: connected to %s:%d, publishing to %s", p.broker, p.port, p.topic)
}

func (p *Publisher) onConnectionLost(_ mqtt.Client, err error) {
	p.logger.Printf("telemetry: connection lost: %v", err)
	p.mu.Lock()
	already := p.reconnecting
	p.reconnecting = true
	p.mu.Unlock()
	if !already {
		go p.reconnectLoop()
	}
}

// reconnectLoop retries Connect with the package's exponential backoff
// until it succeeds or Stop is called. onConnect resets the backoff on
// success, so the next outage starts from the base delay again.
func (p *Publisher) reconnectLoop() {
	defer func() {
		p.mu.Lock()
		p.reconnecting = false
		p.mu.Unlock()
	}()
	for {
		wait := p.backoff.Next()
		timer := time.NewTimer(wait)
		select {
		case <-p.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		p.mu.Lock()
		client := p.client
		p.mu.Unlock()
		if client == nil {
			return
		}
		token := client.Connect()
		token.Wait()
		if token.Error() == nil {
			return
		}
		p.logger.Printf("telemetry: reconnect attempt failed: %v", token.Error())
	}
}

func (p *Publisher) publishLoop() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case payload, ok := <-p.queue:
			if !ok {
				return
			}
			p.mu.Lock()
			client := p.client
			p.mu.Unlock()
			if client == nil || !client.IsConnected() {
				continue
			}
			token := client.Publish(p.topic, 0, false, payload)
			token.Wait()
			if err := token.Error(); err != nil {
				p.logger.Printf("telemetry: publish failed: %v", err)
			}
		}
	}
}

// enqueue drops the oldest queued event when full rather than
// blocking the caller, since the caller is the MAC tick handler.
func (p *Publisher) enqueue(e Event) {
	payload, err := jsonAPI.Marshal(e)
	if err != nil {
		p.logger.Printf("telemetry: marshal %s event: %v", e.Kind, err)
		return
	}
	select {
	case p.queue <- payload:
		return
	default:
	}
	select {
	case <-p.queue:
	default:
	}
	select {
	case p.queue <- payload:
	default:
		p.logDrop(e.Kind)
	}
}

func (p *Publisher) logDrop(kind string) {
	now := time.Now()
	if now.Sub(p.lastDropLog) < time.Second {
		return
	}
	p.lastDropLog = now
	p.logger.Printf("telemetry: queue full, dropped %s event", kind)
}

// RecordDiscovery implements mac.AuditSink.
func (p *Publisher) RecordDiscovery(src int, at time.Time) {
	p.enqueue(Event{Kind: kindDiscovery, Src: src, At: at})
}

// RecordEviction implements mac.AuditSink.
func (p *Publisher) RecordEviction(src int, at time.Time) {
	p.enqueue(Event{Kind: kindEviction, Src: src, At: at})
}

// RecordCycleChange implements mac.AuditSink.
func (p *Publisher) RecordCycleChange(cycleLength, slotCount int, at time.Time) {
	p.enqueue(Event{Kind: kindCycleChange, CycleLength: cycleLength, SlotCount: slotCount, At: at})
}

// RecordTick implements mac.AuditSink.
func (p *Publisher) RecordTick(s mac.Slot, transmitted bool, at time.Time) {
	p.enqueue(Event{
		Kind:        kindTick,
		Src:         s.Src,
		Dest:        s.Dest,
		SlotType:    int(s.Type),
		Transmitted: transmitted,
		At:          at,
	})
}

// Stop disconnects from the broker and stops the publish loop.
func (p *Publisher) Stop() {
	close(p.stop)
	<-p.done
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}

var _ mac.AuditSink = (*Publisher)(nil)
