package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventResults  EventType = "results"
	EventWarning  EventType = "warning"
	EventComplete EventType = "complete"
)

// RunEvent is one update about a run, fanned out to SSE clients and the
// optional message broker.
type RunEvent struct {
	RunID string    `json:"runId"`
	Type  EventType `json:"type"`
	Data  any       `json:"data"`
	Time  time.Time `json:"time"`
}

// EventPublisher forwards run events outside the process.
type EventPublisher interface {
	Publish(evt RunEvent) error
	Close() error
}

// EventHub fans run events out to per-run subscribers. Events for a slow
// subscriber are dropped rather than blocking the run.
type EventHub struct {
	mu        sync.Mutex
	clients   map[string]map[chan RunEvent]struct{}
	buffer    int
	publisher EventPublisher
}

// NewEventHub creates a hub. publisher may be nil.
func NewEventHub(publisher EventPublisher) *EventHub {
	return &EventHub{
		clients:   make(map[string]map[chan RunEvent]struct{}),
		buffer:    32,
		publisher: publisher,
	}
}

func (h *EventHub) Subscribe(runID string) chan RunEvent {
	ch := make(chan RunEvent, h.buffer)
	h.mu.Lock()
	if h.clients[runID] == nil {
		h.clients[runID] = make(map[chan RunEvent]struct{})
	}
	h.clients[runID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(runID string, ch chan RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.clients[runID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(h.clients, runID)
	}
	close(ch)
}

func (h *EventHub) Publish(evt RunEvent) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}

	h.mu.Lock()
	for ch := range h.clients[evt.RunID] {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
	h.mu.Unlock()

	if h.publisher != nil {
		if err := h.publisher.Publish(evt); err != nil {
			log.Printf("⚠️ Failed to forward %s event for run %s: %v\n", evt.Type, evt.RunID, err)
		}
	}
}

// Subscribers returns how many clients are listening to runID.
func (h *EventHub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[runID])
}

func (h *EventHub) Close() error {
	h.mu.Lock()
	for runID, subs := range h.clients {
		for ch := range subs {
			close(ch)
		}
		delete(h.clients, runID)
	}
	h.mu.Unlock()

	if h.publisher != nil {
		return h.publisher.Close()
	}
	return nil
}

const runUpdatesExchange = "run_updates"

type amqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher publishes run events to the run_updates topic exchange
// with routing key run.{id}.
func NewAMQPPublisher(url string) (EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(runUpdatesExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", runUpdatesExchange, err)
	}

	return &amqpPublisher{
		conn:     conn,
		channel:  ch,
		exchange: runUpdatesExchange,
	}, nil
}

// Publish implements EventPublisher.
func (p *amqpPublisher) Publish(evt RunEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.Publish(
		p.exchange,
		RoutingKey(evt.RunID),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   evt.Time,
			Type:        string(evt.Type),
			Body:        body,
		},
	)
}

// Close implements EventPublisher.
func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close rabbitmq channel: %w", err)
	}
	return p.conn.Close()
}

func RoutingKey(runID string) string {
	return "run." + runID
}
