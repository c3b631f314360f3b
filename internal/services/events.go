package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Order event types.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
)

// Envelope wraps every event published to the order topic.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	OrderID    string          `json:"order_id"`
	Payload    json.RawMessage `json:"payload"`
}

// EventItem is an order line inside an event payload.
type EventItem struct {
	ProductID string  `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID       string      `json:"order_id"`
	Email         string      `json:"email"`
	Total         float64     `json:"total"`
	PaymentMethod string      `json:"payment_method"`
	PaymentStatus string      `json:"payment_status"`
	Items         []EventItem `json:"items"`
}

type OrderPaidPayload struct {
	OrderID   string  `json:"order_id"`
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// EventPublisher publishes order events. Publishing never blocks the
// caller and never fails it.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, orderID string, payload any)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) {}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventProducer buffers events and writes them to Kafka from a single
// background goroutine.
type EventProducer struct {
	w            messageWriter
	inbox        chan kafka.Message
	closeCh      chan struct{}
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewEventProducer creates a producer for topic, keyed by order id so all
// events of one order land on the same partition.
func NewEventProducer(brokers []string, topic string, buf int) *EventProducer {
	return newEventProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, buf)
}

func newEventProducer(w messageWriter, buf int) *EventProducer {
	return &EventProducer{
		w:            w,
		inbox:        make(chan kafka.Message, buf),
		closeCh:      make(chan struct{}),
		writeTimeout: 10 * time.Second,
	}
}

// Start runs the writer loop until Close is called or ctx is done.
func (p *EventProducer) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.closeCh:
		}
	}()

	go func() {
		for m := range p.inbox {
			wctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
			if err := p.w.WriteMessages(wctx, m); err != nil {
				log.Printf("[Events] failed to write %s for order %s: %v", headerValue(m, "x-event-type"), m.Key, err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Printf("[Events] failed to close writer: %v", err)
		}
		close(p.closeCh)
	}()
}

// Publish queues an event. When the buffer is full the event is dropped.
func (p *EventProducer) Publish(_ context.Context, eventType, orderID string, payload any) {
	msg, err := newEventMessage(eventType, orderID, payload)
	if err != nil {
		log.Printf("[Events] failed to encode %s: %v", eventType, err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("[Events] producer closed, dropping %s for order %s", eventType, orderID)
		return
	}
	select {
	case p.inbox <- msg:
	default:
		log.Printf("[Events] buffer full, dropping %s for order %s", eventType, orderID)
	}
}

// Close stops accepting events. Buffered events are still flushed.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the buffered events are flushed and the writer
// is closed.
func (p *EventProducer) WaitClosed() { <-p.closeCh }

// SyncEventPublisher writes each event to Kafka before Publish returns.
// Use it where nothing may be left buffered once a request is answered.
type SyncEventPublisher struct {
	w            messageWriter
	writeTimeout time.Duration
}

// NewSyncEventPublisher creates a SyncEventPublisher for topic.
func NewSyncEventPublisher(brokers []string, topic string) *SyncEventPublisher {
	return newSyncEventPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

func newSyncEventPublisher(w messageWriter) *SyncEventPublisher {
	return &SyncEventPublisher{w: w, writeTimeout: 10 * time.Second}
}

// Publish writes the event, logging failures.
func (p *SyncEventPublisher) Publish(ctx context.Context, eventType, orderID string, payload any) {
	msg, err := newEventMessage(eventType, orderID, payload)
	if err != nil {
		log.Printf("[Events] failed to encode %s: %v", eventType, err)
		return
	}

	wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(wctx, msg); err != nil {
		log.Printf("[Events] failed to write %s for order %s: %v", eventType, orderID, err)
	}
}

// Close closes the underlying writer.
func (p *SyncEventPublisher) Close() error {
	return p.w.Close()
}

func newEventMessage(eventType, orderID string, payload any) (kafka.Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("payload: %w", err)
	}

	now := time.Now().UTC()
	value, err := json.Marshal(Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: now,
		OrderID:    orderID,
		Payload:    raw,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("envelope: %w", err)
	}

	return kafka.Message{
		Key:   []byte(orderID),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
		},
	}, nil
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
