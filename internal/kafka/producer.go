package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"mesa-pos/internal/models"
)

type EventType string

const (
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventPaymentRecorded    EventType = "payment_recorded"
	EventOrderSettled       EventType = "order_settled"
)

type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// NewNoopProducer returns a producer that drops every event, for deployments
// without a broker.
func NewNoopProducer() *Producer {
	return &Producer{}
}

func (p *Producer) publish(key string, eventType EventType, payload interface{}) error {
	if p.Writer == nil {
		return nil
	}
	msgBytes, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishOrderCreated streams a new cart submission to the venue event topic
func (p *Producer) PublishOrderCreated(order models.OrderWithLines) error {
	return p.publish(order.OrderID, EventOrderCreated, order)
}

// PublishOrderStatusChanged streams a kitchen state transition
func (p *Producer) PublishOrderStatusChanged(order models.Order) error {
	return p.publish(order.OrderID, EventOrderStatusChanged, order)
}

// PublishPaymentRecorded streams one payment bucket of a settlement commit
func (p *Producer) PublishPaymentRecorded(payment models.PaymentRecord) error {
	return p.publish(payment.PaymentID, EventPaymentRecorded, payment)
}

// PublishOrderSettled streams the settled flag flip of an order
func (p *Producer) PublishOrderSettled(orderID, tableID string) error {
	return p.publish(orderID, EventOrderSettled, map[string]string{
		"order_id": orderID,
		"table_id": tableID,
	})
}

func (p *Producer) Close() error {
	if p.Writer == nil {
		return nil
	}
	return p.Writer.Close()
}
