package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Task event types
const (
	TaskCreated       = "task.created"
	TaskUpdated       = "task.updated"
	TaskStatusChanged = "task.status_changed"
	TaskDeleted       = "task.deleted"
)

// TaskEvent is the message published for every committed task write
type TaskEvent struct {
	Type       string    `json:"type"`
	TaskID     string    `json:"taskId"`
	TenantID   string    `json:"tenantId"`
	EmployeeID string    `json:"employeeId,omitempty"`
	ActorID    string    `json:"actorId"`
	Status     string    `json:"status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends task events to a broker
type Publisher interface {
	Publish(ctx context.Context, event TaskEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes task events to a Kafka topic, keyed by tenant so a
// tenant's events stay ordered within a partition
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Publish sends one event
func (p *KafkaPublisher) Publish(ctx context.Context, event TaskEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal task event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.TenantID),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
