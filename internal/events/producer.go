// Package events publishes account, auth and record events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	AccountRegistered = "account.registered"
	PasswordChanged   = "account.password_changed"
	LoginSucceeded    = "auth.login_succeeded"
	LoginFailed       = "auth.login_failed"
	TokenRevoked      = "auth.token_revoked"
	TokenRefreshed    = "auth.token_refreshed"
	RecordCreated     = "record.created"
	RecordUpdated     = "record.updated"
	RecordDeleted     = "record.deleted"
)

const writeTimeout = 5 * time.Second

type Event struct {
	Type       string         `json:"type"`
	AccountID  uint           `json:"account_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(eventType string, accountID uint, data map[string]any) Event {
	return Event{
		Type:       eventType,
		AccountID:  accountID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: empty topic")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w}, nil
}

// Publish keys messages by account so one account's events stay ordered.
func (p *Producer) Publish(ctx context.Context, e Event) error {
	msg, err := encode(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(e Event) (kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.AccountID), 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

// Nop drops every event. It stands in when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error {
	return nil
}

func (Nop) Close() error {
	return nil
}
