// Package events is the fire-and-forget sink for finished attempts and
// session results. Publish failures are logged and surfaced to callers as
// errors, but the session engine never blocks on them.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/ensayo-paes/practice-service/internal/models"
)

const (
	eventSource  = "practice-service"
	eventVersion = "1.0"

	TopicSessionEvents = "practice.session.events"

	EventAttemptsRecorded = "session.attempts_recorded"
	EventSessionFinished  = "session.finished"
	EventSessionAbandoned = "session.abandoned"
)

// Event is the envelope every published message uses.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AttemptBatchEvent carries the per-question attempts of a session.
type AttemptBatchEvent struct {
	SessionID string             `json:"session_id"`
	StudentID string             `json:"student_id"`
	Subject   models.Subject     `json:"subject"`
	Mode      models.SessionMode `json:"mode"`
	Attempts  []models.Attempt   `json:"attempts"`
}

// SessionFinishedEvent carries the terminal summary of a session.
type SessionFinishedEvent struct {
	SessionID string               `json:"session_id"`
	StudentID string               `json:"student_id"`
	Result    models.SessionResult `json:"result"`
	Config    models.SessionConfig `json:"config"`
}

// EventPublisher is the outbound port to the remote attempt/result sink.
type EventPublisher interface {
	Publish(eventType string, data interface{}) error
	Close() error
}

func newEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ===== WATERMILL PUBLISHERS =====

type watermillPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaEventPublisher connects to the configured brokers. Used in
// production; local development and tests use the GoChannel or mock
// publisher instead.
func NewKafkaEventPublisher(brokers []string, logger *slog.Logger) (EventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &watermillPublisher{
		publisher: publisher,
		topic:     TopicSessionEvents,
		logger:    logger,
	}, nil
}

// NewGoChannelEventPublisher is an in-process watermill pub/sub, handy
// when no broker is configured.
func NewGoChannelEventPublisher(logger *slog.Logger) EventPublisher {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewSlogLogger(logger),
	)

	return &watermillPublisher{
		publisher: pubSub,
		topic:     TopicSessionEvents,
		logger:    logger,
	}
}

func (p *watermillPublisher) Publish(eventType string, data interface{}) error {
	event := newEvent(eventType, data)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", eventType)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", eventType, err)
	}

	p.logger.Debug("Event published",
		"event_id", event.ID,
		"event_type", eventType)

	return nil
}

func (p *watermillPublisher) Close() error {
	return p.publisher.Close()
}

// ===== MOCK PUBLISHER (tests) =====

// MockEventPublisher records events instead of sending them.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger

	// FailNext makes the next Publish return an error, for testing the
	// best-effort contract.
	FailNext bool
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (m *MockEventPublisher) Publish(eventType string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext {
		m.FailNext = false
		return fmt.Errorf("mock publish failure")
	}

	m.events = append(m.events, newEvent(eventType, data))
	return nil
}

func (m *MockEventPublisher) Close() error { return nil }

func (m *MockEventPublisher) GetPublishedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
