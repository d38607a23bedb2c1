package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const (
	EnrollmentCreated = "enrollment.created"
	CourseCompleted   = "course.completed"
	PaymentCompleted  = "payment.completed"
	PaymentFailed     = "payment.failed"
	PaymentRefunded   = "payment.refunded"
)

type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	UserID     uuid.UUID      `json:"user_id"`
	CourseID   *uuid.UUID     `json:"course_id,omitempty"`
	PaymentID  *uuid.UUID     `json:"payment_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`

	// RequestID ties the event to the HTTP request that caused it; empty for jobs.
	RequestID string `json:"request_id,omitempty"`
}

func New(typ string, userID uuid.UUID) Event {
	return Event{ID: uuid.New(), Type: typ, OccurredAt: time.Now().UTC(), UserID: userID}
}

func (e Event) WithCourse(id uuid.UUID) Event {
	e.CourseID = &id
	return e
}

func (e Event) WithPayment(id uuid.UUID) Event {
	e.PaymentID = &id
	return e
}

func (e Event) With(key string, val any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = val
	e.Data = data
	return e
}

// Publisher fans committed domain changes out to other services.
// Delivery is best effort; callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type noop struct {
	log *logger.Logger
}

func NewNoop(log *logger.Logger) Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &noop{log: log.With("publisher", "noop")}
}

func (n *noop) Publish(_ context.Context, evt Event) error {
	n.log.Debug("event dropped (no bus configured)", "type", evt.Type, "event_id", evt.ID)
	return nil
}

func (n *noop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
