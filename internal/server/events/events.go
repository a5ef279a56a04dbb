// Package events publishes service status and user lifecycle notifications to
// the message bus. Delivery is best effort: failures are logged, never
// returned to request handlers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Subject suffixes. The full subject is "<service>.<suffix>", see Subject.
const (
	SubjectStatus      = "status"
	SubjectUserCreated = "user.created"
)

// Status values carried by SubjectStatus.
const (
	StatusRunning    = "running"
	StatusNotRunning = "not_running"
)

type StatusEvent struct {
	Service string    `json:"service"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}

type UserCreatedEvent struct {
	UserID   int64     `json:"user_id"`
	UserName string    `json:"username"`
	RoleID   int64     `json:"role_id"`
	At       time.Time `json:"at"`
}

// Publisher is what services depend on.
type Publisher interface {
	PublishStatus(ctx context.Context, status string)
	PublishUserCreated(ctx context.Context, ev UserCreatedEvent)
}

// Conn is the subset of *nats.Conn used here.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher encodes events as JSON and publishes them on a NATS
// connection.
type NATSPublisher struct {
	conn    Conn
	service string
	logger  logging.Logger
	now     func() time.Time
}

func NewNATSPublisher(conn Conn, service string, logger logging.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		service: service,
		logger:  logger.With("module", "events"),
		now:     time.Now,
	}
}

// Subject returns the subject an event with the given suffix is published on
// by service.
func Subject(service, suffix string) string {
	return service + "." + suffix
}

func (p *NATSPublisher) PublishStatus(ctx context.Context, status string) {
	p.publish(ctx, Subject(p.service, SubjectStatus), StatusEvent{Service: p.service, Status: status, At: p.now()})
}

func (p *NATSPublisher) PublishUserCreated(ctx context.Context, ev UserCreatedEvent) {
	if ev.At.IsZero() {
		ev.At = p.now()
	}
	p.publish(ctx, Subject(p.service, SubjectUserCreated), ev)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Error(ctx, "encode event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn(ctx, "publish event", "subject", subject, "error", err)
		return
	}
	p.logger.Debug(ctx, "event published", "subject", subject)
}

// NopPublisher drops every event. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStatus(context.Context, string)                {}
func (NopPublisher) PublishUserCreated(context.Context, UserCreatedEvent) {}
