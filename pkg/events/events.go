package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/streetink-bookings/pkg/idx"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

const msgIDHeader = "Nats-Msg-Id"

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(msgIDHeader, idx.New().String())

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "msg_id", msg.Header.Get(msgIDHeader))

	return n.conn.PublishMsg(msg)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(fromNATS(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(fromNATS(msg))
	})
	return err
}

// Close drains pending messages before closing the connection.
func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func fromNATS(msg *nats.Msg) *Message {
	id := ""
	if msg.Header != nil {
		id = msg.Header.Get(msgIDHeader)
	}
	if id == "" {
		id = idx.New().String()
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        id,
	}
}

// Event subjects
const (
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
	BookingDeleted   = "booking.deleted"

	ClientDeleted           = "client.deleted"
	ClientActivityRefreshed = "client.activity.refreshed"
)

// BookingEvent is published on every booking.* subject.
type BookingEvent struct {
	BookingID  int64     `json:"booking_id"`
	ArtistID   int64     `json:"artist_id"`
	ClientID   int64     `json:"client_id"`
	Status     string    `json:"status"`
	Date       string    `json:"date"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ClientDeletedEvent struct {
	ClientID           int64     `json:"client_id"`
	ReassignedTo       int64     `json:"reassigned_to"`
	ReassignedBookings int64     `json:"reassigned_bookings"`
	DeletedAt          time.Time `json:"deleted_at"`
}

type ActivityRefreshedEvent struct {
	Checked     int       `json:"checked"`
	Inactive    int       `json:"inactive"`
	Active      int       `json:"active"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
