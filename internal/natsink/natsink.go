// Package natsink republishes device tree events to NATS.
//
// Every list change and attribute change of a tree.Tree becomes one JSON
// message on <subject>.added, <subject>.removed or <subject>.changed.
package natsink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/ardnew/usbtree/pkg"
	"github.com/ardnew/usbtree/tree"
)

// Event types, also used as subject suffixes.
const (
	TypeAdded   = "added"
	TypeRemoved = "removed"
	TypeChanged = "changed"
)

// Publisher sends a message on a subject. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Connect dials a NATS server for use as a Publisher.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	opts = append([]nats.Option{
		nats.Name("usbtree"),
		nats.MaxReconnects(-1),
	}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// Event is the JSON payload of a published message.
type Event struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Time             time.Time `json:"time"`
	Attribute        string    `json:"attribute,omitempty"`
	InstanceID       string    `json:"instance_id"`
	Description      string    `json:"description"`
	ClassGUID        string    `json:"class_guid"`
	ClassDescription string    `json:"class_description"`
	VendorID         int       `json:"vendor_id"`
	ProductID        int       `json:"product_id"`
	Revision         int       `json:"revision"`
	Serial           string    `json:"serial,omitempty"`
	IsInterface      bool      `json:"is_interface"`
	Connected        bool      `json:"connected"`
}

// NewEvent captures the current state of d.
func NewEvent(typ string, d *tree.Device, now time.Time) Event {
	return Event{
		ID:               uuid.NewString(),
		Type:             typ,
		Time:             now.UTC(),
		InstanceID:       d.InstanceID(),
		Description:      d.Description(),
		ClassGUID:        d.ClassGUID().String(),
		ClassDescription: d.ClassDescription(),
		VendorID:         d.VendorID(),
		ProductID:        d.ProductID(),
		Revision:         d.Revision(),
		Serial:           d.Serial(),
		IsInterface:      d.IsInterface(),
		Connected:        d.IsConnected(),
	}
}

// Sink publishes tree events through a Publisher.
type Sink struct {
	pub     Publisher
	subject string
	log     *slog.Logger
	now     func() time.Time

	published atomic.Uint64
	failed    atomic.Uint64
}

// New returns a Sink publishing below subject.
func New(pub Publisher, subject string, l *slog.Logger) (*Sink, error) {
	if pub == nil || subject == "" {
		return nil, fmt.Errorf("new sink: %w", pkg.ErrInvalidParameter)
	}
	if l == nil {
		l = pkg.Logger(pkg.ComponentSink)
	} else {
		l = l.With("component", string(pkg.ComponentSink))
	}
	return &Sink{
		pub:     pub,
		subject: subject,
		log:     l,
		now:     time.Now,
	}, nil
}

// Attach follows the list of t and the attributes of every listed device
// until the returned function is called.
func (s *Sink) Attach(t *tree.Tree) (detach func()) {
	unfollow := t.List().Follow(s.onChange)
	unsubscribe := t.List().Subscribe(s.onList)
	return func() {
		unsubscribe()
		unfollow()
	}
}

// Stats returns the number of published and failed messages.
func (s *Sink) Stats() (published, failed uint64) {
	return s.published.Load(), s.failed.Load()
}

func (s *Sink) onList(ev tree.ListEvent) {
	switch ev.Action {
	case tree.ListAdded:
		s.emit(NewEvent(TypeAdded, ev.Device, s.now()))
	case tree.ListRemoved:
		s.emit(NewEvent(TypeRemoved, ev.Device, s.now()))
	}
}

func (s *Sink) onChange(d *tree.Device, attr tree.Attribute) {
	ev := NewEvent(TypeChanged, d, s.now())
	ev.Attribute = attr.String()
	s.emit(ev)
}

// emit publishes ev. Failures are logged and counted; the tree keeps going.
func (s *Sink) emit(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.failed.Add(1)
		s.log.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}

	subject := s.subject + "." + ev.Type
	if err := s.pub.Publish(subject, data); err != nil {
		s.failed.Add(1)
		s.log.Warn("failed to publish event", "subject", subject, "id", ev.InstanceID, "error", err)
		return
	}
	s.published.Add(1)
	s.log.Debug("published event", "subject", subject, "id", ev.InstanceID)
}
