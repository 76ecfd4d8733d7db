// Package bus forwards lifecycle events to NATS JetStream.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/mattjoyce/launchbridge/internal/events"
)

// Publisher publishes a payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Source is the subscription side of the event hub.
type Source interface {
	Subscribe(prefixes ...string) (<-chan events.Event, func())
}

// Bus wraps a NATS JetStream connection for publishing events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a Bus connected to the provided NATS endpoint.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &Bus{conn: nc, js: js}, nil
}

// EnsureStream creates the stream capturing prefix.> unless it already exists.
func (b *Bus) EnsureStream(name, prefix string) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if _, err := b.js.StreamInfo(name); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{prefix + ".>"},
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}

// Close shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish sends data to the given subject and waits for the stream ack.
func (b *Bus) Publish(ctx context.Context, subj string, data []byte) error {
	if b == nil {
		return errors.New("nil bus")
	}
	_, err := b.js.Publish(subj, data, nats.Context(ctx))
	return err
}

// Subject maps an event type onto the NATS subject under prefix.
func Subject(prefix, eventType string) string {
	t := strings.NewReplacer(" ", "_", "*", "_", ">", "_").Replace(eventType)
	if prefix == "" {
		return t
	}
	return prefix + "." + t
}

// StreamName derives a JetStream stream name from a subject prefix.
func StreamName(prefix string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(prefix))
}

// Forward relays every hub event to pub until ctx is cancelled. Publish
// failures are logged and the event is dropped.
func Forward(ctx context.Context, src Source, pub Publisher, prefix string, logger *slog.Logger) error {
	ch, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warn("event encode failed", "type", ev.Type, "error", err)
				continue
			}
			subj := Subject(prefix, ev.Type)
			if err := pub.Publish(ctx, subj, data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("event forward failed", "subject", subj, "event_id", ev.ID, "error", err)
			}
		}
	}
}
