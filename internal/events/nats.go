package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	subjectPrefix = "fanwars"
	// pendingEvents bounds lifecycle messages buffered between the NATS reader
	// and the decoder. Overflow is dropped by the client as a slow consumer.
	pendingEvents = 1024
)

var subjects = map[Kind]string{
	KindRoomAdded:         subjectPrefix + ".rooms.added",
	KindMatchScoreChanged: subjectPrefix + ".matches.score",
	KindMatchEnded:        subjectPrefix + ".matches.ended",
}

// NATSBus publishes lifecycle events as JSON on NATS subjects so the poller
// and match servers can run as separate processes.
type NATSBus struct {
	conn   *nats.Conn
	owned  bool
	logger *zap.Logger
}

func DialNATS(url string, logger *zap.Logger) (*NATSBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("fanwars-match-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ErrorHandler(asyncErrorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	b := NewNATSBus(conn, logger)
	b.owned = true
	return b, nil
}

// asyncErrorHandler reports errors the client raises outside any call. A
// slow consumer means lifecycle events were dropped, so rooms may miss a
// score change or an end until the next event for the same match.
func asyncErrorHandler(logger *zap.Logger) nats.ErrHandler {
	return func(_ *nats.Conn, sub *nats.Subscription, err error) {
		var subject string
		if sub != nil {
			subject = sub.Subject
		}
		if errors.Is(err, nats.ErrSlowConsumer) {
			fields := []zap.Field{zap.String("subject", subject)}
			if sub != nil {
				if dropped, derr := sub.Dropped(); derr == nil {
					fields = append(fields, zap.Int("dropped", dropped))
				}
			}
			logger.Warn("nats slow consumer, lifecycle events dropped", fields...)
			return
		}
		logger.Error("nats async error", zap.String("subject", subject), zap.Error(err))
	}
}

func NewNATSBus(conn *nats.Conn, logger *zap.Logger) *NATSBus {
	return &NATSBus{conn: conn, logger: logger.Named("events")}
}

func (b *NATSBus) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, ok := subjects[e.Kind]
	if !ok {
		return fmt.Errorf("publishing event: unknown kind %q", e.Kind)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.Kind, err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s event: %w", e.Kind, err)
	}
	return b.conn.Flush()
}

func (b *NATSBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs := make(chan *nats.Msg, pendingEvents)
	sub, err := b.conn.ChanSubscribe(subjectPrefix+".>", msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribing to lifecycle events: %w", err)
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("subscribing to lifecycle events: %w", err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgs:
				var e Event
				if err := json.Unmarshal(m.Data, &e); err != nil {
					b.logger.Warn("dropping undecodable event", zap.String("subject", m.Subject), zap.Error(err))
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *NATSBus) Close() {
	if b.owned {
		b.conn.Close()
	}
}
