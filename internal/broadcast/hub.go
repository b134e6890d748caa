// Package broadcast fans seat events out to everyone watching a show. It is
// a hint channel only: delivery is best effort, at most once, and nothing
// is replayed to late or reconnecting subscribers.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/monitoring"
)

// DefaultBuffer is the per-subscriber event buffer.
const DefaultBuffer = 64

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("broadcast hub closed")

type subscription struct {
	showID string
	cancel context.CancelFunc
	done   chan struct{}
}

// Hub is an in-process pub/sub keyed by show. Every session has at most one
// live subscription.
type Hub struct {
	pubsub *gochannel.GoChannel
	buffer int
	logger *logrus.Entry

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

// NewHub builds a hub. buffer <= 0 selects DefaultBuffer.
func NewHub(logger *logrus.Entry, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("component", "broadcast")
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		// Each forwarder acks immediately and never blocks, so waiting for
		// the ack keeps per-subscriber order without stalling publishers.
		BlockPublishUntilSubscriberAck: true,
	}, logging.NewWatermill(logger))
	return &Hub{
		pubsub: pubsub,
		buffer: buffer,
		logger: logger,
		subs:   make(map[string]*subscription),
	}
}

func topic(showID string) string { return "seats." + showID }

// Publish sends ev to every subscriber of ev.ShowID. Failures are logged,
// never returned: the hub has no say in correctness.
func (h *Hub) Publish(ctx context.Context, ev model.SeatEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("encoding seat event failed")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := h.pubsub.Publish(topic(ev.ShowID), msg); err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"show_id": ev.ShowID,
			"seat":    ev.SeatNumber,
		}).Warn("publishing seat event failed")
	}
}

// Subscribe registers sessionID as a viewer of showID and returns its event
// stream. An existing subscription of the same session is swapped out in
// the same critical section, so concurrent calls for one session leave
// exactly one live stream; the replaced stream is closed before returning.
// Streams are closed by Unsubscribe or Close.
func (h *Hub) Subscribe(showID, sessionID string) (<-chan model.SeatEvent, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := h.pubsub.Subscribe(ctx, topic(showID))
	if err != nil {
		h.mu.Unlock()
		cancel()
		return nil, err
	}
	old := h.subs[sessionID]
	sub := &subscription{showID: showID, cancel: cancel, done: make(chan struct{})}
	h.subs[sessionID] = sub
	h.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}

	out := make(chan model.SeatEvent, h.buffer)
	go h.forward(sessionID, sub, msgs, out)
	monitoring.SubscriberAdded()
	return out, nil
}

// forward decodes messages into out until the watermill subscriber closes.
func (h *Hub) forward(sessionID string, sub *subscription, msgs <-chan *message.Message, out chan<- model.SeatEvent) {
	defer close(sub.done)
	defer close(out)
	defer monitoring.SubscriberRemoved()

	for msg := range msgs {
		var ev model.SeatEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			h.logger.WithError(err).Warn("dropping undecodable seat event")
			msg.Ack()
			continue
		}
		select {
		case out <- ev:
		default:
			monitoring.BroadcastDropped()
			h.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"show_id":    sub.showID,
			}).Debug("subscriber buffer full, seat event dropped")
		}
		msg.Ack()
	}
}

// Unsubscribe closes the session's subscription, if any, and waits until
// its stream is closed.
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	sub, ok := h.subs[sessionID]
	if ok {
		delete(h.subs, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	sub.cancel()
	<-sub.done
}

// Subscribers returns how many sessions currently watch showID.
func (h *Hub) Subscribers(showID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.subs {
		if s.showID == showID {
			n++
		}
	}
	return n
}

// Close ends every subscription and the underlying pub/sub.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
	return h.pubsub.Close()
}
