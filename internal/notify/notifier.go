// Package notify emits domain events to the external audit and
// notification sink. Delivery is asynchronous and best effort: a sink
// failure is logged and never rolls back the transaction that produced
// the event.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	EventLeaseActivated    = "lease.activated"
	EventAddendumActivated = "addendum.activated"
	EventPaymentCompleted  = "payment.completed"
	EventPaymentRefunded   = "payment.refunded"
	EventLateFeeAssessed   = "latefee.assessed"
	EventLateFeeWaived     = "latefee.waived"
)

type Event struct {
	Name       string         `json:"name"`
	OccurredAt time.Time      `json:"occurredAt"`
	Fields     map[string]any `json:"fields"`
}

type Notifier struct {
	logger  *logrus.Logger
	sinkURL string
	client  *http.Client

	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// New starts the delivery worker. When sinkURL is empty events are only
// logged.
func New(logger *logrus.Logger, sinkURL string) *Notifier {
	n := &Notifier{
		logger:  logger,
		sinkURL: sinkURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		events:  make(chan Event, 256),
	}

	n.wg.Add(1)
	go n.run()

	return n
}

// Emit queues an event without blocking the caller. A full queue drops
// the event with a log line rather than stalling the request path.
func (n *Notifier) Emit(name string, fields map[string]any) {
	event := Event{Name: name, OccurredAt: time.Now(), Fields: fields}

	select {
	case n.events <- event:
	default:
		n.logger.WithField("event", name).Warn("notify queue full, dropping event")
	}
}

// Close stops accepting events and drains the queue.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.events)
	})
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for event := range n.events {
		n.deliver(event)
	}
}

func (n *Notifier) deliver(event Event) {
	entry := n.logger.WithFields(logrus.Fields{
		"event":  event.Name,
		"fields": event.Fields,
	})

	if n.sinkURL == "" {
		entry.Info("domain event")
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		entry.WithError(err).Error("failed to encode domain event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.sinkURL, bytes.NewReader(body))
	if err != nil {
		entry.WithError(err).Error("failed to build sink request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		entry.WithError(err).Error("failed to deliver domain event")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		entry.WithField("status", resp.StatusCode).Error("sink rejected domain event")
		return
	}

	entry.Debug("domain event delivered")
}
