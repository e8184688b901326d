// Package dispatch delivers alert decisions to the notification relay.
package dispatch

import (
	"sync/atomic"

	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/metrics"
	"github.com/mtskcm/iot-service-notifier/internal/models"
	"github.com/mtskcm/iot-service-notifier/internal/notify"
)

// Dispatcher hands decisions to the notifier collaborator. Delivery is
// fire-and-forget: a failed notification is logged and counted, never
// retried, and never propagated to block ingestion of subsequent readings.
type Dispatcher struct {
	notifier notify.Notifier

	sent   atomic.Uint64
	failed atomic.Uint64
}

// New creates a Dispatcher over the given notifier.
func New(notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

// Dispatch submits each decision as one notification.
func (d *Dispatcher) Dispatch(decisions []models.AlertDecision) {
	for _, decision := range decisions {
		d.Send(decision.Title, decision.Body)
	}
}

// Send delivers one titled message and reports whether delivery succeeded.
func (d *Dispatcher) Send(title, body string) bool {
	log := logger.WithComponent("dispatch")

	if err := d.notifier.Notify(title, body); err != nil {
		log.Error().
			Err(err).
			Str("title", title).
			Msg("notification delivery failed")
		d.failed.Add(1)
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return false
	}

	log.Info().
		Str("title", title).
		Msg("notification sent")
	d.sent.Add(1)
	metrics.NotificationsSent.WithLabelValues("success").Inc()
	return true
}

// Stats returns dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load()}
}

// Stats holds dispatcher counters.
type Stats struct {
	Sent   uint64
	Failed uint64
}
