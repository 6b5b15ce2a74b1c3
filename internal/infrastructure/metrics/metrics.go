// Package metrics exposes workflow activity as prometheus counters fed by domain events.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/domain/event"
)

const namespace = "trip_approval"

// Recorder counts domain events
type Recorder struct {
	registry *prometheus.Registry

	tripsCreated  prometheus.Counter
	commands      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	messages      *prometheus.CounterVec
	remindersSent prometheus.Counter
}

// NewRecorder creates a recorder on its own registry, with Go and process collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tripsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trips_created_total",
			Help:      "Total number of trip requests created",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Workflow commands by outcome",
		}, []string{"command", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Applied state transitions",
		}, []string{"from", "to"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Notification messages by visibility and result",
		}, []string{"visibility", "result"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Expense reminders posted by the sweep",
		}),
	}

	r.registry.MustRegister(
		r.tripsCreated,
		r.commands,
		r.transitions,
		r.messages,
		r.remindersSent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Subscribe registers the recorder's handlers on d
func (r *Recorder) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeTripCreated, "metrics.trip_created", r.onTripCreated)
	d.SubscribeNamed(event.TypeTripTransitioned, "metrics.transition", r.onTransition)
	d.SubscribeNamed(event.TypeCommandRejected, "metrics.command_rejected", r.onCommandRejected)
	d.SubscribeNamed(event.TypeReminderSent, "metrics.reminder_sent", r.onReminderSent)
	d.SubscribeAll("metrics.messages", r.onMessage,
		event.TypeMessagePosted, event.TypeMessageDeduplicated, event.TypeNotificationFailed)
}

// Handler serves the registry in the prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) onTripCreated(_ context.Context, _ *event.Event) error {
	r.tripsCreated.Inc()
	return nil
}

func (r *Recorder) onTransition(_ context.Context, evt *event.Event) error {
	r.commands.WithLabelValues(evt.GetPayloadString(event.KeyCommand), "applied").Inc()
	r.transitions.WithLabelValues(
		evt.GetPayloadString(event.KeyFromState),
		evt.GetPayloadString(event.KeyToState),
	).Inc()
	return nil
}

func (r *Recorder) onCommandRejected(_ context.Context, evt *event.Event) error {
	outcome := evt.GetPayloadString(event.KeyErrorKind)
	if outcome == "" {
		outcome = "error"
	}
	r.commands.WithLabelValues(evt.GetPayloadString(event.KeyCommand), outcome).Inc()
	return nil
}

func (r *Recorder) onReminderSent(_ context.Context, _ *event.Event) error {
	r.remindersSent.Inc()
	return nil
}

func (r *Recorder) onMessage(_ context.Context, evt *event.Event) error {
	var result string
	switch evt.Type {
	case event.TypeMessagePosted:
		result = "posted"
	case event.TypeMessageDeduplicated:
		result = "deduplicated"
	default:
		result = "failed"
	}
	r.messages.WithLabelValues(evt.GetPayloadString(event.KeyVisibility), result).Inc()
	return nil
}
