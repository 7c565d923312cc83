// Package metrics provides Prometheus metrics for the camera server:
// command traffic, streaming throughput, and connection state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shycats/vcam/internal/events"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcam",
		Subsystem: "server",
		Name:      "commands_total",
		Help:      "Protocol commands handled, by category",
	}, []string{"category"})

	protocolErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcam",
		Subsystem: "server",
		Name:      "protocol_errors_total",
		Help:      "Error notifications sent to the client, by kind",
	}, []string{"kind"})

	clientConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vcam",
		Subsystem: "server",
		Name:      "client_connected",
		Help:      "1 while a client session is active",
	})

	framesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcam",
		Subsystem: "streaming",
		Name:      "frames_sent_total",
		Help:      "Viewport frames pushed to the encoder, by trigger",
	}, []string{"trigger"})

	frameBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vcam",
		Subsystem: "streaming",
		Name:      "frame_bytes_total",
		Help:      "Raw BGRA bytes written to the encoder stdin",
	})

	streamingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vcam",
		Subsystem: "streaming",
		Name:      "active",
		Help:      "1 while the encoder pipeline is running",
	})

	announcementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vcam",
		Subsystem: "announce",
		Name:      "registrations_total",
		Help:      "Zeroconf service registrations performed",
	})

	scriptRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcam",
		Subsystem: "scripts",
		Name:      "runs_total",
		Help:      "Script executions, by outcome",
	}, []string{"outcome"})
)

// CountCommand records a handled protocol command. Category is one of
// "ask", "set", "do".
func CountCommand(category string) {
	commandsTotal.WithLabelValues(category).Inc()
}

// CountProtocolError records an error notification sent to the client.
func CountProtocolError(kind string) {
	protocolErrorsTotal.WithLabelValues(kind).Inc()
}

// CountFrame records one frame pushed to the encoder. Trigger is "pull"
// for client-requested frames or "autosend" for scheduler frames.
func CountFrame(trigger string, bytes int) {
	framesSentTotal.WithLabelValues(trigger).Inc()
	frameBytesTotal.Add(float64(bytes))
}

// CountAnnouncement records one zeroconf registration cycle.
func CountAnnouncement() {
	announcementsTotal.Inc()
}

// CountScriptRun records a script execution. Outcome is "ok" or "error".
func CountScriptRun(outcome string) {
	scriptRunsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus scrape handler for all registered
// collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Bind drives the connection and streaming gauges from bus events.
// Returns an unsubscribe function releasing all subscriptions.
func Bind(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(_ events.ClientConnectedEvent) {
			clientConnected.Set(1)
		}),
		bus.Subscribe(func(_ events.ClientDisconnectedEvent) {
			clientConnected.Set(0)
		}),
		bus.Subscribe(func(_ events.StreamingStartedEvent) {
			streamingActive.Set(1)
		}),
		bus.Subscribe(func(_ events.StreamingStoppedEvent) {
			streamingActive.Set(0)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
