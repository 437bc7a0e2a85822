package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Webhook metrics
	WebhooksReceivedTotal  int64
	WebhooksProcessedTotal int64
	WebhookErrorsTotal     int64

	// Call metrics
	CallsStartedTotal int64
	CallsEndedTotal   int64
	CallsMissedTotal  int64

	// Ticket metrics
	TicketsAssignedTotal int64
	TicketsPendingTotal  int64
	TicketsResolvedTotal int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Event bus metrics
	EventsPublishedTotal int64

	// Lookup metrics
	LookupRequestsTotal int64
	LookupErrorsTotal   int64

	// Snapshot metrics
	SnapshotCyclesTotal  int64
	SnapshotErrorsTotal  int64
	lastSnapshotDuration time.Duration

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			httpRequestsTotal: make(map[string]map[int]int64),
			startTime:         time.Now(),
		}
	})
	return instance
}

// RecordWebhookReceived increments the webhooks received counter
func (m *Metrics) RecordWebhookReceived() {
	m.mu.Lock()
	m.WebhooksReceivedTotal++
	m.mu.Unlock()
}

// RecordWebhookProcessed increments the webhooks processed counter
func (m *Metrics) RecordWebhookProcessed() {
	m.mu.Lock()
	m.WebhooksProcessedTotal++
	m.mu.Unlock()
}

// RecordWebhookError increments the webhook error counter
func (m *Metrics) RecordWebhookError() {
	m.mu.Lock()
	m.WebhookErrorsTotal++
	m.mu.Unlock()
}

// RecordCallStarted increments the calls started counter
func (m *Metrics) RecordCallStarted() {
	m.mu.Lock()
	m.CallsStartedTotal++
	m.mu.Unlock()
}

// RecordCallEnded increments the calls ended counter, and the missed
// counter when the call went unanswered
func (m *Metrics) RecordCallEnded(missed bool) {
	m.mu.Lock()
	m.CallsEndedTotal++
	if missed {
		m.CallsMissedTotal++
	}
	m.mu.Unlock()
}

// RecordTicketAssigned increments the tickets assigned counter
func (m *Metrics) RecordTicketAssigned() {
	m.mu.Lock()
	m.TicketsAssignedTotal++
	m.mu.Unlock()
}

// RecordTicketPending increments the tickets pending counter
func (m *Metrics) RecordTicketPending() {
	m.mu.Lock()
	m.TicketsPendingTotal++
	m.mu.Unlock()
}

// RecordTicketResolved increments the tickets resolved counter
func (m *Metrics) RecordTicketResolved() {
	m.mu.Lock()
	m.TicketsResolvedTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordEventPublished increments the events published counter
func (m *Metrics) RecordEventPublished() {
	m.mu.Lock()
	m.EventsPublishedTotal++
	m.mu.Unlock()
}

// RecordLookup records an identity lookup attempt
func (m *Metrics) RecordLookup(failed bool) {
	m.mu.Lock()
	m.LookupRequestsTotal++
	if failed {
		m.LookupErrorsTotal++
	}
	m.mu.Unlock()
}

// RecordSnapshotCycle records a snapshot broadcast cycle
func (m *Metrics) RecordSnapshotCycle(duration time.Duration) {
	m.mu.Lock()
	m.SnapshotCyclesTotal++
	m.lastSnapshotDuration = duration
	m.mu.Unlock()
}

// RecordSnapshotError increments snapshot error counter
func (m *Metrics) RecordSnapshotError() {
	m.mu.Lock()
	m.SnapshotErrorsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("cce_uptime_seconds", time.Since(m.startTime).Seconds())

		// Webhook metrics
		write("cce_webhooks_received_total", m.WebhooksReceivedTotal)
		write("cce_webhooks_processed_total", m.WebhooksProcessedTotal)
		write("cce_webhook_errors_total", m.WebhookErrorsTotal)

		// Calculate webhooks per second
		uptimeSeconds := time.Since(m.startTime).Seconds()
		if uptimeSeconds > 0 {
			write("cce_webhooks_per_second", float64(m.WebhooksReceivedTotal)/uptimeSeconds)
		}

		// Call metrics
		write("cce_calls_started_total", m.CallsStartedTotal)
		write("cce_calls_ended_total", m.CallsEndedTotal)
		write("cce_calls_missed_total", m.CallsMissedTotal)

		// Ticket metrics
		write("cce_tickets_assigned_total", m.TicketsAssignedTotal)
		write("cce_tickets_pending_total", m.TicketsPendingTotal)
		write("cce_tickets_resolved_total", m.TicketsResolvedTotal)

		// WebSocket metrics
		write("cce_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("cce_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("cce_websocket_active_connections", m.activeConnections)
		write("cce_websocket_messages_total", m.WebSocketMessagesTotal)
		write("cce_websocket_errors_total", m.WebSocketErrorsTotal)

		// Event bus metrics
		write("cce_events_published_total", m.EventsPublishedTotal)

		// Lookup metrics
		write("cce_lookup_requests_total", m.LookupRequestsTotal)
		write("cce_lookup_errors_total", m.LookupErrorsTotal)

		// Snapshot metrics
		write("cce_snapshot_cycles_total", m.SnapshotCyclesTotal)
		write("cce_snapshot_errors_total", m.SnapshotErrorsTotal)
		write("cce_snapshot_duration_seconds", m.lastSnapshotDuration.Seconds())

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("cce_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
