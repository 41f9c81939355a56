// Package metrics provides MQTT broker metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains Prometheus metrics for the MQTT publisher
type MQTTMetrics struct {
	registry *prometheus.Registry

	connectionStatus  prometheus.Gauge
	messagesDelivered prometheus.Counter
	errorsTotal       prometheus.Counter
	reconnectAttempts prometheus.Counter
	publishDuration   prometheus.Histogram
	messageSize       prometheus.Histogram

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewMQTTMetrics creates and registers new MQTT metrics
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *MQTTMetrics) initMetrics() error {
	m.connectionStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mqtt_connection_status",
			Help: "Current MQTT broker connection status (1 connected, 0 disconnected)",
		},
	)

	m.messagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_messages_delivered_total",
			Help: "Total number of messages delivered to the broker",
		},
	)

	m.errorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_errors_total",
			Help: "Total number of MQTT connection and publish errors",
		},
	)

	m.reconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_reconnect_attempts_total",
			Help: "Total number of broker reconnect attempts",
		},
	)

	m.publishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mqtt_publish_duration_seconds",
			Help:    "Duration of publish operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	m.messageSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mqtt_message_size_bytes",
			Help:    "Size of published message payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
	)

	m.collectors = []prometheus.Collector{
		m.connectionStatus,
		m.messagesDelivered,
		m.errorsTotal,
		m.reconnectAttempts,
		m.publishDuration,
		m.messageSize,
	}

	return nil
}

// Describe implements the Collector interface
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// UpdateConnectionStatus records the current broker connection state
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.connectionStatus.Set(1)
		return
	}
	m.connectionStatus.Set(0)
}

// IncrementMessagesDelivered counts one delivered message
func (m *MQTTMetrics) IncrementMessagesDelivered() {
	m.messagesDelivered.Inc()
}

// IncrementErrors counts one connection or publish error
func (m *MQTTMetrics) IncrementErrors() {
	m.errorsTotal.Inc()
}

// IncrementReconnectAttempts counts one reconnect attempt
func (m *MQTTMetrics) IncrementReconnectAttempts() {
	m.reconnectAttempts.Inc()
}

// StartPublishTimer returns a timer observing into the publish duration histogram
func (m *MQTTMetrics) StartPublishTimer() *prometheus.Timer {
	return prometheus.NewTimer(m.publishDuration)
}

// ObserveMessageSize records the payload size of a published message
func (m *MQTTMetrics) ObserveMessageSize(sizeBytes float64) {
	m.messageSize.Observe(sizeBytes)
}
