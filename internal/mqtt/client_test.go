// client_test.go: Package mqtt provides an MQTT client implementation and associated tests.

package mqtt

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
)

// isMosquittoTestServerAvailable reports whether the public test broker is
// reachable, so the connection tests can skip instead of fail offline.
func isMosquittoTestServerAvailable() bool {
	conn, err := net.DialTimeout("tcp", "test.mosquitto.org:1883", 5*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func testSettings(broker string) *conf.Settings {
	settings := &conf.Settings{}
	settings.Main.Name = "TestNode"
	settings.Integrations.MQTT = conf.MQTTSettings{
		Enabled: true,
		Broker:  broker,
		Topic:   "pavewatch/assessments",
	}
	return settings
}

// createTestClient creates an MQTT client with a fresh metrics registry so
// tests can read metric values back through Gather.
func createTestClient(t *testing.T, broker string) (Client, *prometheus.Registry) {
	t.Helper()

	registry := prometheus.NewRegistry()
	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		t.Fatalf("Failed to create MQTT metrics: %v", err)
	}

	client, err := NewClient(testSettings(broker), mqttMetrics)
	if err != nil {
		t.Fatalf("Failed to create MQTT client: %v", err)
	}
	return client, registry
}

// gatherValue reads a single-series metric value from the registry. Gauges
// and counters return their value, histograms their sample sum.
func gatherValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		series := family.GetMetric()
		if len(series) == 0 {
			t.Fatalf("Metric %s has no series", name)
		}
		switch {
		case series[0].GetGauge() != nil:
			return series[0].GetGauge().GetValue()
		case series[0].GetCounter() != nil:
			return series[0].GetCounter().GetValue()
		case series[0].GetHistogram() != nil:
			return series[0].GetHistogram().GetSampleSum()
		}
	}
	t.Fatalf("Metric %s not found in registry", name)
	return 0
}

func TestNewClient_RequiresBroker(t *testing.T) {
	_, err := NewClient(testSettings(""), nil)
	if err == nil {
		t.Fatal("Expected NewClient to fail without a broker address")
	}
	if !errors.IsCategory(err, errors.CategoryConfiguration) {
		t.Fatalf("Expected a configuration error, got: %v", err)
	}
}

func TestConfigFromSettings(t *testing.T) {
	settings := testSettings("tcp://broker.local:1883")
	settings.Integrations.MQTT.Username = "roadcrew"
	settings.Integrations.MQTT.Password = "secret"
	settings.Integrations.MQTT.Retain = true

	cfg := ConfigFromSettings(settings)

	if cfg.Broker != "tcp://broker.local:1883" {
		t.Errorf("Broker = %q, want tcp://broker.local:1883", cfg.Broker)
	}
	if cfg.ClientID != "TestNode" {
		t.Errorf("ClientID = %q, want TestNode", cfg.ClientID)
	}
	if cfg.Username != "roadcrew" || cfg.Password != "secret" {
		t.Errorf("Credentials not carried over: %q/%q", cfg.Username, cfg.Password)
	}
	if cfg.Topic != "pavewatch/assessments" {
		t.Errorf("Topic = %q, want pavewatch/assessments", cfg.Topic)
	}
	if !cfg.Retain {
		t.Error("Retain flag not carried over")
	}
	if cfg.ConnectTimeout != 30*time.Second || cfg.PublishTimeout != 10*time.Second {
		t.Errorf("Timeout defaults not applied: connect=%v publish=%v", cfg.ConnectTimeout, cfg.PublishTimeout)
	}
}

func TestConfigFromSettings_DefaultClientID(t *testing.T) {
	settings := testSettings("tcp://broker.local:1883")
	settings.Main.Name = ""

	cfg := ConfigFromSettings(settings)
	if cfg.ClientID != "pavewatch" {
		t.Errorf("ClientID = %q, want pavewatch fallback", cfg.ClientID)
	}
}

// TestPublishWhileDisconnected attempts to publish without ever connecting.
// No broker is contacted, so this runs offline.
func TestPublishWhileDisconnected(t *testing.T) {
	mqttClient, _ := createTestClient(t, "tcp://test.mosquitto.org:1883")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := mqttClient.Publish(ctx, "pavewatch/test", "This should fail")
	if err == nil {
		t.Fatal("Expected publish to fail when not connected")
	}
	if !errors.IsCategory(err, errors.CategoryMQTTPublish) {
		t.Fatalf("Expected an MQTT publish error, got: %v", err)
	}
}

// TestMQTTClient runs a suite of tests for the MQTT client implementation.
// It covers basic functionality, error handling, reconnection scenarios, and metrics collection.
func TestMQTTClient(t *testing.T) {
	if !isMosquittoTestServerAvailable() {
		t.Skip("Skipping MQTT tests: test.mosquitto.org is not available")
	}

	t.Run("Basic Functionality", testBasicFunctionality)
	t.Run("Incorrect Broker Address", testIncorrectBrokerAddress)
	t.Run("Connection Loss Before Publish", testConnectionLossBeforePublish)
	t.Run("Reconnection Cooldown", testReconnectionCooldown)
	t.Run("Metrics Collection", testMetricsCollection)
}

// testBasicFunctionality verifies the basic operations of the MQTT client:
// connection, publishing a message, and disconnection.
func testBasicFunctionality(t *testing.T) {
	mqttClient, _ := createTestClient(t, "tcp://test.mosquitto.org:1883")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := mqttClient.Connect(ctx)
	if err != nil {
		t.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	if !mqttClient.IsConnected() {
		t.Fatal("Client is not connected after successful connection")
	}

	err = mqttClient.Publish(ctx, "pavewatch/test", "Hello, MQTT!")
	if err != nil {
		t.Fatalf("Failed to publish message: %v", err)
	}

	time.Sleep(2 * time.Second)

	mqttClient.Disconnect()

	if mqttClient.IsConnected() {
		t.Fatal("Client is still connected after disconnection")
	}
}

// testIncorrectBrokerAddress checks the client's behavior when provided with invalid broker addresses.
// It includes subtests for unresolvable hostnames and invalid IP addresses.
func testIncorrectBrokerAddress(t *testing.T) {
	t.Run("Unresolvable Hostname", func(t *testing.T) {
		mqttClient, _ := createTestClient(t, "tcp://unresolvable.invalid:1883")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := mqttClient.Connect(ctx)

		if err == nil {
			t.Fatal("Expected connection to fail with invalid broker address")
		}

		var dnsErr *net.DNSError
		if !errors.As(err, &dnsErr) {
			t.Fatalf("Expected DNS resolution error, got: %v", err)
		}

		// Accept either "host not found" or "server misbehaving" errors
		if !dnsErr.IsNotFound && !strings.Contains(dnsErr.Error(), "server misbehaving") {
			t.Fatalf("Expected 'host not found' or 'server misbehaving' DNS error, got: %v", dnsErr)
		}

		if mqttClient.IsConnected() {
			t.Fatal("Client reports connected status with invalid broker address")
		}
	})

	t.Run("Invalid IP Address", func(t *testing.T) {
		mqttClient, _ := createTestClient(t, "tcp://256.0.0.1:1883") // Invalid IP address

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := mqttClient.Connect(ctx)

		if err == nil {
			t.Fatal("Expected connection to fail with invalid IP address")
		}

		// The error could be either a DNS error or a connection error
		var dnsErr *net.DNSError
		var netErr net.Error

		if !errors.As(err, &dnsErr) && !errors.As(err, &netErr) {
			t.Fatalf("Expected either a DNS error or a net.Error, got: %v", err)
		}

		if mqttClient.IsConnected() {
			t.Fatal("Client reports connected status with invalid IP address")
		}
	})
}

// testConnectionLossBeforePublish simulates a scenario where the connection is lost before
// attempting to publish a message. It verifies that the publish operation fails and
// the client reports as disconnected after the connection loss.
func testConnectionLossBeforePublish(t *testing.T) {
	mqttClient, _ := createTestClient(t, "tcp://test.mosquitto.org:1883")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := mqttClient.Connect(ctx)
	if err != nil {
		t.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	// Simulate connection loss
	mqttClient.Disconnect()

	err = mqttClient.Publish(ctx, "pavewatch/test", "Hello after reconnect!")
	if err == nil {
		t.Fatal("Expected publish to fail after connection loss")
	}

	// Allow time for potential reconnection attempts
	time.Sleep(5 * time.Second)

	if mqttClient.IsConnected() {
		t.Fatal("Client should not be connected after forced disconnection")
	}
}

// testReconnectionCooldown verifies that a reconnection attempt inside the
// cooldown window is refused and one after the window succeeds.
func testReconnectionCooldown(t *testing.T) {
	mqttClient, _ := createTestClient(t, "tcp://test.mosquitto.org:1883")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := mqttClient.Connect(ctx)
	if err != nil {
		t.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	// Simulate connection loss
	mqttClient.Disconnect()

	// Wait for a short period (less than the cooldown)
	time.Sleep(2 * time.Second)

	// Attempt reconnection (this should fail due to cooldown)
	err = mqttClient.Connect(ctx)
	if err == nil {
		t.Fatal("Expected reconnection to fail due to cooldown")
	}
	if !errors.IsCategory(err, errors.CategoryMQTTConnection) {
		t.Fatalf("Expected an MQTT connection error, got: %v", err)
	}

	// Wait out the rest of the cooldown period
	time.Sleep(3500 * time.Millisecond)

	// Attempt reconnection again (this should succeed)
	err = mqttClient.Connect(ctx)
	if err != nil {
		t.Fatalf("Failed to reconnect after cooldown: %v", err)
	}

	if !mqttClient.IsConnected() {
		t.Fatal("Client failed to reconnect after simulated connection loss")
	}
}

// testMetricsCollection checks the collection and accuracy of various metrics related to
// MQTT client operations, including connection status, message delivery, and error counts.
func testMetricsCollection(t *testing.T) {
	mqttClient, registry := createTestClient(t, "tcp://test.mosquitto.org:1883")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect to the broker
	err := mqttClient.Connect(ctx)
	if err != nil {
		t.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	// Check initial connection status
	connectionStatus := gatherValue(t, registry, "mqtt_connection_status")
	if connectionStatus != 1 {
		t.Errorf("Initial connection status metric incorrect. Expected 1, got %v", connectionStatus)
	}

	// Publish a message and check delivery metric
	err = mqttClient.Publish(ctx, "pavewatch/test", "Test message")
	if err != nil {
		t.Fatalf("Failed to publish message: %v", err)
	}
	time.Sleep(time.Second) // Allow time for metric to update
	messagesDelivered := gatherValue(t, registry, "mqtt_messages_delivered_total")
	if messagesDelivered != 1 {
		t.Errorf("Messages delivered metric incorrect. Expected 1, got %v", messagesDelivered)
	}

	// Check message size metric
	messageSize := gatherValue(t, registry, "mqtt_message_size_bytes")
	expectedSize := float64(len("Test message"))
	if messageSize != expectedSize {
		t.Errorf("Message size metric incorrect. Expected %v, got %v", expectedSize, messageSize)
	}

	// Disconnect and check connection status
	mqttClient.Disconnect()
	time.Sleep(time.Second) // Allow time for metric to update
	connectionStatus = gatherValue(t, registry, "mqtt_connection_status")
	if connectionStatus != 0 {
		t.Errorf("Connection status metric after disconnection incorrect. Expected 0, got %v", connectionStatus)
	}

	// Log other metrics for informational purposes
	t.Logf("Error count: %v", gatherValue(t, registry, "mqtt_errors_total"))
	t.Logf("Reconnect attempts: %v", gatherValue(t, registry, "mqtt_reconnect_attempts_total"))
	t.Logf("Publish latency: %v", gatherValue(t, registry, "mqtt_publish_duration_seconds"))
}
