package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultAckTimeout     = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second

	// disconnectQuiesceMillis is how long Disconnect lets in-flight work drain.
	disconnectQuiesceMillis = 1000

	maxQoS = 2

	// maxPayloadSize caps outbound payloads at 1 MiB. An LED table is a
	// few hundred bytes, so anything near this is a bug.
	maxPayloadSize = 1 << 20
)

func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// newClientOptions maps the mqtt config section onto paho options,
// including the "offline" will on dimmersync/status.
//
// Sessions are clean: subscriptions are replayed by the client on every
// connect rather than held by the broker.
func newClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetKeepAlive(defaultKeepAlive).
		SetConnectTimeout(defaultConnectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetWill(Topics{}.SystemStatus(), statusCrashed(cfg.Broker.ClientID), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// wait blocks on a paho token for at most timeout.
func wait(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return token.Error()
}

// Status values and reasons published on dimmersync/status.
const (
	statusValueOnline  = "online"
	statusValueOffline = "offline"

	reasonUnexpectedDisconnect = "unexpected_disconnect"
	reasonGracefulShutdown     = "graceful_shutdown"
)

// Status is the retained JSON document on dimmersync/status.
type Status struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func encodeStatus(value, clientID, reason string) string {
	data, err := json.Marshal(Status{
		Status:    value,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return `{"status":"` + value + `"}`
	}
	return string(data)
}

func statusOnline(clientID string) string {
	return encodeStatus(statusValueOnline, clientID, "")
}

func statusShutdown(clientID string) string {
	return encodeStatus(statusValueOffline, clientID, reasonGracefulShutdown)
}

func statusCrashed(clientID string) string {
	return encodeStatus(statusValueOffline, clientID, reasonUnexpectedDisconnect)
}
