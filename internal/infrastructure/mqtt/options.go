package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 30 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options describes one broker session.
//
// Unlike a static broker config, the credentials are minted per connection
// (SAS tokens), so callers build Options right before Connect.
type Options struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
	Username string
	Password string

	// KeepAlive defaults to 60s.
	KeepAlive time.Duration

	// ConnectTimeout bounds the initial connection attempt. Defaults to 30s.
	ConnectTimeout time.Duration

	// PublishTimeout bounds publish and subscribe acknowledgements. Defaults to 10s.
	PublishTimeout time.Duration

	// AutoReconnect re-establishes a lost session with exponential backoff
	// between ReconnectInitial and ReconnectMax.
	AutoReconnect    bool
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return defaultConnectTimeout
}

func (o Options) publishTimeout() time.Duration {
	if o.PublishTimeout > 0 {
		return o.PublishTimeout
	}
	return defaultPublishTimeout
}

// BrokerURL returns the paho broker URL (tcp:// or ssl://).
func (o Options) BrokerURL() string {
	scheme := "tcp"
	if o.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Host, o.Port)
}

// buildClientOptions creates paho MQTT options.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff (if enabled)
//   - TLS configuration (if enabled)
//   - Clean session mode
//
// The initial connect is never retried: a refused or unreachable broker is
// reported to the caller at once.
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(o.BrokerURL())
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(o.AutoReconnect)
	if o.AutoReconnect {
		if o.ReconnectInitial > 0 {
			opts.SetConnectRetryInterval(o.ReconnectInitial)
		}
		if o.ReconnectMax > 0 {
			opts.SetMaxReconnectInterval(o.ReconnectMax)
		}
	}

	opts.SetConnectTimeout(o.connectTimeout())

	keepAlive := o.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if o.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: o.Host,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}
