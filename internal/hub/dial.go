package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/rpihome/internal/infrastructure/config"
	"github.com/nerrad567/rpihome/internal/infrastructure/mqtt"
)

// Dialer opens hub sessions from the hub section of config.yaml.
type Dialer struct {
	Config      config.HubConfig
	ContentType string
	Logger      Logger

	// connect is replaced in tests.
	connect func(mqtt.Options) (client, error)
	now     func() time.Time
}

// NewDialer returns a Dialer for cfg.
func NewDialer(cfg config.HubConfig, contentType string, logger Logger) *Dialer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dialer{
		Config:      cfg,
		ContentType: contentType,
		Logger:      logger,
		connect: func(o mqtt.Options) (client, error) {
			c, err := mqtt.Connect(o)
			if err != nil {
				return nil, err
			}
			if l, ok := logger.(mqtt.Logger); ok {
				c.SetLogger(l)
			}
			return c, nil
		},
		now: time.Now,
	}
}

// Dial connects as creds.DeviceID, mints a SAS token valid for
// Config.TokenTTL and subscribes to the method and twin topics.
func (d *Dialer) Dial(ctx context.Context, creds Credentials) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := d.options(creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	d.Logger.Info("connecting to hub",
		"host", creds.Host,
		"device_id", creds.DeviceID,
		"model_id", creds.ModelID,
	)

	c, err := d.connect(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	conn := newConn(c, creds.DeviceID, ConnOptions{
		QoS:            byte(d.Config.QoS),
		ContentType:    d.ContentType,
		RequestTimeout: time.Duration(d.Config.RequestTimeout) * time.Second,
		Logger:         d.Logger,
	})
	if err := conn.start(); err != nil {
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	d.Logger.Info("connected to hub", "host", creds.Host, "device_id", creds.DeviceID)
	return conn, nil
}

// options builds the MQTT session for creds.
func (d *Dialer) options(creds Credentials) (mqtt.Options, error) {
	ttl := time.Duration(d.Config.TokenTTL) * time.Second
	token, err := SASToken(DeviceResource(creds.Host, creds.DeviceID), creds.SharedAccessKey, "", d.now().Add(ttl))
	if err != nil {
		return mqtt.Options{}, err
	}

	return mqtt.Options{
		Host:             creds.Host,
		Port:             d.Config.Port,
		TLS:              d.Config.TLS,
		ClientID:         creds.DeviceID,
		Username:         Username(creds),
		Password:         token,
		KeepAlive:        time.Duration(d.Config.KeepAlive) * time.Second,
		ConnectTimeout:   time.Duration(d.Config.ConnectTimeout) * time.Second,
		PublishTimeout:   time.Duration(d.Config.RequestTimeout) * time.Second,
		AutoReconnect:    true,
		ReconnectInitial: time.Duration(d.Config.Reconnect.InitialDelay) * time.Second,
		ReconnectMax:     time.Duration(d.Config.Reconnect.MaxDelay) * time.Second,
	}, nil
}
