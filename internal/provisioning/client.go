package provisioning

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nerrad567/rpihome/internal/hub"
	"github.com/nerrad567/rpihome/internal/infrastructure/config"
	"github.com/nerrad567/rpihome/internal/infrastructure/mqtt"
)

const (
	// defaultPollInterval applies when the service sends no retry-after.
	defaultPollInterval = 3 * time.Second

	defaultRequestTimeout = 30 * time.Second
)

// session is the subset of *mqtt.Client used for one registration.
type session interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Close() error
}

// Client registers devices with the Device Provisioning Service over MQTT.
type Client struct {
	cfg    config.HubConfig
	logger Logger

	connect func(mqtt.Options) (session, error)
	now     func() time.Time
	newRID  func() string
}

// NewClient returns a Client using the transport settings of cfg.
func NewClient(cfg config.HubConfig, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		connect: func(o mqtt.Options) (session, error) {
			c, err := mqtt.Connect(o)
			if err != nil {
				return nil, err
			}
			if l, ok := logger.(mqtt.Logger); ok {
				c.SetLogger(l)
			}
			return c, nil
		},
		now:    time.Now,
		newRID: uuid.NewString,
	}
}

// Register runs the register/poll exchange until the service reports a
// terminal status.
//
// A terminal status that is not "assigned" is returned as a Result with a
// nil error; callers decide whether that is fatal. Error statuses from the
// service wrap ErrRegistrationFailed.
func (c *Client) Register(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}

	opts, err := c.options(req)
	if err != nil {
		return Result{}, err
	}

	c.logger.Info("provisioning device",
		"endpoint", req.Endpoint,
		"id_scope", req.IDScope,
		"registration_id", req.RegistrationID,
	)

	s, err := c.connect(opts)
	if err != nil {
		return Result{}, fmt.Errorf("%w: connecting to %s: %w", ErrRegistrationFailed, req.Endpoint, err)
	}
	defer s.Close() //nolint:errcheck // Session is single use

	responses := make(chan response, 8)
	err = s.Subscribe(topicResponseSubscribe, c.qos(), func(topic string, payload []byte) error {
		resp, err := parseResponseTopic(topic)
		if err != nil {
			return err
		}
		resp.body = append([]byte(nil), payload...)
		select {
		case responses <- resp:
		default:
			c.logger.Warn("dropping provisioning response", "rid", resp.rid)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	body, err := json.Marshal(registrationBody{
		RegistrationID: req.RegistrationID,
		Payload:        modelPayload(req.ModelID),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding registration: %w", err)
	}

	rid := c.newRID()
	resp, err := c.exchange(ctx, s, responses, registerTopic(rid), rid, body)
	if err != nil {
		return Result{}, err
	}

	for {
		op, err := decodeOperation(resp)
		if err != nil {
			return Result{}, err
		}

		if resp.status != 202 {
			result := Result{
				Status:      op.Status,
				AssignedHub: op.RegistrationState.AssignedHub,
				DeviceID:    op.RegistrationState.DeviceID,
				OperationID: op.OperationID,
			}
			c.logger.Info("provisioning finished",
				"status", result.Status,
				"assigned_hub", result.AssignedHub,
				"device_id", result.DeviceID,
			)
			return result, nil
		}

		wait := resp.retryAfter
		if wait <= 0 {
			wait = defaultPollInterval
		}
		c.logger.Debug("registration in progress", "operation_id", op.OperationID, "retry_after", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()
		case <-timer.C:
		}

		rid = c.newRID()
		resp, err = c.exchange(ctx, s, responses, operationStatusTopic(rid, op.OperationID), rid, nil)
		if err != nil {
			return Result{}, err
		}
	}
}

// exchange publishes one request and waits for the response carrying rid.
func (c *Client) exchange(ctx context.Context, s session, responses <-chan response, topic, rid string, body []byte) (response, error) {
	if err := s.Publish(ctx, topic, body, c.qos(), false); err != nil {
		return response{}, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	timeout := time.Duration(c.cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case resp := <-responses:
			if resp.rid != rid {
				c.logger.Debug("ignoring stale provisioning response", "rid", resp.rid)
				continue
			}
			return resp, nil
		case <-ctx.Done():
			return response{}, ctx.Err()
		case <-timer.C:
			return response{}, fmt.Errorf("%w: %s", ErrTimeout, topic)
		}
	}
}

// options builds the MQTT session for req.
func (c *Client) options(req Request) (mqtt.Options, error) {
	ttl := time.Duration(c.cfg.TokenTTL) * time.Second
	token, err := hub.SASToken(
		registrationResource(req.IDScope, req.RegistrationID),
		req.DeviceKey,
		"registration",
		c.now().Add(ttl),
	)
	if err != nil {
		return mqtt.Options{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return mqtt.Options{
		Host:           req.Endpoint,
		Port:           c.cfg.Port,
		TLS:            c.cfg.TLS,
		ClientID:       req.RegistrationID,
		Username:       username(req.IDScope, req.RegistrationID),
		Password:       token,
		KeepAlive:      time.Duration(c.cfg.KeepAlive) * time.Second,
		ConnectTimeout: time.Duration(c.cfg.ConnectTimeout) * time.Second,
		PublishTimeout: time.Duration(c.cfg.RequestTimeout) * time.Second,
	}, nil
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS)
}

func validate(req Request) error {
	switch {
	case req.Endpoint == "":
		return fmt.Errorf("%w: endpoint is required", ErrInvalidRequest)
	case req.IDScope == "":
		return fmt.Errorf("%w: id scope is required", ErrInvalidRequest)
	case req.RegistrationID == "":
		return fmt.Errorf("%w: registration id is required", ErrInvalidRequest)
	case req.DeviceKey == "":
		return fmt.Errorf("%w: device key is required", ErrInvalidRequest)
	}
	return nil
}

func modelPayload(modelID string) map[string]any {
	if modelID == "" {
		return nil
	}
	return map[string]any{"modelId": modelID}
}

func decodeOperation(resp response) (operationBody, error) {
	if resp.status >= 300 {
		return operationBody{}, fmt.Errorf("%w: status %d: %s", ErrRegistrationFailed, resp.status, resp.body)
	}

	var op operationBody
	if err := json.Unmarshal(resp.body, &op); err != nil {
		return operationBody{}, fmt.Errorf("%w: decoding response: %w", ErrRegistrationFailed, err)
	}
	return op, nil
}
