package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Security types accepted in hub.security_type (IOTHUB_DEVICE_SECURITY_TYPE).
const (
	SecurityDPS              = "DPS"
	SecurityConnectionString = "connectionString"
)

// DefaultDPSEndpoint is the global Device Provisioning Service host.
const DefaultDPSEndpoint = "global.azure-devices-provisioning.net"

// Component types understood by the component registry.
const (
	ComponentDHT11  = "dht11"
	ComponentAnalog = "analog"
	ComponentOnOff  = "onoff"
	ComponentLCD    = "lcd"
)

// Config is the root configuration structure for the rpihome agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig      `yaml:"device"`
	Hub        HubConfig         `yaml:"hub"`
	Components []ComponentConfig `yaml:"components"`
	Commands   []CommandConfig   `yaml:"commands"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	Twin       TwinConfig        `yaml:"twin"`
	State      StateConfig       `yaml:"state"`
	Status     StatusConfig      `yaml:"status"`
	Lifecycle  LifecycleConfig   `yaml:"lifecycle"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// DeviceConfig describes the root device as advertised to the cloud.
type DeviceConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	SWVersion    string `yaml:"sw_version"`
	Serial       string `yaml:"serial"`
	ModelID      string `yaml:"model_id"`
}

// HubConfig contains the IoT Hub connection settings.
type HubConfig struct {
	// SecurityType selects how the device obtains its hub credentials:
	// "DPS" (provisioning with a symmetric key) or "connectionString".
	SecurityType     string          `yaml:"security_type"`
	ConnectionString string          `yaml:"connection_string"`
	DPS              DPSConfig       `yaml:"dps"`
	Port             int             `yaml:"port"`
	TLS              bool            `yaml:"tls"`
	QoS              int             `yaml:"qos"`
	KeepAlive        int             `yaml:"keep_alive"`
	TokenTTL         int             `yaml:"token_ttl"`
	ConnectTimeout   int             `yaml:"connect_timeout"`
	RequestTimeout   int             `yaml:"request_timeout"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
}

// DPSConfig contains Device Provisioning Service settings.
type DPSConfig struct {
	Endpoint       string `yaml:"endpoint"`
	IDScope        string `yaml:"id_scope"`
	RegistrationID string `yaml:"registration_id"`
	DeviceKey      string `yaml:"device_key"`
}

// ReconnectConfig contains MQTT reconnection settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// ComponentConfig declares one sensor or actuator.
type ComponentConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Pin  int    `yaml:"pin"`

	// Label names the value key of an analog sensor (e.g. "soil_moisture").
	Label string `yaml:"label,omitempty"`

	// Scale and Offset form the linear transform applied to analog readings.
	// A zero Scale means identity.
	Scale  float64 `yaml:"scale,omitempty"`
	Offset float64 `yaml:"offset,omitempty"`
}

// CommandConfig binds a direct method to a handler.
//
// Component and Method together select the filter: both set addresses
// "component*method", Method alone a device-wide method, neither every
// method no other binding claims.
type CommandConfig struct {
	Component string `yaml:"component,omitempty"`
	Method    string `yaml:"method,omitempty"`
	Handler   string `yaml:"handler,omitempty"`

	// Response is "generic" (default) or "component".
	Response string `yaml:"response,omitempty"`
}

// TelemetryConfig contains telemetry publisher settings.
type TelemetryConfig struct {
	// Interval is the delay after every message, in seconds.
	Interval    int    `yaml:"interval"`
	ContentType string `yaml:"content_type"`
}

// TwinConfig contains property synchroniser settings.
type TwinConfig struct {
	// Acknowledge wraps reported values in the writable property ack shape.
	Acknowledge bool `yaml:"acknowledge"`
}

// StateConfig contains the local SQLite state store settings.
type StateConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// StatusConfig contains the local HTTP status endpoint settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LifecycleConfig contains coordinator settings.
type LifecycleConfig struct {
	// DrainTimeout bounds how long shutdown waits for tasks, in seconds.
	DrainTimeout int `yaml:"drain_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// hubEnv holds the IoT Hub sample variables. Only variables that are set
// override the file.
type hubEnv struct {
	SecurityType     string `env:"IOTHUB_DEVICE_SECURITY_TYPE"`
	ConnectionString string `env:"IOTHUB_DEVICE_CONNECTION_STRING"`
	DPSEndpoint      string `env:"IOTHUB_DEVICE_DPS_ENDPOINT"`
	DPSIDScope       string `env:"IOTHUB_DEVICE_DPS_ID_SCOPE"`
	DPSDeviceID      string `env:"IOTHUB_DEVICE_DPS_DEVICE_ID"`
	DPSDeviceKey     string `env:"IOTHUB_DEVICE_DPS_DEVICE_KEY"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. IOTHUB_DEVICE_* variables (hub credentials)
//  4. RPIHOME_SECTION_KEY variables (everything else)
//
// An empty path skips the file and loads defaults plus environment only.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyHubEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Manufacturer: "CKPD",
			Model:        "RPI Home Basic",
			SWVersion:    "1.0",
			Serial:       "RPI-BASIC-001",
			ModelID:      "dtmi:com:example:rpihome;2",
		},
		Hub: HubConfig{
			DPS: DPSConfig{
				Endpoint: DefaultDPSEndpoint,
			},
			Port:           8883,
			TLS:            true,
			QoS:            1,
			KeepAlive:      60,
			TokenTTL:       86400,
			ConnectTimeout: 30,
			RequestTimeout: 30,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Components: []ComponentConfig{
			{Name: "dht11", Type: ComponentDHT11, Pin: 18},
			{Name: "fc28", Type: ComponentAnalog, Pin: 18, Label: "soil_moisture"},
		},
		Commands: []CommandConfig{
			{Method: "reboot", Handler: "reboot"},
			{Component: "dht11", Method: "kpiReport", Handler: "kpi", Response: "component"},
			{Component: "fc28", Method: "kpiReport", Handler: "kpi", Response: "component"},
		},
		Telemetry: TelemetryConfig{
			Interval:    5,
			ContentType: "application/json",
		},
		State: StateConfig{
			Enabled:     true,
			Path:        "./data/rpihome.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Status: StatusConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Lifecycle: LifecycleConfig{
			DrainTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyHubEnv applies the IOTHUB_DEVICE_* variables used by the IoT Hub
// device samples.
func applyHubEnv(cfg *Config) error {
	var env hubEnv
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("reading hub environment: %w", err)
	}

	if env.SecurityType != "" {
		cfg.Hub.SecurityType = env.SecurityType
	}
	if env.ConnectionString != "" {
		cfg.Hub.ConnectionString = env.ConnectionString
	}
	if env.DPSEndpoint != "" {
		cfg.Hub.DPS.Endpoint = env.DPSEndpoint
	}
	if env.DPSIDScope != "" {
		cfg.Hub.DPS.IDScope = env.DPSIDScope
	}
	if env.DPSDeviceID != "" {
		cfg.Hub.DPS.RegistrationID = env.DPSDeviceID
	}
	if env.DPSDeviceKey != "" {
		cfg.Hub.DPS.DeviceKey = env.DPSDeviceKey
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RPIHOME_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("RPIHOME_DEVICE_SERIAL"); v != "" {
		cfg.Device.Serial = v
	}
	if v := os.Getenv("RPIHOME_DEVICE_MODEL_ID"); v != "" {
		cfg.Device.ModelID = v
	}

	// Hub
	if v := os.Getenv("RPIHOME_HUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Hub.Port = port
		}
	}

	// Telemetry
	if v := os.Getenv("RPIHOME_TELEMETRY_INTERVAL"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.Interval = interval
		}
	}

	// State
	if v := os.Getenv("RPIHOME_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}

	// Logging
	if v := os.Getenv("RPIHOME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ModelID == "" {
		errs = append(errs, "device.model_id is required")
	}

	errs = append(errs, c.validateHub()...)
	errs = append(errs, c.validateComponents()...)
	errs = append(errs, c.validateCommands()...)

	if c.Telemetry.Interval <= 0 {
		errs = append(errs, "telemetry.interval must be positive")
	}
	switch c.Telemetry.ContentType {
	case "application/json", "application/cbor":
	default:
		errs = append(errs, "telemetry.content_type must be application/json or application/cbor")
	}

	if c.State.Enabled && c.State.Path == "" {
		errs = append(errs, "state.path is required when state is enabled")
	}

	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	if c.Lifecycle.DrainTimeout <= 0 {
		errs = append(errs, "lifecycle.drain_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateHub() []string {
	var errs []string

	switch c.Hub.SecurityType {
	case SecurityDPS:
		if c.Hub.DPS.Endpoint == "" {
			errs = append(errs, "hub.dps.endpoint is required")
		}
		if c.Hub.DPS.IDScope == "" {
			errs = append(errs, "hub.dps.id_scope is required (set IOTHUB_DEVICE_DPS_ID_SCOPE)")
		}
		if c.Hub.DPS.RegistrationID == "" {
			errs = append(errs, "hub.dps.registration_id is required (set IOTHUB_DEVICE_DPS_DEVICE_ID)")
		}
		if c.Hub.DPS.DeviceKey == "" {
			errs = append(errs, "hub.dps.device_key is required (set IOTHUB_DEVICE_DPS_DEVICE_KEY)")
		}
	case SecurityConnectionString:
		if c.Hub.ConnectionString == "" {
			errs = append(errs, "hub.connection_string is required (set IOTHUB_DEVICE_CONNECTION_STRING)")
		}
	case "":
		errs = append(errs, "hub.security_type is required (set IOTHUB_DEVICE_SECURITY_TYPE to DPS or connectionString)")
	default:
		errs = append(errs, fmt.Sprintf("hub.security_type %q must be DPS or connectionString", c.Hub.SecurityType))
	}

	if c.Hub.Port < 1 || c.Hub.Port > 65535 {
		errs = append(errs, "hub.port must be between 1 and 65535")
	}
	// IoT Hub does not support QoS 2.
	if c.Hub.QoS < 0 || c.Hub.QoS > 1 {
		errs = append(errs, "hub.qos must be 0 or 1")
	}
	if c.Hub.TokenTTL <= 0 {
		errs = append(errs, "hub.token_ttl must be positive")
	}

	return errs
}

func (c *Config) validateComponents() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Components))

	for i, comp := range c.Components {
		switch {
		case comp.Name == "":
			errs = append(errs, fmt.Sprintf("components[%d].name is required", i))
			continue
		case strings.ContainsAny(comp.Name, "*/#+"):
			errs = append(errs, fmt.Sprintf("components[%d].name %q contains a reserved character", i, comp.Name))
		case seen[comp.Name]:
			errs = append(errs, fmt.Sprintf("components[%d].name %q is duplicated", i, comp.Name))
		}
		seen[comp.Name] = true

		switch comp.Type {
		case ComponentDHT11, ComponentOnOff, ComponentLCD:
		case ComponentAnalog:
			if comp.Label == "" {
				errs = append(errs, fmt.Sprintf("components[%d].label is required for analog sensors", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("components[%d].type %q is unknown", i, comp.Type))
		}
	}

	return errs
}

func (c *Config) validateCommands() []string {
	var errs []string
	names := make(map[string]bool, len(c.Components))
	for _, comp := range c.Components {
		names[comp.Name] = true
	}

	seen := make(map[string]int, len(c.Commands))
	for i, cmd := range c.Commands {
		if cmd.Component != "" && !names[cmd.Component] {
			errs = append(errs, fmt.Sprintf("commands[%d].component %q is not a configured component", i, cmd.Component))
		}
		if cmd.Component != "" && cmd.Method == "" {
			errs = append(errs, fmt.Sprintf("commands[%d].method is required when a component is set", i))
		}

		key := cmd.Method
		switch {
		case cmd.Component != "":
			key = cmd.Component + "*" + cmd.Method
		case key == "":
			key = "*"
		}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Sprintf("commands[%d] binds %q, already bound by commands[%d]", i, key, prev))
		} else {
			seen[key] = i
		}
		switch cmd.Response {
		case "", "generic":
		case "component":
			if cmd.Component == "" {
				errs = append(errs, fmt.Sprintf("commands[%d].response component requires a component", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("commands[%d].response %q must be generic or component", i, cmd.Response))
		}
	}

	return errs
}

// GetTelemetryInterval returns the delay after each telemetry message.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}

// GetDrainTimeout returns how long shutdown waits for running tasks.
func (c *Config) GetDrainTimeout() time.Duration {
	return time.Duration(c.Lifecycle.DrainTimeout) * time.Second
}

// GetTokenTTL returns the lifetime of SAS tokens minted for a connection.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Hub.TokenTTL) * time.Second
}
