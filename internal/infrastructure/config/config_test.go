package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  serial: "RPI-TEST-042"
hub:
  security_type: connectionString
  connection_string: "HostName=hub.example.net;DeviceId=rpi;SharedAccessKey=a2V5"
  qos: 1
components:
  - name: dht11
    type: dht11
  - name: relay
    type: onoff
commands:
  - method: reboot
    handler: reboot
  - component: relay
    method: toggle
    response: component
telemetry:
  interval: 2
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Serial != "RPI-TEST-042" {
		t.Errorf("Device.Serial = %q, want %q", cfg.Device.Serial, "RPI-TEST-042")
	}
	if cfg.Device.Manufacturer != "CKPD" {
		t.Errorf("Device.Manufacturer = %q, want default %q", cfg.Device.Manufacturer, "CKPD")
	}
	if len(cfg.Components) != 2 || cfg.Components[1].Type != ComponentOnOff {
		t.Errorf("Components = %+v, want dht11 and onoff", cfg.Components)
	}
	if got := cfg.GetTelemetryInterval(); got != 2*time.Second {
		t.Errorf("GetTelemetryInterval() = %v, want 2s", got)
	}
	if cfg.Hub.Port != 8883 || !cfg.Hub.TLS {
		t.Errorf("Hub port/tls = %d/%v, want 8883/true", cfg.Hub.Port, cfg.Hub.TLS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("IOTHUB_DEVICE_SECURITY_TYPE", "DPS")
	t.Setenv("IOTHUB_DEVICE_DPS_ID_SCOPE", "0ne000ABCDE")
	t.Setenv("IOTHUB_DEVICE_DPS_DEVICE_ID", "rpi-basic-001")
	t.Setenv("IOTHUB_DEVICE_DPS_DEVICE_KEY", "c2VjcmV0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.SecurityType != SecurityDPS {
		t.Errorf("SecurityType = %q, want DPS", cfg.Hub.SecurityType)
	}
	if cfg.Hub.DPS.Endpoint != DefaultDPSEndpoint {
		t.Errorf("DPS.Endpoint = %q, want default %q", cfg.Hub.DPS.Endpoint, DefaultDPSEndpoint)
	}
	if cfg.Hub.DPS.RegistrationID != "rpi-basic-001" {
		t.Errorf("DPS.RegistrationID = %q, want %q", cfg.Hub.DPS.RegistrationID, "rpi-basic-001")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	content := `
hub:
  security_type: DPS
  dps:
    endpoint: "dps.example.net"
    id_scope: "file-scope"
    registration_id: "file-device"
    device_key: "ZmlsZQ=="
`
	t.Setenv("IOTHUB_DEVICE_DPS_ID_SCOPE", "env-scope")
	t.Setenv("RPIHOME_STATE_PATH", "/tmp/env.db")
	t.Setenv("RPIHOME_TELEMETRY_INTERVAL", "9")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.DPS.IDScope != "env-scope" {
		t.Errorf("DPS.IDScope = %q, want env-scope", cfg.Hub.DPS.IDScope)
	}
	if cfg.Hub.DPS.Endpoint != "dps.example.net" {
		t.Errorf("DPS.Endpoint = %q, want file value", cfg.Hub.DPS.Endpoint)
	}
	if cfg.State.Path != "/tmp/env.db" {
		t.Errorf("State.Path = %q, want /tmp/env.db", cfg.State.Path)
	}
	if cfg.Telemetry.Interval != 9 {
		t.Errorf("Telemetry.Interval = %d, want 9", cfg.Telemetry.Interval)
	}
}

func TestLoad_NoSecurityType(t *testing.T) {
	_, err := Load(writeConfig(t, "device:\n  serial: x\n"))
	if err == nil {
		t.Fatal("Load() expected error when no security type is configured")
	}
	if !strings.Contains(err.Error(), "hub.security_type is required") {
		t.Errorf("error = %v, want security_type message", err)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Hub.SecurityType = SecurityConnectionString
	cfg.Hub.ConnectionString = "HostName=h;DeviceId=d;SharedAccessKey=k"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown security type",
			mutate:  func(c *Config) { c.Hub.SecurityType = "x509" },
			wantErr: "must be DPS or connectionString",
		},
		{
			name:    "connection string missing",
			mutate:  func(c *Config) { c.Hub.ConnectionString = "" },
			wantErr: "hub.connection_string is required",
		},
		{
			name: "dps missing key",
			mutate: func(c *Config) {
				c.Hub.SecurityType = SecurityDPS
				c.Hub.DPS.IDScope = "scope"
				c.Hub.DPS.RegistrationID = "dev"
			},
			wantErr: "hub.dps.device_key is required",
		},
		{
			name:    "qos 2 rejected",
			mutate:  func(c *Config) { c.Hub.QoS = 2 },
			wantErr: "hub.qos must be 0 or 1",
		},
		{
			name: "duplicate component",
			mutate: func(c *Config) {
				c.Components = append(c.Components, ComponentConfig{Name: "dht11", Type: ComponentDHT11})
			},
			wantErr: "is duplicated",
		},
		{
			name: "reserved character in name",
			mutate: func(c *Config) {
				c.Components = append(c.Components, ComponentConfig{Name: "a*b", Type: ComponentLCD})
			},
			wantErr: "reserved character",
		},
		{
			name: "analog without label",
			mutate: func(c *Config) {
				c.Components = append(c.Components, ComponentConfig{Name: "ldr", Type: ComponentAnalog})
			},
			wantErr: "label is required",
		},
		{
			name: "command on unknown component",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{Component: "ghost", Method: "ping"})
			},
			wantErr: "not a configured component",
		},
		{
			name: "component response without component",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{Method: "ping", Response: "component"})
			},
			wantErr: "requires a component",
		},
		{
			name: "method bound twice",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{Method: "reboot"})
			},
			wantErr: `binds "reboot", already bound by commands[0]`,
		},
		{
			name: "component method bound twice",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{Component: "fc28", Method: "kpiReport"})
			},
			wantErr: `binds "fc28*kpiReport"`,
		},
		{
			name: "second wildcard",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{}, CommandConfig{Handler: "kpi"})
			},
			wantErr: `binds "*"`,
		},
		{
			name: "component without method",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{Component: "dht11", Response: "component"})
			},
			wantErr: "commands[3].method is required when a component is set",
		},
		{
			name:    "zero telemetry interval",
			mutate:  func(c *Config) { c.Telemetry.Interval = 0 },
			wantErr: "telemetry.interval must be positive",
		},
		{
			name:    "negative telemetry interval",
			mutate:  func(c *Config) { c.Telemetry.Interval = -1 },
			wantErr: "telemetry.interval must be positive",
		},
		{
			name:    "bad content type",
			mutate:  func(c *Config) { c.Telemetry.ContentType = "text/plain" },
			wantErr: "telemetry.content_type",
		},
		{
			name: "state enabled without path",
			mutate: func(c *Config) {
				c.State.Enabled = true
				c.State.Path = ""
			},
			wantErr: "state.path is required",
		},
		{
			name:    "zero drain timeout",
			mutate:  func(c *Config) { c.Lifecycle.DrainTimeout = 0 },
			wantErr: "drain_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := validConfig()

	if got := cfg.GetDrainTimeout(); got != 5*time.Second {
		t.Errorf("GetDrainTimeout() = %v, want 5s", got)
	}
	if got := cfg.GetTokenTTL(); got != 24*time.Hour {
		t.Errorf("GetTokenTTL() = %v, want 24h", got)
	}
}
