package hub

import (
	"errors"
	"testing"
)

func TestParseConnectionString(t *testing.T) {
	creds, err := ParseConnectionString("HostName=myhub.azure-devices.net;DeviceId=rpi-basic-001;SharedAccessKey=c2VjcmV0a2V5PQ==")
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}

	if creds.Host != "myhub.azure-devices.net" {
		t.Errorf("Host = %q", creds.Host)
	}
	if creds.DeviceID != "rpi-basic-001" {
		t.Errorf("DeviceID = %q", creds.DeviceID)
	}
	// Base64 padding must survive the split on "=".
	if creds.SharedAccessKey != "c2VjcmV0a2V5PQ==" {
		t.Errorf("SharedAccessKey = %q", creds.SharedAccessKey)
	}
}

func TestParseConnectionString_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing key", "HostName=h;DeviceId=d"},
		{"missing host", "DeviceId=d;SharedAccessKey=k"},
		{"segment without value", "HostName=h;DeviceId;SharedAccessKey=k"},
		{"x509 only", "HostName=h;DeviceId=d;x509=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConnectionString(tt.input)
			if !errors.Is(err, ErrInvalidConnectionString) {
				t.Errorf("ParseConnectionString(%q) error = %v, want ErrInvalidConnectionString", tt.input, err)
			}
		})
	}
}
