package hub

import (
	"fmt"
	"strings"
)

// ParseConnectionString reads a device connection string of the form
//
//	HostName=myhub.azure-devices.net;DeviceId=rpi;SharedAccessKey=base64==
//
// Only symmetric key authentication is supported.
func ParseConnectionString(s string) (Credentials, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Credentials{}, fmt.Errorf("%w: segment %q has no value", ErrInvalidConnectionString, key)
		}
		fields[key] = value
	}

	creds := Credentials{
		Host:            fields["HostName"],
		DeviceID:        fields["DeviceId"],
		SharedAccessKey: fields["SharedAccessKey"],
	}

	var missing []string
	if creds.Host == "" {
		missing = append(missing, "HostName")
	}
	if creds.DeviceID == "" {
		missing = append(missing, "DeviceId")
	}
	if creds.SharedAccessKey == "" {
		missing = append(missing, "SharedAccessKey")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w: missing %s", ErrInvalidConnectionString, strings.Join(missing, ", "))
	}

	return creds, nil
}
