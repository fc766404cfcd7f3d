package hub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// apiVersion is the IoT Hub device API version sent in the MQTT username.
const apiVersion = "2021-04-12"

// SASToken signs resource with a base64 symmetric key.
//
// The token has the form
//
//	SharedAccessSignature sr={resource}&sig={signature}&se={expiry}[&skn={keyName}]
//
// where the signature is HMAC-SHA256 over "{url-encoded resource}\n{expiry}".
func SASToken(resource, key, keyName string, expiry time.Time) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decoding shared access key: %w", err)
	}

	sr := url.QueryEscape(resource)
	se := strconv.FormatInt(expiry.Unix(), 10)

	mac := hmac.New(sha256.New, decoded)
	mac.Write([]byte(sr + "\n" + se))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	token := fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%s", sr, url.QueryEscape(sig), se)
	if keyName != "" {
		token += "&skn=" + url.QueryEscape(keyName)
	}
	return token, nil
}

// DeviceResource is the SAS resource URI of a device.
func DeviceResource(host, deviceID string) string {
	return host + "/devices/" + deviceID
}

// Username builds the MQTT username IoT Hub expects from a device.
func Username(creds Credentials) string {
	username := fmt.Sprintf("%s/%s/?api-version=%s", creds.Host, creds.DeviceID, apiVersion)
	if creds.ModelID != "" {
		username += "&model-id=" + url.QueryEscape(creds.ModelID)
	}
	return username
}
