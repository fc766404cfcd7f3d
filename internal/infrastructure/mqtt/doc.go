// Package mqtt provides MQTT client connectivity for the rpihome agent.
//
// This package manages:
//   - Connection to the cloud broker with per-session credentials
//   - Message publishing with QoS guarantees and context cancellation
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Routing paho's internal logging into slog
//
// # Architecture
//
// Both the IoT Hub session (internal/hub) and the Device Provisioning
// Service exchange (internal/provisioning) are MQTT 3.1.1 conversations.
// This package owns the paho client; the protocol packages own topics and
// payloads.
//
//	agent ↔ mqtt.Client ↔ IoT Hub / DPS (TLS, port 8883)
//
// # Security Considerations
//
//   - TLS 1.2 is the minimum version when Options.TLS is set
//   - Passwords are SAS tokens and are never logged
//
// # Usage
//
//	client, err := mqtt.Connect(mqtt.Options{
//	    Host:     "myhub.azure-devices.net",
//	    Port:     8883,
//	    TLS:      true,
//	    ClientID: deviceID,
//	    Username: username,
//	    Password: sasToken,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("$iothub/methods/POST/#", 1,
//	    func(topic string, payload []byte) error {
//	        return router.handle(topic, payload)
//	    })
package mqtt
