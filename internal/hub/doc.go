// Package hub implements the device side of the Azure IoT Hub MQTT protocol.
//
// A Conn carries the three channels the agent keeps in sync:
//
//   - telemetry:  devices/{id}/messages/events/{property bag}
//   - methods:    $iothub/methods/POST/{name}/?$rid={rid}, answered on
//     $iothub/methods/res/{status}/?$rid={rid}
//   - twin:       desired patches on $iothub/twin/PATCH/properties/desired/,
//     reported patches on $iothub/twin/PATCH/properties/reported/?$rid={rid}
//     acknowledged on $iothub/twin/res/{status}/?$rid={rid}
//
// Inbound method requests are queued per method key in unbounded inboxes,
// so a busy dispatcher never causes a request to be dropped. Requests for
// "dht11*kpiReport" and "fc28*kpiReport" land in different inboxes.
//
// Credentials are SAS tokens minted once per connection from a symmetric
// device key; there is no renewal.
package hub
