// Package provisioning registers a device with the Azure IoT Hub Device
// Provisioning Service (DPS) using a symmetric key.
//
// The exchange runs over a short-lived MQTT session:
//
//  1. subscribe to $dps/registrations/res/#
//  2. publish {"registrationId", "payload": {"modelId"}} to
//     $dps/registrations/PUT/iotdps-register/?$rid={rid}
//  3. while the service answers 202, wait retry-after seconds and poll
//     $dps/registrations/GET/iotdps-get-operationstatus/?$rid={rid}&operationId={id}
//  4. the final answer carries the assigned hub and device id
//
// The session is closed before Register returns. Registration is not
// retried; a device that is not assigned cannot start.
package provisioning
