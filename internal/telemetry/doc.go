// Package telemetry sends the readings of every component to the hub.
//
// Each cycle walks the registry in order. Sensors and actuators are sent
// tagged with their component name; deviceInformation is sent untagged as
// device-level telemetry ({"cpu": 12.5}). The publisher pauses for the
// configured interval after every component, so a cycle of N components
// takes about N intervals. Cycles drift; no attempt is made to keep a
// fixed cadence.
package telemetry
