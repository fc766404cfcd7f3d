// Package component models the sensors and actuators of an rpihome device.
//
// Every component has a name, a Kind and a Read operation. Optional
// capabilities are discovered by type assertion:
//
//   - Responder answers component-scoped direct methods ("dht11*kpiReport")
//   - PropertyReporter contributes to the initial reported snapshot
//   - Seeder restores the last sample persisted before a restart
//
// Sensor readings are random stand-ins in the ranges of the real parts
// (DHT11: 10-30 °C, 10-90 %RH; analog probes: 10-90 raw). Tests inject a
// deterministic Source.
//
// The Registry keeps declaration order; the telemetry publisher reads
// components in that order each cycle. deviceInformation is always last.
package component
