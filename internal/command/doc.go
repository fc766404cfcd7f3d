// Package command answers IoT Hub direct methods.
//
// Each Dispatcher owns one Filter and receives only the requests the
// connection routes to the filter's key:
//
//	DeviceWide("reboot")                 -> "reboot"
//	ComponentScoped("dht11", "kpiReport") -> "dht11*kpiReport"
//	AnyMethod()                          -> every unclaimed method
//
// For every request the dispatcher runs its Handler, builds a response and
// sends it, in that order, before receiving the next request. A failing
// handler still yields a response, with status 500.
package command
