// Package twin keeps the device twin's reported properties in step with
// the desired properties set by the cloud.
//
// A Synchronizer answers every desired patch with one reported patch that
// has the same top-level keys. IoT Plug and Play component sections
// ({"__t":"c", ...}) are mapped field by field with the marker kept.
//
// InitialReport and PushAll send the read-only properties once after
// connecting: the root serial number, each component's last values and the
// deviceInformation interface.
package twin
