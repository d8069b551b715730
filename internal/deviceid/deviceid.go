// Package deviceid builds the MQTT client identifier used throughout the
// core: "<platform_sysname>-<hex(unique_device_id)>".
package deviceid

import "encoding/hex"

// Build assembles a client id from a platform sysname and a raw unique
// device id.
func Build(sysname string, uniqueID []byte) string {
	return sysname + "-" + hex.EncodeToString(uniqueID)
}
