// Package commands is the single write path to the hub.
//
// The MQTT bridge and the HTTP API both hand their set requests to a
// Service, which:
//
//  1. resolves the device from the registry, describing it through the
//     control tool when the registry does not know it yet
//  2. checks the attribute exists and accepts writes
//  3. decodes the client value as the attribute's type
//  4. runs the set through the control tool
//  5. records the value as the attribute's setting (optimistic update)
//  6. asks the resync scheduler to refresh the device
//
// Every call through the Service, including discovery scans and raw tool
// invocations, is written to the command log when a Recorder is set.
package commands
