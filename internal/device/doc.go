// Package device holds the bridge's model of the hub: devices, their typed
// attributes, and the Registry that owns the current snapshot.
//
// # Architecture
//
//	┌────────────────┐  Replace / ReplaceDevice   ┌───────────────────────┐
//	│ resync loop    │ ─────────────────────────▶ │       Registry        │
//	└────────────────┘                            │                       │
//	┌────────────────┐  RecordOptimisticSet       │ current ──▶ Snapshot  │
//	│ MQTT / HTTP    │ ─────────────────────────▶ │ previous ─▶ Snapshot  │
//	│ write handlers │                            └──────────┬────────────┘
//	└────────────────┘                                       │ Listener(DiffSet, *Snapshot)
//	                                                         ▼
//	                                       MQTT status, WebSocket, telemetry sinks
//
// # Key Types
//
//   - AttributeType: closed set {Bool, UInt8, UInt16, UInt32, UInt64, String}
//   - Value: immutable tagged value of one AttributeType, or absent
//   - Attribute: current (device-confirmed) and setting (last requested) values
//   - Snapshot: immutable set of devices, swapped atomically
//   - DiffSet: per device and attribute New/Changed/Unchanged/Removed
//
// # Value Encodings
//
// Three decoders exist because three sources disagree on spelling:
//
//   - AttributeType.Decode: cells of the control tool's table (TRUE/FALSE, ON/OFF)
//   - AttributeType.Parse: client text (true/1/yes/on, false/0/no/off)
//   - AttributeType.ParseJSON: members of an MQTT JSON set document
//
// Value.Encode produces the control tool's spelling for writes.
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.OnReplace(func(diff device.DiffSet, snap *device.Snapshot) {
//	    for _, id := range diff.Updated() { ... }
//	})
//	diff := reg.Replace(devices)
//	_ = reg.RecordOptimisticSet(4, 1, device.BoolValue(true))
package device
