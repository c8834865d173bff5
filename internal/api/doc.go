// Package api implements the HTTP REST API and WebSocket server for the wink bridge.
//
// This package provides:
//   - GET /api/devices and GET /api/devices/{device_id} over the current snapshot
//   - POST /api/devices/{device_id}/{attribute_id} for attribute writes
//   - POST /api/devices/discovery and POST /api/aprontest as control tool pass-throughs
//   - GET /api/commands over the command log, when the database is enabled
//   - GET /api/ws, a WebSocket hub relaying snapshot changes
//   - GET /metrics for Prometheus
//
// # Architecture
//
// Reads come straight from the device registry. Writes go through the same
// command service as MQTT set topics, so both surfaces share validation,
// optimistic updates, resync triggers and the command log.
//
// # Security
//
// There is no authentication. The hub's HTTP port must only be reachable
// from its private network.
package api
