// Package wink bridges the hub's device registry to an MQTT broker.
//
// # Topics
//
// With the default prefix "home/wink/":
//
//	home/wink/<device>/status        retained JSON {description: value}, published
//	home/wink/<device>/set           JSON {description: value}, subscribed
//	home/wink/<device>/<attr>/set    raw value for one attribute, subscribed
//	home/wink/bridge/availability    retained online/offline (LWT)
//
// When a discovery prefix is configured, every light or switch device is
// also announced on <discovery-prefix><component>/wink_<device>/config, and
// any message on the discovery listen topic triggers a re-announce.
//
// # Outbound queue
//
// Status and discovery messages go through a bounded queue drained by a
// single worker. A full queue means the broker stopped accepting publishes.
// With the default "exit" overflow policy the process terminates so that
// its supervisor restarts it with a fresh connection; the "drop" policy
// discards the message and counts it instead.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package wink
