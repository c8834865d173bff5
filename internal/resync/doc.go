// Package resync keeps the device registry in step with the hub.
//
// A Scheduler lists and describes every device on a fixed interval and
// replaces the registry snapshot with the result. Writers call Trigger after
// a successful set to refresh one device without waiting for the next tick.
//
// Failures never stop the loop: a failed listing skips the tick and the
// previous snapshot stays authoritative, a failed describe keeps that
// device's previous record.
package resync
