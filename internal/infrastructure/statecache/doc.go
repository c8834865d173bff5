// Package statecache mirrors each device's status document into Redis so
// other services on the hub can read device state without talking MQTT.
//
// Keys have the form wink:device:status:<id> and hold the same JSON object
// the bridge publishes on the device's status topic. Every key carries the
// configured TTL; a key left behind by a removed device expires on its own
// even if the delete is lost.
//
// Usage:
//
//	cache, err := statecache.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//	registry.OnReplace(cache.ObserveReplace)
package statecache
