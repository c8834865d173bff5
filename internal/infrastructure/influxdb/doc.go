// Package influxdb records device attribute history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring. Registered as a
// registry listener, the client writes one point per attribute whose
// current value changed during a resync:
//
//	wink_attribute,device_id=4,device=Porch,attribute=On_Off,type=BOOL value=1
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	registry.OnReplace(client.ObserveReplace)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered to the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
