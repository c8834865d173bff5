// Package config handles loading and validating the wink bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (WINKBRIDGE_*)
//   - Expanding the single-string broker URI form
//   - Validation of required fields
//
// Security Considerations:
//   - Broker and InfluxDB credentials should be set via environment variables
//   - The HTTP API has no authentication; bind it to the hub's private network
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.TopicPrefix)
package config
