// Package mqtt provides MQTT client connectivity for the wink bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Bridge availability via Last Will and Testament (LWT)
//   - The wink topic scheme (Topics), both formatting and parsing
//
// # Topic scheme
//
//	<prefix><device>/status             retained JSON status of a device
//	<prefix><device>/set                JSON object of attribute description to value
//	<prefix><device>/<attribute>/set    one raw value
//	<prefix>bridge/availability         "online" / "offline" (LWT)
//	<discovery-prefix><component>/wink_<device>/config
//	<discovery-listen-topic>            the discovery consumer came online
//
// # Security Considerations
//
//   - Use TLS (mqtts:// or broker.tls) when the broker is not on the hub itself
//   - A private CA can be added with broker.ca_file (tls_root_cert in the URI)
//   - Credentials are never logged
//
// # Usage
//
// Connect fails when the broker does not answer in time. Dial waits the given
// time and then hands back a client that keeps retrying on its own:
//
//	client, err := mqtt.Dial(cfg.MQTT, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.Prefix+"+/set", 1,
//	    func(topic string, payload []byte) error {
//	        t, err := topics.Parse(topic)
//	        ...
//	    })
//
//	client.Publish(topics.Status(4), []byte(`{"On_Off":true}`), 1, true)
package mqtt
