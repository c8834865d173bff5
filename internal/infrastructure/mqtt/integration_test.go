//go:build integration

package mqtt

import (
	"sync/atomic"
	"testing"
	"time"
)

// Integration tests against a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

// TestIntegration_SubscriptionTracking verifies the subscriptions that
// restoreSubscriptions would replay after a reconnect.
func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "winkbridge-int-sub-track"
	client := connectOrSkip(t, cfg)

	patterns := client.Topics().Subscriptions()
	for _, p := range patterns {
		if err := client.Subscribe(p, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", p, err)
		}
	}
	if client.SubscriptionCount() != len(patterns) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(patterns))
	}

	// Replaying must not disturb tracking.
	client.restoreSubscriptions()
	if client.SubscriptionCount() != len(patterns) {
		t.Errorf("SubscriptionCount() after restore = %d", client.SubscriptionCount())
	}
}

// TestIntegration_OnConnectFiresOnHandleConnect verifies the reconnect path
// notifies the registered callback.
func TestIntegration_OnConnectFiresOnHandleConnect(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "winkbridge-int-callbacks"
	client := connectOrSkip(t, cfg)

	var calls atomic.Int32
	client.SetOnConnect(func() { calls.Add(1) })

	client.handleConnect()
	if calls.Load() != 1 {
		t.Errorf("onConnect calls = %d, want 1", calls.Load())
	}

	client.SetOnConnect(nil)
	client.handleConnect()
	if calls.Load() != 1 {
		t.Errorf("onConnect calls = %d after clearing, want 1", calls.Load())
	}
}

// TestIntegration_DisconnectCallback verifies handleDisconnect updates state
// and notifies the callback.
func TestIntegration_DisconnectCallback(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "winkbridge-int-disconnect"
	client := connectOrSkip(t, cfg)

	got := make(chan error, 1)
	client.SetOnDisconnect(func(err error) { got <- err })

	client.handleDisconnect(ErrNotConnected)
	if client.IsConnected() {
		t.Error("IsConnected() = true after handleDisconnect")
	}
	select {
	case err := <-got:
		if err != ErrNotConnected {
			t.Errorf("callback error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("onDisconnect not called")
	}
}
