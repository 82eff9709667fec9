package mqtt

import (
	"testing"

	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
)

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 1883, ClientID: "doorbird-test"},
		Auth:   config.MQTTAuthConfig{Username: "bridge", Password: "pw"},
		QoS:    1,
	}

	opts := buildClientOptions(cfg, Topics{})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("Servers = %v, want tcp://broker.local:1883", opts.Servers)
	}
	if opts.ClientID != "doorbird-test" {
		t.Errorf("ClientID = %q, want doorbird-test", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q, want bridge/pw", opts.Username, opts.Password)
	}
	if !opts.WillEnabled || opts.WillTopic != "doorbird/status" || string(opts.WillPayload) != PayloadOffline || !opts.WillRetained {
		t.Errorf("will = %v %q %q retained=%v, want retained offline on doorbird/status",
			opts.WillEnabled, opts.WillTopic, opts.WillPayload, opts.WillRetained)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig should be nil when TLS is disabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "c"},
	}

	opts := buildClientOptions(cfg, Topics{})

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig should require TLS 1.2")
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty without credentials", opts.Username)
	}
}
