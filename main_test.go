package main

import (
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/elijahnyp/timer_programmer/component"
	"github.com/elijahnyp/timer_programmer/programmer"
	. "github.com/elijahnyp/timer_programmer/util"
)

type publishCall struct {
	Payload  interface{}
	Topic    string
	Retained bool
}

type mockClient struct {
	publishCalls []publishCall
	connected    bool
	mu           sync.Mutex
}

func (m *mockClient) IsConnected() bool { return m.connected }
func (m *mockClient) IsConnectionOpen() bool { return m.connected }
func (m *mockClient) Connect() MQTT.Token { m.connected = true; return &mockToken{} }
func (m *mockClient) Disconnect(quiesce uint) { m.connected = false }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishCalls = append(m.publishCalls, publishCall{Topic: topic, Retained: retained, Payload: payload})
	return &mockToken{}
}
func (m *mockClient) Subscribe(string, byte, MQTT.MessageHandler) MQTT.Token { return &mockToken{} }
func (m *mockClient) SubscribeMultiple(map[string]byte, MQTT.MessageHandler) MQTT.Token {
	return &mockToken{}
}
func (m *mockClient) Unsubscribe(...string) MQTT.Token { return &mockToken{} }
func (m *mockClient) AddRoute(string, MQTT.MessageHandler) {}
func (m *mockClient) OptionsReader() MQTT.ClientOptionsReader { return MQTT.ClientOptionsReader{} }

func (m *mockClient) published() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]interface{})
	for _, call := range m.publishCalls {
		out[call.Topic] = call.Payload
	}
	return out
}

type mockToken struct{}

func (t *mockToken) Wait() bool { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return nil }

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack() {}

func ptr(v uint64) *uint64 { return &v }

// setupTest installs a fresh component with one virtual "heating" entity and a
// connected mock MQTT client.
func setupTest(t *testing.T) (*programmer.Virtual, *mockClient) {
	t.Helper()
	Config.Set("topic_base", "timer_programmer")
	Config.Set("discovery_prefix", "homeassistant")
	Config.Set("availability_topic", "hab/online")

	programmers = component.Setup(zerolog.Nop(), 0)
	heating := programmer.NewVirtual(programmer.Description{
		Key:  "heating",
		Name: "Heating",
		Bits: []programmer.BitDescription{{Bit: 0, Name: "Morning"}, {Bit: 1, Name: "Evening"}},
	}, ptr(1), 0)
	if err := programmers.SetupEntry(component.Entry{ID: "house", Entities: []programmer.Entity{heating}}); err != nil {
		t.Fatalf("SetupEntry failed: %v", err)
	}

	client := &mockClient{connected: true}
	Client = client
	t.Cleanup(func() { Client = nil })
	return heating, client
}
