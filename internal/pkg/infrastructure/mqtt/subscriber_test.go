package mqtt

import (
	"net"
	"testing"
	"time"

	server "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
)

type message struct {
	topic   string
	payload string
}

func TestThatSubscriberReceivesReadingsFromTheBroker(t *testing.T) {
	broker, addr := newBrokerForTest(t)

	received := make(chan message, 4)
	sub, err := NewSubscriber(config.MQTT{
		Broker:   "tcp://" + addr,
		ClientID: "energy-dashboard-test",
		Topic:    "energy/devices/+/readings",
	}, logging.NewLogger(), func(topic string, payload []byte) {
		received <- message{topic, string(payload)}
	})
	require.NoError(t, err)
	defer sub.Close()

	assert.True(t, sub.IsConnected())

	require.NoError(t, broker.Publish("energy/devices/E1/readings", []byte(`{"consumption":1.5}`), false, 0))

	// the subscription is made asynchronously from the connect handler
	require.Eventually(t, func() bool {
		if broker.Publish("energy/devices/E1/readings", []byte(`{"consumption":1.5}`), false, 0) != nil {
			return false
		}
		select {
		case m := <-received:
			return m.topic == "energy/devices/E1/readings" && m.payload == `{"consumption":1.5}`
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	for len(received) > 0 {
		<-received
	}

	require.NoError(t, broker.Publish("energy/other/E1", []byte(`{}`), false, 0))
	select {
	case m := <-received:
		if m.topic == "energy/other/E1" {
			t.Fatalf("received message on unsubscribed topic")
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestThatHandlerPanicsDoNotBreakTheSubscription(t *testing.T) {
	broker, addr := newBrokerForTest(t)

	received := make(chan string, 4)
	sub, err := NewSubscriber(config.MQTT{
		Broker:   "tcp://" + addr,
		ClientID: "energy-dashboard-panic",
		Topic:    "energy/devices/+/readings",
	}, logging.NewLogger(), func(topic string, payload []byte) {
		if string(payload) == "boom" {
			panic("boom")
		}
		received <- string(payload)
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, broker.Publish("energy/devices/E1/readings", []byte("boom"), false, 0))

	require.Eventually(t, func() bool {
		if broker.Publish("energy/devices/E1/readings", []byte("boom"), false, 0) != nil {
			return false
		}
		if broker.Publish("energy/devices/E1/readings", []byte("ok"), false, 0) != nil {
			return false
		}
		select {
		case p := <-received:
			return p == "ok"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
}

func TestThatConnectingToAMissingBrokerFails(t *testing.T) {
	addr := freeAddress(t)

	_, err := NewSubscriber(config.MQTT{
		Broker:   "tcp://" + addr,
		ClientID: "energy-dashboard-missing",
		Topic:    "energy/devices/+/readings",
	}, logging.NewLogger(), func(topic string, payload []byte) {})

	assert.Error(t, err)
}

func newBrokerForTest(t *testing.T) (*server.Server, string) {
	addr := freeAddress(t)

	// Publish needs the inline client
	broker := server.New(&server.Options{InlineClient: true})
	require.NoError(t, broker.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{ID: "t1", Address: addr})))

	go func() {
		broker.Serve()
	}()
	t.Cleanup(func() { broker.Close() })

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	return broker, addr
}

func TestThatTheTestBrokerAcceptsInlinePublishes(t *testing.T) {
	broker, _ := newBrokerForTest(t)

	err := broker.Publish("energy/devices/E1/readings", []byte(`{"consumption":1}`), false, 0)
	if err != nil {
		t.Errorf("publishing on the test broker failed: %s", err.Error())
	}
}

func freeAddress(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().String()
}
