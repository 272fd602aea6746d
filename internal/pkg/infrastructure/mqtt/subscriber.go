package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
)

//MessageHandler receives the payload of every message published on the subscribed topic
type MessageHandler func(topic string, payload []byte)

//Subscriber keeps a subscription to a broker topic alive across reconnects
type Subscriber struct {
	client paho.Client
	topic  string
	log    logging.Logger
}

const connectTimeout = 10 * time.Second

//NewSubscriber connects to the configured broker and subscribes to its topic. The
//subscription is renewed every time the connection is re-established.
func NewSubscriber(cfg config.MQTT, log logging.Logger, handler MessageHandler) (*Subscriber, error) {
	log = log.WithField("component", "mqtt").WithField("broker", cfg.Broker)

	s := &Subscriber{
		topic: cfg.Topic,
		log:   log,
	}

	onMessage := func(c paho.Client, msg paho.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("recovered from panic while handling message on %s: %v", msg.Topic(), r)
			}
		}()

		handler(msg.Topic(), msg.Payload())
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		log.Warnf("lost connection to mqtt broker: %s", err.Error())
	})
	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Infof("connected to mqtt broker, subscribing to %s", s.topic)

		token := c.Subscribe(s.topic, 1, onMessage)
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			log.Errorf("failed to subscribe to topic %s: %s", s.topic, token.Error().Error())
		}
	})

	s.client = paho.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.Broker)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}

	return s, nil
}

//IsConnected reports whether the subscriber currently has a broker connection
func (s *Subscriber) IsConnected() bool {
	return s.client.IsConnected()
}

//Close unsubscribes and disconnects from the broker
func (s *Subscriber) Close() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(250)
}
