package telemetry

import (
	"time"

	"github.com/iot-for-tillgenglighet/messaging-golang/pkg/messaging"
)

//TopicEnergy is the topic that consumption telemetry is published on
const TopicEnergy string = "telemetry.energy"

//MessagingContext is an interface that allows mocking of messaging.Context parameters
type MessagingContext interface {
	PublishOnTopic(message messaging.TopicMessage) error
}

//Origin identifies where a telemetry message was measured
type Origin struct {
	Device  string `json:"device"`
	ClassID uint   `json:"class_id"`
}

//EnergyConsumption is the message sent to other services whenever a device reports its consumption
type EnergyConsumption struct {
	Origin      Origin   `json:"origin"`
	Timestamp   string   `json:"timestamp"`
	DeviceType  string   `json:"device_type"`
	Consumption float64  `json:"consumption"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

//NewEnergyConsumption creates a message for the given device and reading
func NewEnergyConsumption(device string, classID uint, deviceType string, consumption float64, at time.Time) *EnergyConsumption {
	return &EnergyConsumption{
		Origin:      Origin{Device: device, ClassID: classID},
		Timestamp:   at.UTC().Format(time.RFC3339),
		DeviceType:  deviceType,
		Consumption: consumption,
	}
}

//ContentType returns the content type that this message is serialized as
func (m *EnergyConsumption) ContentType() string {
	return "application/json"
}

//TopicName returns the topic that this message should be published on
func (m *EnergyConsumption) TopicName() string {
	return TopicEnergy
}

//Publisher sends telemetry messages over the message queue
type Publisher struct {
	messenger MessagingContext
}

//NewPublisher wraps a messaging context
func NewPublisher(messenger MessagingContext) *Publisher {
	return &Publisher{messenger: messenger}
}

//Publish sends msg on its topic
func (p *Publisher) Publish(msg *EnergyConsumption) error {
	return p.messenger.PublishOnTopic(msg)
}
