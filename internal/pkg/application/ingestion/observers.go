package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/telemetry"
)

//Event is handed to observers after a reading has been recorded
type Event struct {
	Device models.Device
	Stored models.DeviceConsumption
	Result Result
}

//Observer is notified about every recorded reading. Observers must not block for long
//and cannot fail the ingestion.
type Observer interface {
	ReadingRecorded(ctx context.Context, e Event)
}

//ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(ctx context.Context, e Event)

//ReadingRecorded calls f
func (f ObserverFunc) ReadingRecorded(ctx context.Context, e Event) {
	f(ctx, e)
}

//Broadcaster pushes messages to live subscribers
type Broadcaster interface {
	Broadcast(v interface{})
}

//BroadcastTo returns an observer that pushes every recorded reading to b
func BroadcastTo(b Broadcaster) Observer {
	return ObserverFunc(func(ctx context.Context, e Event) {
		b.Broadcast(struct {
			Result
			ClassID uint `json:"class_id"`
		}{e.Result, e.Device.ClassID})
	})
}

//TelemetryPublisher sends energy telemetry to other services
type TelemetryPublisher interface {
	Publish(msg *telemetry.EnergyConsumption) error
}

//PublishTo returns an observer that forwards every recorded reading as telemetry
func PublishTo(p TelemetryPublisher, log logging.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, e Event) {
		device := strconv.FormatUint(uint64(e.Device.ID), 10)
		if e.Device.DeviceEUI != nil && *e.Device.DeviceEUI != "" {
			device = *e.Device.DeviceEUI
		}

		msg := telemetry.NewEnergyConsumption(device, e.Device.ClassID, e.Device.DeviceType, e.Result.Consumption, e.Result.Timestamp)
		msg.Temperature = e.Result.Temperature
		msg.Humidity = e.Result.Humidity

		if err := p.Publish(msg); err != nil {
			log.Errorf("failed to publish telemetry for device %s: %s", device, err.Error())
		}
	})
}

//CacheFlusher drops cached responses
type CacheFlusher interface {
	Flush(ctx context.Context) error
}

//FlushCache returns an observer that drops cached responses after every recorded
//reading, so aggregates also go stale for readings that did not arrive over HTTP
func FlushCache(c CacheFlusher, log logging.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, e Event) {
		if err := c.Flush(ctx); err != nil {
			log.Errorf("failed to flush response cache after reading from device %d: %s", e.Device.ID, err.Error())
		}
	})
}

//Names of the system settings that the threshold checker reads
const (
	SettingConsumptionThreshold = "consumption_threshold"
	SettingTemperatureThreshold = "temperature_threshold"
)

//AlertStore is the part of the datastore that the threshold checker needs
type AlertStore interface {
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error)
}

//ThresholdChecker raises alerts for readings above the configured thresholds
type ThresholdChecker struct {
	db  AlertStore
	log logging.Logger
}

//NewThresholdChecker creates a checker that reads its thresholds from the system settings
func NewThresholdChecker(db AlertStore, log logging.Logger) *ThresholdChecker {
	return &ThresholdChecker{db: db, log: log}
}

//ReadingRecorded implements Observer
func (c *ThresholdChecker) ReadingRecorded(ctx context.Context, e Event) {
	if limit, ok := c.threshold(ctx, SettingConsumptionThreshold); ok && e.Result.Consumption > limit {
		c.raise(ctx, e, "consumption", "High energy consumption",
			fmt.Sprintf("%s consumed %.2f kWh, above the threshold of %.2f kWh", e.Device.DeviceName, e.Result.Consumption, limit),
			e.Result.Consumption, limit)
	}

	if e.Result.Temperature == nil {
		return
	}

	if limit, ok := c.threshold(ctx, SettingTemperatureThreshold); ok && *e.Result.Temperature > limit {
		c.raise(ctx, e, "temperature", "High temperature",
			fmt.Sprintf("%s reported %.1f °C, above the threshold of %.1f °C", e.Device.DeviceName, *e.Result.Temperature, limit),
			*e.Result.Temperature, limit)
	}
}

func (c *ThresholdChecker) threshold(ctx context.Context, key string) (float64, bool) {
	setting, err := c.db.GetSetting(ctx, key)
	if err != nil {
		if err != database.ErrNotFound {
			c.log.Errorf("failed to read setting %s: %s", key, err.Error())
		}
		return 0, false
	}

	limit, err := strconv.ParseFloat(setting.SettingValue, 64)
	if err != nil {
		c.log.Warnf("setting %s is not a number: %s", key, setting.SettingValue)
		return 0, false
	}

	return limit, true
}

func (c *ThresholdChecker) raise(ctx context.Context, e Event, alertType, title, message string, value, limit float64) {
	metadata, _ := json.Marshal(map[string]interface{}{
		"value":            value,
		"threshold":        limit,
		"consumption_date": e.Result.ConsumptionDate,
		"hour_start":       e.Result.HourStart,
	})

	deviceID := e.Device.ID
	classID := e.Device.ClassID

	_, err := c.db.CreateAlert(ctx, &models.Alert{
		DeviceID: &deviceID,
		ClassID:  &classID,
		Type:     alertType,
		Title:    title,
		Message:  message,
		Severity: models.SeverityHigh,
		Metadata: metadata,
	})
	if err != nil {
		c.log.Errorf("failed to create %s alert for device %d: %s", alertType, deviceID, err.Error())
	}
}
