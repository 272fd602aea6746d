package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThatIngestByEUIKeepsTemperatureWhenAbsent(t *testing.T) {
	db, device := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)
	ctx := context.Background()
	ts := NewTimestamp(time.Date(2024, 3, 5, 10, 20, 0, 0, time.UTC))

	_, err := svc.Ingest(ctx, Reading{DeviceEUI: "E1", Consumption: NewNumber(1.2), Temperature: NewNumber(30), Timestamp: ts})
	require.NoError(t, err)

	result, err := svc.Ingest(ctx, Reading{DeviceEUI: "E1", Consumption: NewNumber(1.8), Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, device.ID, result.DeviceID)
	assert.Equal(t, "2024-03-05", result.ConsumptionDate)
	assert.Equal(t, "10:00:00", result.HourStart)
	assert.Equal(t, "10:59:59", result.HourEnd)

	rows, err := db.GetDeviceConsumption(ctx, device.ID, "2024-03-05")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.8, rows[0].Consumption)
	require.NotNil(t, rows[0].Temperature)
	assert.Equal(t, 30.0, *rows[0].Temperature)

	stored, err := db.GetDeviceFromID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.8, stored.CurrentPower)
	assert.NotNil(t, stored.LastReading)
}

func TestThatIngestValidatesRequiredFields(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)

	_, err := svc.Ingest(context.Background(), Reading{DeviceEUI: "E1"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Consumption value is required", ve.Reason)

	_, err = svc.Ingest(context.Background(), Reading{Consumption: NewNumber(1)})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Either device_id or device_eui is required", ve.Reason)
}

func TestThatFarAwayTimestampsAreValidationErrors(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)

	r := Reading{}
	require.NoError(t, json.Unmarshal([]byte(`{"device_eui":"E1","consumption":1,"timestamp":1e18}`), &r))

	_, err := svc.Ingest(context.Background(), r)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "timestamp is out of range", ve.Reason)
}

func TestThatZeroConsumptionIsAccepted(t *testing.T) {
	db, device := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)

	r := Reading{}
	require.NoError(t, json.Unmarshal([]byte(fmt.Sprintf(`{"device_id":"%d","consumption":0}`, device.ID)), &r))

	result, err := svc.Ingest(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Consumption)
}

func TestThatUnknownDevicesAreNotFound(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)

	_, err := svc.Ingest(context.Background(), Reading{DeviceEUI: "E9", Consumption: NewNumber(1)})
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.EqualError(t, err, "Device with EUI E9 not found")

	_, err = svc.Ingest(context.Background(), Reading{DeviceID: NewNumber(4711), Consumption: NewNumber(1)})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestThatReadingsAreBucketedInTheConfiguredTimezone(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)
	loc := time.FixedZone("UTC+2", 2*60*60)
	svc := NewService(db, logging.NewLogger(), loc)

	ts := NewTimestamp(time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC))
	result, err := svc.Ingest(context.Background(), Reading{DeviceEUI: "E1", Consumption: NewNumber(1), Timestamp: ts})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-06", result.ConsumptionDate)
	assert.Equal(t, "01:00:00", result.HourStart)
}

func TestThatBulkIngestionIsFailSoft(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)

	items := []json.RawMessage{
		json.RawMessage(`{"device_eui":"E1","consumption":1.0}`),
		json.RawMessage(`{"device_eui":"E9","consumption":2.0}`),
		json.RawMessage(`{"device_eui":"E1","consumption":"3.5","temperature":"21.5"}`),
	}

	result := svc.IngestBulk(context.Background(), items)
	assert.Len(t, result.Results, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "Device with EUI E9 not found", result.Errors[0].Error)
}

func TestThatMalformedBulkItemsAreReportedPerItem(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)

	items := []json.RawMessage{
		json.RawMessage(`{"device_eui":"E1","consumption":"lots"}`),
		json.RawMessage(`{"device_eui":"E1","consumption":1}`),
	}

	result := svc.IngestBulk(context.Background(), items)
	assert.Len(t, result.Results, 1)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0].Error, "Invalid reading"))
}

func TestThatObserversAreNotifiedAboutRecordedReadings(t *testing.T) {
	db, device := newDatabaseWithDevice(t)

	events := []Event{}
	observer := ObserverFunc(func(ctx context.Context, e Event) {
		events = append(events, e)
	})

	svc := NewService(db, logging.NewLogger(), time.UTC, observer)

	_, err := svc.Ingest(context.Background(), Reading{DeviceEUI: "E1", Consumption: NewNumber(1)})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), Reading{DeviceEUI: "E9", Consumption: NewNumber(1)})
	require.Error(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, device.ID, events[0].Device.ID)
	assert.Equal(t, 1.0, events[0].Stored.Consumption)
}

func TestThatTelemetryAndBroadcastObserversForwardReadings(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)

	b := &broadcastMock{}
	p := &publisherMock{}
	svc := NewService(db, logging.NewLogger(), time.UTC, BroadcastTo(b), PublishTo(p, logging.NewLogger()))

	_, err := svc.Ingest(context.Background(), Reading{DeviceEUI: "E1", Consumption: NewNumber(2), Temperature: NewNumber(21)})
	require.NoError(t, err)

	require.Len(t, b.messages, 1)
	require.Len(t, p.messages, 1)
	assert.Equal(t, "E1", p.messages[0].Origin.Device)
	assert.Equal(t, 21.0, *p.messages[0].Temperature)
}

func TestThatMQTTReadingsFlushTheResponseCache(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)

	c := &flusherMock{}
	svc := NewService(db, logging.NewLogger(), time.UTC, FlushCache(c, logging.NewLogger()))

	result := svc.HandleMessage(context.Background(), "energy/devices/E1/readings", []byte(`[{"consumption":1},{"consumption":2}]`))

	if len(result.Results) != 2 {
		t.Fatalf("expected 2 recorded readings, got %d", len(result.Results))
	}
	if c.flushes != 2 {
		t.Errorf("expected the cache to be flushed once per reading, got %d flushes", c.flushes)
	}
}

func TestThatAFailingCacheFlushDoesNotFailIngestion(t *testing.T) {
	db, _ := newDatabaseWithDevice(t)

	c := &flusherMock{err: errors.New("redis is down")}
	svc := NewService(db, logging.NewLogger(), time.UTC, FlushCache(c, logging.NewLogger()))

	_, err := svc.Ingest(context.Background(), Reading{DeviceEUI: "E1", Consumption: NewNumber(1)})
	if err != nil {
		t.Errorf("ingestion failed when the cache could not be flushed: %s", err.Error())
	}
}

func TestThatThresholdCheckerRaisesAlerts(t *testing.T) {
	db, device := newDatabaseWithDevice(t)
	ctx := context.Background()

	_, err := db.SaveSetting(ctx, &models.Setting{SettingKey: SettingConsumptionThreshold, SettingValue: "5", DataType: models.SettingTypeNumber})
	require.NoError(t, err)
	_, err = db.SaveSetting(ctx, &models.Setting{SettingKey: SettingTemperatureThreshold, SettingValue: "28", DataType: models.SettingTypeNumber})
	require.NoError(t, err)

	svc := NewService(db, logging.NewLogger(), time.UTC, NewThresholdChecker(db, logging.NewLogger()))

	_, err = svc.Ingest(ctx, Reading{DeviceEUI: "E1", Consumption: NewNumber(4), Temperature: NewNumber(25)})
	require.NoError(t, err)

	alerts, err := db.GetAlertsByDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	_, err = svc.Ingest(ctx, Reading{DeviceEUI: "E1", Consumption: NewNumber(6), Temperature: NewNumber(30)})
	require.NoError(t, err)

	alerts, err = db.GetAlertsByDevice(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Equal(t, models.SeverityHigh, a.Severity)
		assert.Equal(t, device.ClassID, *a.ClassID)
	}
}

func TestThatHandleMessageTakesTheEUIFromTheTopic(t *testing.T) {
	db, device := newDatabaseWithDevice(t)
	svc := NewService(db, logging.NewLogger(), time.UTC)
	ctx := context.Background()

	result := svc.HandleMessage(ctx, "energy/devices/E1/readings", []byte(`{"consumption":1.5}`))
	require.Empty(t, result.Errors)
	require.Len(t, result.Results, 1)
	assert.Equal(t, device.ID, result.Results[0].DeviceID)

	result = svc.HandleMessage(ctx, "energy/devices/E1/readings", []byte(`[{"consumption":1},{"device_eui":"E9","consumption":1}]`))
	assert.Len(t, result.Results, 1)
	assert.Len(t, result.Errors, 1)

	result = svc.HandleMessage(ctx, "energy/devices/E1/readings", []byte(`not json`))
	assert.Len(t, result.Errors, 1)
}

type broadcastMock struct {
	messages []interface{}
}

func (b *broadcastMock) Broadcast(v interface{}) {
	b.messages = append(b.messages, v)
}

type flusherMock struct {
	flushes int
	err     error
}

func (f *flusherMock) Flush(ctx context.Context) error {
	f.flushes++
	return f.err
}

type publisherMock struct {
	messages []*telemetry.EnergyConsumption
}

func (p *publisherMock) Publish(msg *telemetry.EnergyConsumption) error {
	p.messages = append(p.messages, msg)
	return nil
}

func newDatabaseWithDevice(t *testing.T) (database.Datastore, *models.Device) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)

	db, err := database.NewDatabaseConnection(database.NewSQLiteConnector(dsn), logging.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	class, err := db.CreateClass(ctx, &models.Class{Name: "Meeting room"})
	require.NoError(t, err)

	eui := "E1"
	device, err := db.CreateDevice(ctx, &models.Device{
		ClassID:     class.ID,
		DeviceName:  "AC 1",
		DeviceType:  models.DeviceTypeAC,
		PowerRating: 1200,
		DeviceEUI:   &eui,
	})
	require.NoError(t, err)

	return db, device
}
