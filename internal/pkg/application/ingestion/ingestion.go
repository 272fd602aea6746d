package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

//Store is the part of the datastore that ingestion needs
type Store interface {
	database.DeviceStore
	database.ConsumptionStore
}

//ValidationError is returned when a reading lacks required fields
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

//NotFoundError is returned when a reading refers to a device that does not exist
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string {
	return e.Reason
}

//Is makes NotFoundError match database.ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == database.ErrNotFound
}

//Result describes a recorded reading
type Result struct {
	DeviceID        uint      `json:"device_id"`
	DeviceName      string    `json:"device_name"`
	DeviceType      string    `json:"device_type"`
	Consumption     float64   `json:"consumption"`
	Temperature     *float64  `json:"temperature"`
	Humidity        *float64  `json:"humidity"`
	Timestamp       time.Time `json:"timestamp"`
	ConsumptionDate string    `json:"consumption_date"`
	HourStart       string    `json:"hour_start"`
	HourEnd         string    `json:"hour_end"`
	Status          string    `json:"status"`
}

//ItemError reports why one item of a bulk request could not be recorded
type ItemError struct {
	Index int             `json:"index"`
	Item  json.RawMessage `json:"item"`
	Error string          `json:"error"`
}

//BulkResult collects the outcome of every item in a bulk request
type BulkResult struct {
	Results []Result    `json:"results"`
	Errors  []ItemError `json:"errors"`
}

//Service records device readings as hourly consumption rows
type Service struct {
	db        Store
	log       logging.Logger
	location  *time.Location
	now       func() time.Time
	observers []Observer
}

//NewService creates an ingestion service that buckets readings into hours in loc
func NewService(db Store, log logging.Logger, loc *time.Location, observers ...Observer) *Service {
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		db:        db,
		log:       log.WithField("component", "ingestion"),
		location:  loc,
		now:       time.Now,
		observers: observers,
	}
}

//Ingest resolves the device a reading belongs to, upserts the hourly row it falls into
//and refreshes the live snapshot of the device. The two writes are not atomic.
func (s *Service) Ingest(ctx context.Context, r Reading) (*Result, error) {
	if !r.Consumption.Valid {
		return nil, &ValidationError{Reason: "Consumption value is required"}
	}
	if !r.DeviceID.Valid && r.DeviceEUI == "" {
		return nil, &ValidationError{Reason: "Either device_id or device_eui is required"}
	}

	device, err := s.resolveDevice(ctx, r)
	if err != nil {
		return nil, err
	}

	at := s.now().In(s.location)
	if !r.Timestamp.IsZero() {
		at, err = r.Timestamp.Time(s.location)
		if err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		at = at.In(s.location)
	}

	date, hourStart, hourEnd := models.HourWindow(at)

	row := &models.DeviceConsumption{
		DeviceID:        device.ID,
		Consumption:     r.Consumption.Value,
		ConsumptionDate: date,
		HourStart:       hourStart,
		HourEnd:         hourEnd,
		Temperature:     r.Temperature.Ptr(),
		Humidity:        r.Humidity.Ptr(),
	}

	stored, err := s.db.UpsertConsumption(ctx, row, true)
	if err != nil {
		return nil, err
	}

	err = s.db.UpdateDeviceReading(ctx, device.ID, r.Consumption.Value, r.Temperature.Ptr(), s.now())
	if err != nil {
		return nil, err
	}

	result := &Result{
		DeviceID:        device.ID,
		DeviceName:      firstNonEmpty(r.DeviceName, device.DeviceName),
		DeviceType:      firstNonEmpty(r.DeviceType, device.DeviceType),
		Consumption:     r.Consumption.Value,
		Temperature:     r.Temperature.Ptr(),
		Humidity:        r.Humidity.Ptr(),
		Timestamp:       at,
		ConsumptionDate: date,
		HourStart:       hourStart,
		HourEnd:         hourEnd,
		Status:          "success",
	}

	event := Event{Device: *device, Stored: *stored, Result: *result}
	for _, o := range s.observers {
		o.ReadingRecorded(ctx, event)
	}

	return result, nil
}

//IngestBulk records every item independently. A failing item never affects the others.
func (s *Service) IngestBulk(ctx context.Context, items []json.RawMessage) BulkResult {
	return s.ingestItems(ctx, items, "")
}

func (s *Service) ingestItems(ctx context.Context, items []json.RawMessage, defaultEUI string) BulkResult {
	result := BulkResult{
		Results: []Result{},
		Errors:  []ItemError{},
	}

	for idx, item := range items {
		r := Reading{}
		var err error

		if jsonErr := json.Unmarshal(item, &r); jsonErr != nil {
			err = &ValidationError{Reason: "Invalid reading: " + jsonErr.Error()}
		} else {
			if !r.DeviceID.Valid && r.DeviceEUI == "" {
				r.DeviceEUI = defaultEUI
			}

			var recorded *Result
			recorded, err = s.Ingest(ctx, r)
			if err == nil {
				result.Results = append(result.Results, *recorded)
				continue
			}
		}

		if !isClientError(err) {
			s.log.Errorf("failed to record bulk item %d: %s", idx, err.Error())
		}

		result.Errors = append(result.Errors, ItemError{Index: idx, Item: item, Error: err.Error()})
	}

	return result
}

func (s *Service) resolveDevice(ctx context.Context, r Reading) (*models.Device, error) {
	if r.DeviceID.Valid {
		id := r.DeviceID.Value
		if id <= 0 || id != math.Trunc(id) {
			return nil, &ValidationError{Reason: fmt.Sprintf("Invalid device_id %v", id)}
		}

		device, err := s.db.GetDeviceFromID(ctx, uint(id))
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Reason: fmt.Sprintf("Device with ID %d not found", uint(id))}
		}
		return device, err
	}

	device, err := s.db.GetDeviceFromEUI(ctx, r.DeviceEUI)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{Reason: fmt.Sprintf("Device with EUI %s not found", r.DeviceEUI)}
	}
	return device, err
}

func isClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, database.ErrNotFound)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
