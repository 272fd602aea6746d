package database

import (
	"context"
	"fmt"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//ConsumptionStore reads, aggregates and writes hourly consumption rows
type ConsumptionStore interface {
	GetDeviceConsumption(ctx context.Context, deviceID uint, date string) ([]models.DeviceConsumption, error)
	GetConsumptionForDevices(ctx context.Context, deviceIDs []uint, date string) ([]models.DeviceConsumption, error)
	GetClassConsumption(ctx context.Context, classID uint, startDate, endDate string) ([]ClassConsumption, error)
	GetMonthlyConsumption(ctx context.Context, deviceID uint, year, month int) ([]DailySummary, error)
	GetClassTotals(ctx context.Context, classID uint, startDate, endDate string) ([]DeviceTotal, error)
	GetHourlyClassConsumption(ctx context.Context, classID uint, date string) ([]HourlyTypeTotal, error)
	UpsertConsumption(ctx context.Context, row *models.DeviceConsumption, keepSensorValues bool) (*models.DeviceConsumption, error)
	DeleteConsumption(ctx context.Context, id uint) error
}

//ClassConsumption is a consumption row together with the device it was measured on
type ClassConsumption struct {
	models.DeviceConsumption
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
}

//DailySummary aggregates the hourly rows of one device for one day
type DailySummary struct {
	Date             string   `json:"date"`
	TotalConsumption float64  `json:"total_consumption"`
	AvgTemperature   *float64 `json:"avg_temperature"`
	PeakConsumption  float64  `json:"peak_consumption"`
}

//DeviceTotal aggregates the consumption of one device over a date range
type DeviceTotal struct {
	ID               uint    `json:"id"`
	DeviceName       string  `json:"device_name"`
	DeviceType       string  `json:"device_type"`
	TotalConsumption float64 `json:"total_consumption"`
	AvgConsumption   float64 `json:"avg_consumption"`
	PeakConsumption  float64 `json:"peak_consumption"`
	ReadingsCount    int64   `json:"readings_count"`
}

//HourlyTypeTotal sums the consumption of all devices of one type in a class for one hour
type HourlyTypeTotal struct {
	HourStart        string   `json:"hour_start"`
	DeviceType       string   `json:"device_type"`
	TotalConsumption float64  `json:"total_consumption"`
	AvgTemperature   *float64 `json:"avg_temperature"`
}

func (db *myDB) GetDeviceConsumption(ctx context.Context, deviceID uint, date string) ([]models.DeviceConsumption, error) {
	rows := []models.DeviceConsumption{}
	err := db.impl.WithContext(ctx).
		Where("device_id = ? AND consumption_date = ?", deviceID, date).
		Order("hour_start").
		Find(&rows).Error
	return rows, err
}

func (db *myDB) GetConsumptionForDevices(ctx context.Context, deviceIDs []uint, date string) ([]models.DeviceConsumption, error) {
	rows := []models.DeviceConsumption{}
	if len(deviceIDs) == 0 {
		return rows, nil
	}

	err := db.impl.WithContext(ctx).
		Where("device_id IN ? AND consumption_date = ?", deviceIDs, date).
		Order("device_id, hour_start").
		Find(&rows).Error
	return rows, err
}

func (db *myDB) classRows(ctx context.Context, classID uint) *gorm.DB {
	return db.impl.WithContext(ctx).
		Table("device_consumption").
		Joins("JOIN devices ON devices.id = device_consumption.device_id").
		Where("devices.class_id = ?", classID)
}

func (db *myDB) GetClassConsumption(ctx context.Context, classID uint, startDate, endDate string) ([]ClassConsumption, error) {
	rows := []ClassConsumption{}
	err := db.classRows(ctx, classID).
		Select("device_consumption.*, devices.device_name, devices.device_type").
		Where("device_consumption.consumption_date BETWEEN ? AND ?", startDate, endDate).
		Order("device_consumption.consumption_date, device_consumption.hour_start").
		Scan(&rows).Error
	return rows, err
}

func (db *myDB) GetMonthlyConsumption(ctx context.Context, deviceID uint, year, month int) ([]DailySummary, error) {
	first := fmt.Sprintf("%04d-%02d-01", year, month)
	last := fmt.Sprintf("%04d-%02d-31", year, month)

	rows := []DailySummary{}
	err := db.impl.WithContext(ctx).
		Table("device_consumption").
		Select(`consumption_date AS date,
			SUM(consumption) AS total_consumption,
			AVG(temperature) AS avg_temperature,
			MAX(consumption) AS peak_consumption`).
		Where("device_id = ? AND consumption_date BETWEEN ? AND ?", deviceID, first, last).
		Group("consumption_date").
		Order("consumption_date").
		Scan(&rows).Error
	return rows, err
}

func (db *myDB) GetClassTotals(ctx context.Context, classID uint, startDate, endDate string) ([]DeviceTotal, error) {
	rows := []DeviceTotal{}
	err := db.classRows(ctx, classID).
		Select(`devices.id AS id,
			devices.device_name AS device_name,
			devices.device_type AS device_type,
			SUM(device_consumption.consumption) AS total_consumption,
			AVG(device_consumption.consumption) AS avg_consumption,
			MAX(device_consumption.consumption) AS peak_consumption,
			COUNT(*) AS readings_count`).
		Where("device_consumption.consumption_date BETWEEN ? AND ?", startDate, endDate).
		Group("devices.id, devices.device_name, devices.device_type").
		Order("total_consumption DESC").
		Scan(&rows).Error
	return rows, err
}

func (db *myDB) GetHourlyClassConsumption(ctx context.Context, classID uint, date string) ([]HourlyTypeTotal, error) {
	rows := []HourlyTypeTotal{}
	err := db.classRows(ctx, classID).
		Select(`device_consumption.hour_start AS hour_start,
			devices.device_type AS device_type,
			SUM(device_consumption.consumption) AS total_consumption,
			AVG(device_consumption.temperature) AS avg_temperature`).
		Where("device_consumption.consumption_date = ?", date).
		Group("device_consumption.hour_start, devices.device_type").
		Order("device_consumption.hour_start").
		Scan(&rows).Error
	return rows, err
}

//UpsertConsumption inserts the hourly row or, if the device already has a row for that
//hour, overwrites its consumption. With keepSensorValues an absent temperature or
//humidity leaves the stored value untouched, otherwise the incoming values replace them.
func (db *myDB) UpsertConsumption(ctx context.Context, row *models.DeviceConsumption, keepSensorValues bool) (*models.DeviceConsumption, error) {
	updates := clause.AssignmentColumns([]string{"consumption", "hour_end"})

	if keepSensorValues {
		updates = append(updates,
			clause.Assignment{
				Column: clause.Column{Name: "temperature"},
				Value:  gorm.Expr("COALESCE(?, device_consumption.temperature)", nullable(row.Temperature)),
			},
			clause.Assignment{
				Column: clause.Column{Name: "humidity"},
				Value:  gorm.Expr("COALESCE(?, device_consumption.humidity)", nullable(row.Humidity)),
			},
		)
	} else {
		updates = append(updates, clause.AssignmentColumns([]string{"temperature", "humidity", "notes"})...)
	}

	err := db.impl.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "consumption_date"}, {Name: "hour_start"}},
			DoUpdates: updates,
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	stored := &models.DeviceConsumption{}
	err = db.impl.WithContext(ctx).
		Where("device_id = ? AND consumption_date = ? AND hour_start = ?", row.DeviceID, row.ConsumptionDate, row.HourStart).
		Take(stored).Error
	if err != nil {
		return nil, notFoundOr(err)
	}

	return stored, nil
}

func (db *myDB) DeleteConsumption(ctx context.Context, id uint) error {
	result := db.impl.WithContext(ctx).Delete(&models.DeviceConsumption{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
