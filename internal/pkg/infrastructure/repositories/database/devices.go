package database

import (
	"context"
	"time"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"

	"gorm.io/gorm"
)

//DeviceStore reads and writes monitored devices and their live snapshot
type DeviceStore interface {
	GetDevices(ctx context.Context) ([]models.Device, error)
	GetDeviceFromID(ctx context.Context, id uint) (*models.Device, error)
	GetDeviceFromEUI(ctx context.Context, eui string) (*models.Device, error)
	GetDevicesByClass(ctx context.Context, classID uint) ([]models.Device, error)
	GetDevicesByType(ctx context.Context, deviceType string) ([]models.Device, error)
	CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error)
	UpdateDevice(ctx context.Context, id uint, fields map[string]interface{}) (*models.Device, error)
	UpdateDeviceReading(ctx context.Context, id uint, power float64, temperature *float64, at time.Time) error
	DeleteDevice(ctx context.Context, id uint) error
}

func (db *myDB) devices(ctx context.Context) *gorm.DB {
	return db.impl.WithContext(ctx).
		Model(&models.Device{}).
		Select("devices.*, classes.name AS class_name").
		Joins("LEFT JOIN classes ON classes.id = devices.class_id")
}

func (db *myDB) GetDevices(ctx context.Context) ([]models.Device, error) {
	devices := []models.Device{}
	err := db.devices(ctx).Order("devices.id").Find(&devices).Error
	return devices, err
}

func (db *myDB) GetDeviceFromID(ctx context.Context, id uint) (*models.Device, error) {
	device := &models.Device{}
	err := db.devices(ctx).Where("devices.id = ?", id).Take(device).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return device, nil
}

func (db *myDB) GetDeviceFromEUI(ctx context.Context, eui string) (*models.Device, error) {
	device := &models.Device{}
	err := db.devices(ctx).Where("devices.device_eui = ?", eui).Take(device).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return device, nil
}

func (db *myDB) GetDevicesByClass(ctx context.Context, classID uint) ([]models.Device, error) {
	devices := []models.Device{}
	err := db.devices(ctx).
		Where("devices.class_id = ?", classID).
		Order("devices.device_name").
		Find(&devices).Error
	return devices, err
}

func (db *myDB) GetDevicesByType(ctx context.Context, deviceType string) ([]models.Device, error) {
	devices := []models.Device{}
	err := db.devices(ctx).
		Where("devices.device_type = ?", deviceType).
		Order("devices.device_name").
		Find(&devices).Error
	return devices, err
}

func (db *myDB) CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	if err := db.impl.WithContext(ctx).Create(device).Error; err != nil {
		return nil, err
	}
	return db.GetDeviceFromID(ctx, device.ID)
}

func (db *myDB) UpdateDevice(ctx context.Context, id uint, fields map[string]interface{}) (*models.Device, error) {
	if _, err := db.GetDeviceFromID(ctx, id); err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		err := db.impl.WithContext(ctx).Model(&models.Device{ID: id}).Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}

	return db.GetDeviceFromID(ctx, id)
}

//UpdateDeviceReading stores the latest snapshot of a device. An absent temperature
//keeps whatever temperature the device reported last.
func (db *myDB) UpdateDeviceReading(ctx context.Context, id uint, power float64, temperature *float64, at time.Time) error {
	return db.impl.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_power":       power,
			"current_temperature": gorm.Expr("COALESCE(?, current_temperature)", nullable(temperature)),
			"last_reading":        at,
		}).Error
}

func (db *myDB) DeleteDevice(ctx context.Context, id uint) error {
	result := db.impl.WithContext(ctx).Delete(&models.Device{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
