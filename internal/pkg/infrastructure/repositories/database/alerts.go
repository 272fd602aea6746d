package database

import (
	"context"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

//AlertStore reads and writes alerts and their read/resolved state
type AlertStore interface {
	GetAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error)
	GetAlertFromID(ctx context.Context, id uint) (*models.Alert, error)
	GetAlertsByDevice(ctx context.Context, deviceID uint) ([]models.Alert, error)
	GetAlertsByClass(ctx context.Context, classID uint) ([]models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	UpdateAlert(ctx context.Context, id uint, fields map[string]interface{}) (*models.Alert, error)
	MarkAlertAsRead(ctx context.Context, id uint) error
	MarkAllAlertsAsRead(ctx context.Context, filter AlertFilter) (int64, error)
	CountUnreadAlerts(ctx context.Context) (int64, error)
	GetAlertSummary(ctx context.Context) ([]AlertSummary, error)
	DeleteAlert(ctx context.Context, id uint) error
}

//AlertFilter narrows alert queries. Empty fields match everything.
type AlertFilter struct {
	Type       string
	Severity   string
	Status     string
	ReadStatus *bool
}

//AlertSummary counts the alerts sharing a type, severity and status
type AlertSummary struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
	Count    int64  `json:"count"`
}

const (
	alertListLimit      int = 100
	alertRelationsLimit int = 50
)

func (db *myDB) GetAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	query := db.impl.WithContext(ctx).Model(&models.Alert{})

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ReadStatus != nil {
		query = query.Where("read_status = ?", *filter.ReadStatus)
	}

	alerts := []models.Alert{}
	err := query.Order("created_at DESC, id DESC").Limit(alertListLimit).Find(&alerts).Error
	return alerts, err
}

func (db *myDB) GetAlertFromID(ctx context.Context, id uint) (*models.Alert, error) {
	alert := &models.Alert{}
	err := db.impl.WithContext(ctx).First(alert, id).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return alert, nil
}

func (db *myDB) GetAlertsByDevice(ctx context.Context, deviceID uint) ([]models.Alert, error) {
	alerts := []models.Alert{}
	err := db.impl.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC, id DESC").
		Limit(alertRelationsLimit).
		Find(&alerts).Error
	return alerts, err
}

func (db *myDB) GetAlertsByClass(ctx context.Context, classID uint) ([]models.Alert, error) {
	alerts := []models.Alert{}
	err := db.impl.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("created_at DESC, id DESC").
		Limit(alertRelationsLimit).
		Find(&alerts).Error
	return alerts, err
}

func (db *myDB) CreateAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if err := db.impl.WithContext(ctx).Create(alert).Error; err != nil {
		return nil, err
	}
	return db.GetAlertFromID(ctx, alert.ID)
}

func (db *myDB) UpdateAlert(ctx context.Context, id uint, fields map[string]interface{}) (*models.Alert, error) {
	alert, err := db.GetAlertFromID(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		if err = db.impl.WithContext(ctx).Model(alert).Updates(fields).Error; err != nil {
			return nil, err
		}
	}

	return db.GetAlertFromID(ctx, id)
}

func (db *myDB) MarkAlertAsRead(ctx context.Context, id uint) error {
	if _, err := db.GetAlertFromID(ctx, id); err != nil {
		return err
	}

	return db.impl.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", id).
		Update("read_status", true).Error
}

func (db *myDB) MarkAllAlertsAsRead(ctx context.Context, filter AlertFilter) (int64, error) {
	query := db.impl.WithContext(ctx).Model(&models.Alert{}).Where("read_status = ?", false)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	result := query.Update("read_status", true)
	return result.RowsAffected, result.Error
}

func (db *myDB) CountUnreadAlerts(ctx context.Context) (int64, error) {
	var count int64
	err := db.impl.WithContext(ctx).
		Model(&models.Alert{}).
		Where("read_status = ?", false).
		Count(&count).Error
	return count, err
}

func (db *myDB) GetAlertSummary(ctx context.Context) ([]AlertSummary, error) {
	rows := []AlertSummary{}
	err := db.impl.WithContext(ctx).
		Model(&models.Alert{}).
		Select("type, severity, status, COUNT(*) AS count").
		Group("type, severity, status").
		Order("type, severity, status").
		Scan(&rows).Error
	return rows, err
}

func (db *myDB) DeleteAlert(ctx context.Context, id uint) error {
	result := db.impl.WithContext(ctx).Delete(&models.Alert{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
