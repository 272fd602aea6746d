package models

import (
	"time"
)

//Device types reported by the dashboard
const (
	DeviceTypeAC   = "AC"
	DeviceTypeLamp = "LAMP"
)

//Device statuses accepted by the status endpoint
const (
	DeviceStatusActive      = "active"
	DeviceStatusIdle        = "idle"
	DeviceStatusOffline     = "offline"
	DeviceStatusMaintenance = "maintenance"
)

//IsValidDeviceStatus reports whether status is one of the known device statuses
func IsValidDeviceStatus(status string) bool {
	switch status {
	case DeviceStatusActive, DeviceStatusIdle, DeviceStatusOffline, DeviceStatusMaintenance:
		return true
	}
	return false
}

//Device is the database model to store monitored appliances in our database
type Device struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ClassID          uint       `gorm:"not null;index" json:"class_id"`
	ClassName        string     `gorm:"->;-:migration" json:"class_name,omitempty"`
	DeviceName       string     `gorm:"size:255;not null" json:"device_name"`
	DeviceType       string     `gorm:"size:50;not null;index" json:"device_type"`
	Brand            string     `gorm:"size:100" json:"brand"`
	Model            string     `gorm:"size:100" json:"model"`
	PowerRating      float64    `gorm:"not null" json:"power_rating"`
	EfficiencyRating string     `gorm:"size:20" json:"efficiency_rating"`
	InstallationDate *string    `gorm:"size:10" json:"installation_date"`
	WarrantyExpiry   *string    `gorm:"size:10" json:"warranty_expiry"`
	Notes            string     `json:"notes"`
	DeviceEUI        *string    `gorm:"column:device_eui;size:64;uniqueIndex" json:"device_eui"`
	ApplicationType  string     `gorm:"size:100" json:"application_type"`
	Location         string     `gorm:"size:255" json:"location"`
	DeviceSecret     string     `gorm:"size:255" json:"-"`
	CurrentPower     float64    `gorm:"not null;default:0" json:"current_power"`
	CurrentTemp      *float64   `gorm:"column:current_temperature" json:"current_temperature"`
	Status           string     `gorm:"size:20;not null;default:active" json:"status"`
	IoTStatus        string     `gorm:"column:iot_status;size:20" json:"iot_status"`
	LastReading      *time.Time `json:"last_reading"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Consumption []DeviceConsumption `gorm:"constraint:OnDelete:CASCADE" json:"consumption"`
}
