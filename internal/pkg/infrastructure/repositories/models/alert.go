package models

import (
	"time"

	"gorm.io/datatypes"
)

//Alert severities, most severe first
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

//AlertStatusActive and AlertStatusResolved are the lifecycle states of an alert
const (
	AlertStatusActive   = "active"
	AlertStatusResolved = "resolved"
)

//IsValidSeverity reports whether severity is a known alert severity
func IsValidSeverity(severity string) bool {
	switch severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

//Alert is a notification about a device or class that needs attention
type Alert struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	DeviceID   *uint          `gorm:"index" json:"device_id"`
	Device     *Device        `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ClassID    *uint          `gorm:"index" json:"class_id"`
	Class      *Class         `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Type       string         `gorm:"size:50;not null;index" json:"type"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	Message    string         `gorm:"not null" json:"message"`
	Severity   string         `gorm:"size:20;not null;index" json:"severity"`
	Status     string         `gorm:"size:20;not null;default:active" json:"status"`
	ReadStatus bool           `gorm:"not null;default:false;index" json:"read_status"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ResolvedAt *time.Time     `json:"resolved_at"`
}
