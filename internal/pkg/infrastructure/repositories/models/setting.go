package models

import "time"

//Setting data types
const (
	SettingTypeString  = "string"
	SettingTypeNumber  = "number"
	SettingTypeBoolean = "boolean"
	SettingTypeJSON    = "json"
)

//Setting is a system wide key/value pair
type Setting struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SettingKey   string    `gorm:"size:100;not null;uniqueIndex" json:"setting_key"`
	SettingValue string    `gorm:"not null" json:"setting_value"`
	DataType     string    `gorm:"size:20;not null;default:string" json:"data_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

//UserSetting holds the dashboard preferences of a single user
type UserSetting struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               string    `gorm:"size:100;not null;uniqueIndex" json:"user_id"`
	Timezone             string    `gorm:"size:50;not null;default:UTC" json:"timezone"`
	Language             string    `gorm:"size:10;not null;default:en" json:"language"`
	Theme                string    `gorm:"size:20;not null;default:light" json:"theme"`
	EmailNotifications   bool      `gorm:"not null" json:"email_notifications"`
	SMSNotifications     bool      `gorm:"column:sms_notifications;not null" json:"sms_notifications"`
	PushNotifications    bool      `gorm:"not null" json:"push_notifications"`
	AlertSeverity        string    `gorm:"size:20;not null;default:medium" json:"alert_severity"`
	ConsumptionThreshold *float64  `json:"consumption_threshold"`
	TemperatureThreshold *float64  `json:"temperature_threshold"`
	CostThreshold        *float64  `json:"cost_threshold"`
	TwoFactor            bool      `gorm:"not null" json:"two_factor"`
	SessionTimeout       int       `gorm:"not null" json:"session_timeout"`
	AutoLogout           bool      `gorm:"not null" json:"auto_logout"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

//NewUserSetting returns the preferences a user starts out with
func NewUserSetting(userID string) *UserSetting {
	return &UserSetting{
		UserID:             userID,
		Timezone:           "UTC",
		Language:           "en",
		Theme:              "light",
		EmailNotifications: true,
		PushNotifications:  true,
		AlertSeverity:      SeverityMedium,
		SessionTimeout:     30,
		AutoLogout:         true,
	}
}
