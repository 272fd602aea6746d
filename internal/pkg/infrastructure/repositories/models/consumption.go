package models

import "time"

//Layouts used for the textual date and time columns of DeviceConsumption
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

//DeviceConsumption stores the energy used by a device during one hour
type DeviceConsumption struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	DeviceID        uint      `gorm:"not null;uniqueIndex:ux_consumption_device_hour,priority:1" json:"device_id"`
	Consumption     float64   `gorm:"not null" json:"consumption"`
	ConsumptionDate string    `gorm:"size:10;not null;uniqueIndex:ux_consumption_device_hour,priority:2;index" json:"consumption_date"`
	HourStart       string    `gorm:"size:8;not null;uniqueIndex:ux_consumption_device_hour,priority:3" json:"hour_start"`
	HourEnd         string    `gorm:"size:8;not null" json:"hour_end"`
	Temperature     *float64  `json:"temperature"`
	Humidity        *float64  `json:"humidity"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

//TableName keeps the singular table name used by existing dashboards and flows
func (DeviceConsumption) TableName() string {
	return "device_consumption"
}

//HourWindow returns the calendar date and the top-of-hour/end-of-hour pair that t falls into
func HourWindow(t time.Time) (date, hourStart, hourEnd string) {
	date = t.Format(DateLayout)
	hourStart = t.Format("15") + ":00:00"
	hourEnd = t.Format("15") + ":59:59"
	return
}
