package energyclient

import (
	"strconv"
	"time"
)

type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Database  string `json:"database"`
}

type Class struct {
	ID          uint     `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Building    string   `json:"building,omitempty"`
	Floor       string   `json:"floor,omitempty"`
	Area        *float64 `json:"area,omitempty"`
	Capacity    *int     `json:"capacity,omitempty"`
	Status      string   `json:"status,omitempty"`
}

//Device is a monitored device together with its consumption of today
type Device struct {
	ID           uint          `json:"id"`
	ClassID      uint          `json:"class_id"`
	ClassName    string        `json:"class_name"`
	DeviceName   string        `json:"device_name"`
	DeviceType   string        `json:"device_type"`
	PowerRating  float64       `json:"power_rating"`
	DeviceEUI    *string       `json:"device_eui"`
	CurrentPower float64       `json:"current_power"`
	CurrentTemp  *float64      `json:"current_temperature"`
	Status       string        `json:"status"`
	LastReading  *time.Time    `json:"last_reading"`
	Consumption  []Consumption `json:"consumption"`
}

type Consumption struct {
	ID              uint     `json:"id"`
	DeviceID        uint     `json:"device_id"`
	Consumption     float64  `json:"consumption"`
	ConsumptionDate string   `json:"consumption_date"`
	HourStart       string   `json:"hour_start"`
	HourEnd         string   `json:"hour_end"`
	Temperature     *float64 `json:"temperature"`
	Humidity        *float64 `json:"humidity"`
}

//Reading is a device reading to ingest. Leaving Temperature or Humidity nil keeps
//whatever value was already stored for that hour.
type Reading struct {
	DeviceID    uint       `json:"device_id,omitempty"`
	DeviceEUI   string     `json:"device_eui,omitempty"`
	Consumption float64    `json:"consumption"`
	Temperature *float64   `json:"temperature,omitempty"`
	Humidity    *float64   `json:"humidity,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

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
}

type ItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type BulkResult struct {
	Message string
	Results []Result
	Errors  []ItemError
}

type HourlyPoint struct {
	Time  string   `json:"time"`
	AC    float64  `json:"ac"`
	Lamp  float64  `json:"lamp"`
	Other *float64 `json:"other,omitempty"`
}

type DeviceTotal struct {
	ID               uint    `json:"id"`
	DeviceName       string  `json:"device_name"`
	DeviceType       string  `json:"device_type"`
	TotalConsumption float64 `json:"total_consumption"`
	AvgConsumption   float64 `json:"avg_consumption"`
	PeakConsumption  float64 `json:"peak_consumption"`
	ReadingsCount    int64   `json:"readings_count"`
}

type Alert struct {
	ID         uint       `json:"id"`
	DeviceID   *uint      `json:"device_id"`
	ClassID    *uint      `json:"class_id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Severity   string     `json:"severity"`
	Status     string     `json:"status"`
	ReadStatus bool       `json:"read_status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

//AlertFilter narrows down Alerts. Zero values are left out of the query.
type AlertFilter struct {
	Status     string
	Severity   string
	Type       string
	ReadStatus *bool
	Limit      int
}

func (f AlertFilter) query() map[string]string {
	query := map[string]string{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Severity != "" {
		query["severity"] = f.Severity
	}
	if f.Type != "" {
		query["type"] = f.Type
	}
	if f.ReadStatus != nil {
		query["readStatus"] = strconv.FormatBool(*f.ReadStatus)
	}
	if f.Limit > 0 {
		query["limit"] = strconv.Itoa(f.Limit)
	}
	return query
}

type Setting struct {
	ID           uint   `json:"id"`
	SettingKey   string `json:"setting_key"`
	SettingValue string `json:"setting_value"`
	DataType     string `json:"data_type"`
}
