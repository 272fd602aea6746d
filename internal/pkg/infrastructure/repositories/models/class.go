package models

import "time"

//Class is a monitored room or zone that devices are installed in
type Class struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `json:"description"`
	Location    string    `gorm:"size:255" json:"location"`
	Building    string    `gorm:"size:255" json:"building"`
	Floor       string    `gorm:"size:50" json:"floor"`
	Area        *float64  `json:"area"`
	Capacity    *int      `json:"capacity"`
	Status      string    `gorm:"size:20;not null;default:active;index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Devices []Device `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

//ClassStatusActive is the status that makes a class show up in listings
const ClassStatusActive = "active"
