package models

import (
	"time"
)

// RiderIDPrefix is prepended to the caller supplied rider number.
const RiderIDPrefix = "BYNRD"

// Rider is a delivery rider. Available is owned by the delivery engine:
// it is false exactly while a non-completed delivery references the rider.
type Rider struct {
	RiderID     string    `json:"riderId" gorm:"primaryKey;column:rider_id;type:varchar(16)"`
	Email       string    `json:"email" gorm:"column:email;uniqueIndex;not null;type:varchar(255)"`
	Name        string    `json:"name" gorm:"column:name;not null;type:varchar(255)"`
	ContactNo   string    `json:"contactNo" gorm:"column:contact_no;type:varchar(20)"`
	VehicleType string    `json:"vehicleType" gorm:"column:vehicle_type;not null;type:varchar(50)"`
	Available   bool      `json:"available" gorm:"column:available;not null;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// RiderCreate is the admin payload for registering a rider.
type RiderCreate struct {
	RiderNumber string `json:"riderId" binding:"required,ridernumber"`
	Name        string `json:"name" binding:"required,personname"`
	Email       string `json:"email" binding:"required,gmail"`
	ContactNo   string `json:"contactNo" binding:"required,phone10"`
	VehicleType string `json:"vehicleType" binding:"required,max=50"`
}

// RiderUpdate carries the editable rider fields; empty fields are left unchanged.
type RiderUpdate struct {
	Name        string `json:"name" binding:"omitempty,personname"`
	Email       string `json:"email" binding:"omitempty,gmail"`
	ContactNo   string `json:"contactNo" binding:"omitempty,phone10"`
	VehicleType string `json:"vehicleType" binding:"omitempty,max=50"`
}
