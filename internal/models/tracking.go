package models

import (
	"time"
)

// LocationSession grants a rider's device the right to report locations.
// A rider has at most one active session.
type LocationSession struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Token     string     `json:"token" gorm:"column:token;type:varchar(64);not null;uniqueIndex"`
	RiderID   string     `json:"riderId" gorm:"column:rider_id;type:varchar(16);not null;index;uniqueIndex:idx_location_sessions_active_rider,where:active = true"`
	Active    bool       `json:"active" gorm:"column:active;not null"`
	StartedAt time.Time  `json:"startedAt" gorm:"column:started_at;not null"`
	EndedAt   *time.Time `json:"endedAt,omitempty" gorm:"column:ended_at"`
}

// RiderLocation is the last known position of a rider, one row per rider.
type RiderLocation struct {
	RiderID   string    `json:"riderId" gorm:"primaryKey;column:rider_id;type:varchar(16)"`
	Lat       float64   `json:"lat" gorm:"column:lat;not null"`
	Lng       float64   `json:"lng" gorm:"column:lng;not null"`
	Accuracy  *float64  `json:"accuracy" gorm:"column:accuracy"`
	Heading   *float64  `json:"heading" gorm:"column:heading"`
	Speed     *float64  `json:"speed" gorm:"column:speed"`
	Timestamp time.Time `json:"timestamp" gorm:"column:timestamp;not null"`
}

// LocationPing is the body the tracker page posts.
type LocationPing struct {
	Lat      *float64 `json:"lat" binding:"required"`
	Lng      *float64 `json:"lng" binding:"required"`
	Accuracy *float64 `json:"accuracy"`
	Heading  *float64 `json:"heading"`
	Speed    *float64 `json:"speed"`
}

// TrackingLink is returned when tracking starts.
type TrackingLink struct {
	RiderID     string `json:"riderId"`
	Token       string `json:"token"`
	TrackingURL string `json:"trackingUrl"`
	Reused      bool   `json:"reused"`
}
