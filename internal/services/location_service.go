package services

import (
	"context"
	"time"

	"delivery-backend/internal/metrics"
	"delivery-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocationService keeps the last known position of each rider and pushes
// every accepted ping to realtime subscribers.
type LocationService struct {
	db       *gorm.DB
	sessions *TrackingService
	realtime Publisher
	events   Publisher
	log      *zap.Logger
	now      func() time.Time
}

func NewLocationService(db *gorm.DB, sessions *TrackingService, realtime, events Publisher, log *zap.Logger) *LocationService {
	return &LocationService{
		db:       db,
		sessions: sessions,
		realtime: orNop(realtime),
		events:   orNop(events),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return ValidationError("lat must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return ValidationError("lng must be between -180 and 180")
	}
	return nil
}

// RecordPing stores the ping as the rider's current location. The server
// clock stamps the row; the device's own time is not trusted.
func (s *LocationService) RecordPing(ctx context.Context, token string, ping models.LocationPing) (*models.RiderLocation, error) {
	session, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		metrics.LocationPings.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if ping.Lat == nil || ping.Lng == nil {
		metrics.LocationPings.WithLabelValues("invalid").Inc()
		return nil, ValidationError("lat and lng are required")
	}
	if err := validateCoordinates(*ping.Lat, *ping.Lng); err != nil {
		metrics.LocationPings.WithLabelValues("invalid").Inc()
		return nil, err
	}

	loc := &models.RiderLocation{
		RiderID:   session.RiderID,
		Lat:       *ping.Lat,
		Lng:       *ping.Lng,
		Accuracy:  ping.Accuracy,
		Heading:   ping.Heading,
		Speed:     ping.Speed,
		Timestamp: s.now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lat", "lng", "accuracy", "heading", "speed", "timestamp"}),
	}).Create(loc).Error
	if err != nil {
		metrics.LocationPings.WithLabelValues("failed").Inc()
		return nil, storageError("Failed to save location", err)
	}

	metrics.LocationPings.WithLabelValues("accepted").Inc()
	s.realtime.Publish(EventRiderLocation, loc)
	s.events.Publish(EventRiderLocation, loc)
	return loc, nil
}

// Latest returns the cache: one row per rider that has ever pinged.
func (s *LocationService) Latest(ctx context.Context) ([]models.RiderLocation, error) {
	locations := []models.RiderLocation{}
	if err := s.db.WithContext(ctx).Order("rider_id ASC").Find(&locations).Error; err != nil {
		return nil, storageError("Failed to fetch locations", err)
	}
	return locations, nil
}
