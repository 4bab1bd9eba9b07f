package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"delivery-backend/internal/metrics"
	"delivery-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tokenBytes gives 128 bits of entropy per tracking token.
const tokenBytes = 16

const notifyTimeout = 30 * time.Second

// RiderNotifier tells a rider about their tracking link out of band.
type RiderNotifier interface {
	NotifyTrackingLink(ctx context.Context, rider *models.Rider, link *models.TrackingLink) error
}

// TrackingService issues and revokes location sharing sessions.
// The session token is the only credential the public endpoints check.
type TrackingService struct {
	db       *gorm.DB
	baseURL  string
	notifier RiderNotifier
	events   Publisher
	log      *zap.Logger
	now      func() time.Time
}

func NewTrackingService(db *gorm.DB, baseURL string, notifier RiderNotifier, events Publisher, log *zap.Logger) *TrackingService {
	return &TrackingService{
		db:       db,
		baseURL:  baseURL,
		notifier: notifier,
		events:   orNop(events),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// TrackingURL is the page a rider opens to share location.
func (s *TrackingService) TrackingURL(token string) string {
	return fmt.Sprintf("%s/api/tracking/track/%s", s.baseURL, token)
}

// Start returns the rider's active session, creating one if there is none.
func (s *TrackingService) Start(ctx context.Context, riderID string) (*models.TrackingLink, error) {
	var rider models.Rider
	err := s.db.WithContext(ctx).Where("rider_id = ?", riderID).First(&rider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRiderNotFound
	}
	if err != nil {
		return nil, storageError("Failed to start tracking", err)
	}

	session, reused, err := s.activeOrCreate(ctx, riderID)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent start created the session first
		session, err = s.activeSession(s.db.WithContext(ctx), riderID)
		reused = true
	}
	if err != nil {
		return nil, passThrough("Failed to start tracking", err)
	}

	link := &models.TrackingLink{
		RiderID:     riderID,
		Token:       session.Token,
		TrackingURL: s.TrackingURL(session.Token),
		Reused:      reused,
	}

	if !reused {
		metrics.TrackingSessions.WithLabelValues("start").Inc()
		s.log.Info("tracking started", zap.String("rider_id", riderID))
		s.events.Publish(EventTrackingStarted, map[string]interface{}{
			"riderId":   riderID,
			"startedAt": session.StartedAt,
		})
	}
	s.notify(&rider, link)
	return link, nil
}

func (s *TrackingService) activeOrCreate(ctx context.Context, riderID string) (*models.LocationSession, bool, error) {
	var session *models.LocationSession
	reused := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.activeSession(tx, riderID)
		if err == nil {
			session = existing
			reused = true
			return nil
		}
		if !errors.Is(err, ErrInvalidOrExpired) {
			return err
		}

		token, err := newToken()
		if err != nil {
			return fmt.Errorf("generate tracking token: %w", err)
		}
		session = &models.LocationSession{
			Token:     token,
			RiderID:   riderID,
			Active:    true,
			StartedAt: s.now(),
		}
		return tx.Create(session).Error
	})
	return session, reused, err
}

func (s *TrackingService) activeSession(tx *gorm.DB, riderID string) (*models.LocationSession, error) {
	var session models.LocationSession
	err := tx.Where("rider_id = ? AND active = ?", riderID, true).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// notify runs in the background; a failed message never fails the start.
func (s *TrackingService) notify(rider *models.Rider, link *models.TrackingLink) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyTrackingLink(ctx, rider, link); err != nil {
			s.log.Warn("tracking link notification failed",
				zap.String("rider_id", rider.RiderID),
				zap.Error(err),
			)
		}
	}()
}

// Stop ends the rider's active session. It reports false when there was none.
func (s *TrackingService) Stop(ctx context.Context, riderID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.LocationSession{}).
		Where("rider_id = ? AND active = ?", riderID, true).
		Updates(map[string]interface{}{
			"active":   false,
			"ended_at": s.now(),
		})
	if res.Error != nil {
		return false, storageError("Failed to stop tracking", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	metrics.TrackingSessions.WithLabelValues("stop").Inc()
	s.log.Info("tracking stopped", zap.String("rider_id", riderID))
	s.events.Publish(EventTrackingStopped, map[string]interface{}{"riderId": riderID})
	return true, nil
}

// Resolve returns the session behind token if it is still active.
func (s *TrackingService) Resolve(ctx context.Context, token string) (*models.LocationSession, error) {
	if token == "" {
		return nil, ErrInvalidOrExpired
	}
	var session models.LocationSession
	err := s.db.WithContext(ctx).Where("token = ? AND active = ?", token, true).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, storageError("Failed to resolve tracking session", err)
	}
	return &session, nil
}

// Sessions lists a rider's sessions, newest first.
func (s *TrackingService) Sessions(ctx context.Context, riderID string) ([]models.LocationSession, error) {
	sessions := []models.LocationSession{}
	err := s.db.WithContext(ctx).
		Where("rider_id = ?", riderID).
		Order("started_at DESC").
		Order("id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, storageError("Failed to fetch tracking sessions", err)
	}
	return sessions, nil
}
