package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"delivery-backend/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB returns a fresh in-memory database with every table migrated.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type publishedEvent struct {
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) ofType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type notification struct {
	RiderID string
	Link    models.TrackingLink
}

type fakeNotifier struct {
	sent chan notification
	err  error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan notification, 8)}
}

func (n *fakeNotifier) NotifyTrackingLink(_ context.Context, rider *models.Rider, link *models.TrackingLink) error {
	n.sent <- notification{RiderID: rider.RiderID, Link: *link}
	return n.err
}

type testEnv struct {
	db         *gorm.DB
	events     *recordingPublisher
	realtime   *recordingPublisher
	notifier   *fakeNotifier
	riders     *RiderService
	deliveries *DeliveryService
	tracking   *TrackingService
	locations  *LocationService
	orders     *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	log := zap.NewNop()
	env := &testEnv{
		db:       db,
		events:   &recordingPublisher{},
		realtime: &recordingPublisher{},
		notifier: newFakeNotifier(),
	}
	env.riders = NewRiderService(db, log)
	env.deliveries = NewDeliveryService(db, env.events, log)
	env.tracking = NewTrackingService(db, "http://test.local", env.notifier, env.events, log)
	env.locations = NewLocationService(db, env.tracking, env.realtime, env.events, log)
	env.orders = NewOrderService(db, env.deliveries, env.realtime, env.events, log)
	return env
}

// addRider registers rider BYNRD0000<n>.
func (e *testEnv) addRider(t *testing.T, number string) *models.Rider {
	t.Helper()
	rider, err := e.riders.Add(context.Background(), models.RiderCreate{
		RiderNumber: number,
		Name:        "Test Rider",
		Email:       "rider" + number + "@gmail.com",
		ContactNo:   "0771234567",
		VehicleType: "bike",
	})
	require.NoError(t, err)
	return rider
}

func (e *testEnv) addOrder(t *testing.T, orderID string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Order{
		OrderID: orderID,
		Phone:   "0771234567",
		Status:  models.OrderStatusPending,
		Date:    time.Now().UTC(),
	}).Error)
}

func (e *testEnv) available(t *testing.T, riderID string) bool {
	t.Helper()
	var rider models.Rider
	require.NoError(t, e.db.Where("rider_id = ?", riderID).First(&rider).Error)
	return rider.Available
}

// assertAvailabilityDerived checks the flag against the delivery table for every rider.
func (e *testEnv) assertAvailabilityDerived(t *testing.T) {
	t.Helper()
	var riders []models.Rider
	require.NoError(t, e.db.Find(&riders).Error)
	for _, r := range riders {
		busy, err := hasActiveDelivery(e.db, r.RiderID, "")
		require.NoError(t, err)
		require.Equal(t, !busy, r.Available, "rider %s", r.RiderID)
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
