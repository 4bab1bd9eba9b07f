package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"delivery-backend/internal/metrics"
	"delivery-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryService is the delivery assignment engine. Every transition runs
// in one transaction that locks the delivery row and the rider rows it
// touches, then re-derives rider availability from the delivery table.
type DeliveryService struct {
	db     *gorm.DB
	events Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewDeliveryService(db *gorm.DB, events Publisher, log *zap.Logger) *DeliveryService {
	return &DeliveryService{
		db:     db,
		events: orNop(events),
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns all deliveries, newest first.
func (s *DeliveryService) List(ctx context.Context) ([]models.Delivery, error) {
	deliveries := []models.Delivery{}
	err := s.db.WithContext(ctx).
		Order("date DESC").
		Order("delivery_id DESC").
		Find(&deliveries).Error
	if err != nil {
		return nil, storageError("Failed to get deliveries", err)
	}
	return deliveries, nil
}

func (s *DeliveryService) Get(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	var d models.Delivery
	err := s.db.WithContext(ctx).Where("delivery_id = ?", deliveryID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, storageError("Failed to get delivery", err)
	}
	return &d, nil
}

// Create opens a delivery for an order. An order that already has a delivery
// gets that delivery back with created=false instead of a conflict.
func (s *DeliveryService) Create(ctx context.Context, in models.DeliveryCreate) (*models.Delivery, bool, error) {
	orderID := strings.TrimSpace(in.OrderID)
	riderID := strings.TrimSpace(in.RiderID)
	if orderID == "" {
		return nil, false, ValidationError("orderId is required")
	}

	var delivery models.Delivery
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findDeliveryByOrder(tx, orderID, false)
		if err == nil {
			delivery = *existing
			return nil
		}
		if !errors.Is(err, ErrDeliveryNotFound) {
			return err
		}

		if riderID != "" {
			if _, err := lockRider(tx, riderID); err != nil {
				return err
			}
			busy, err := hasActiveDelivery(tx, riderID, "")
			if err != nil {
				return err
			}
			if busy {
				return ErrRiderBusy
			}
		}

		id, err := NextID(ctx, tx, SequenceDelivery, models.DeliveryIDPrefix)
		if err != nil {
			return err
		}
		delivery = models.Delivery{
			DeliveryID: id,
			OrderID:    orderID,
			Phone:      strings.TrimSpace(in.Phone),
			Status:     models.DeliveryStatusPending,
			Date:       s.now(),
		}
		if riderID != "" {
			delivery.RiderID = &riderID
		}
		if err := tx.Create(&delivery).Error; err != nil {
			return err
		}
		if _, err := syncAvailability(tx, riderID); err != nil {
			return err
		}
		created = true
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race: either the order got its delivery concurrently, or the
		// rider was taken by another delivery.
		existing, ferr := findDeliveryByOrder(s.db.WithContext(ctx), orderID, false)
		if ferr == nil {
			metrics.DeliveryTransitions.WithLabelValues("reused").Inc()
			return existing, false, nil
		}
		return nil, false, ErrRiderBusy
	}
	if err != nil {
		return nil, false, passThrough("Failed to create delivery", err)
	}

	if !created {
		metrics.DeliveryTransitions.WithLabelValues("reused").Inc()
		return &delivery, false, nil
	}

	metrics.DeliveryTransitions.WithLabelValues("created").Inc()
	s.log.Info("delivery created",
		zap.String("delivery_id", delivery.DeliveryID),
		zap.String("order_id", delivery.OrderID),
		zap.String("rider_id", delivery.AssignedRider()),
	)
	s.events.Publish(EventDeliveryCreated, delivery)
	return &delivery, true, nil
}

// Assign changes the rider and/or order of a delivery. A nil field is kept;
// an empty rider id unassigns. The previous rider is released and the new
// one becomes busy in the same transaction.
func (s *DeliveryService) Assign(ctx context.Context, deliveryID string, in models.DeliveryUpdate) (*models.Delivery, error) {
	var delivery models.Delivery
	var previousRider string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := lockDelivery(tx, deliveryID)
		if err != nil {
			return err
		}

		orderID := d.OrderID
		if in.OrderID != nil {
			orderID = strings.TrimSpace(*in.OrderID)
			if orderID == "" {
				return ValidationError("orderId cannot be empty")
			}
			if orderID != d.OrderID {
				var count int64
				err := tx.Model(&models.Delivery{}).
					Where("order_id = ? AND delivery_id <> ?", orderID, d.DeliveryID).
					Count(&count).Error
				if err != nil {
					return err
				}
				if count > 0 {
					return ErrOrderAlreadyAssigned
				}
			}
		}

		previousRider = d.AssignedRider()
		riderID := previousRider
		if in.RiderID != nil {
			riderID = strings.TrimSpace(*in.RiderID)
		}
		if riderID != previousRider && !d.IsActive() {
			return ErrDeliveryCompleted
		}

		for _, id := range lockOrder(previousRider, riderID) {
			if _, err := lockRider(tx, id); err != nil {
				// a vanished previous rider has nothing to release
				if errors.Is(err, ErrRiderNotFound) && id != riderID {
					continue
				}
				return err
			}
		}

		if riderID != "" && riderID != previousRider {
			busy, err := hasActiveDelivery(tx, riderID, d.DeliveryID)
			if err != nil {
				return err
			}
			if busy {
				return ErrRiderBusy
			}
		}

		updates := map[string]interface{}{"order_id": orderID, "rider_id": nil}
		if riderID != "" {
			updates["rider_id"] = riderID
		}
		if err := tx.Model(&models.Delivery{}).Where("delivery_id = ?", d.DeliveryID).Updates(updates).Error; err != nil {
			return err
		}

		if previousRider != riderID {
			if _, err := syncAvailability(tx, previousRider); err != nil {
				return err
			}
		}
		if _, err := syncAvailability(tx, riderID); err != nil {
			return err
		}

		return tx.Where("delivery_id = ?", d.DeliveryID).First(&delivery).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, s.assignConflict(ctx, deliveryID, in.OrderID)
	}
	if err != nil {
		return nil, passThrough("Failed to update delivery", err)
	}

	metrics.DeliveryTransitions.WithLabelValues("assigned").Inc()
	s.log.Info("delivery assigned",
		zap.String("delivery_id", delivery.DeliveryID),
		zap.String("previous_rider_id", previousRider),
		zap.String("rider_id", delivery.AssignedRider()),
	)
	s.events.Publish(EventDeliveryAssigned, delivery)
	return &delivery, nil
}

// assignConflict tells which unique index an Assign ran into: the requested
// order taken by another delivery, or the rider taken by one.
func (s *DeliveryService) assignConflict(ctx context.Context, deliveryID string, orderID *string) error {
	if orderID == nil {
		return ErrRiderBusy
	}
	owner, err := findDeliveryByOrder(s.db.WithContext(ctx), strings.TrimSpace(*orderID), false)
	if err == nil && owner.DeliveryID != deliveryID {
		return ErrOrderAlreadyAssigned
	}
	return ErrRiderBusy
}

// Delete removes a delivery and releases its rider.
func (s *DeliveryService) Delete(ctx context.Context, deliveryID string) error {
	var deleted models.Delivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := lockDelivery(tx, deliveryID)
		if err != nil {
			return err
		}
		if err := tx.Where("delivery_id = ?", d.DeliveryID).Delete(&models.Delivery{}).Error; err != nil {
			return err
		}
		if _, err := syncAvailability(tx, d.AssignedRider()); err != nil {
			return err
		}
		deleted = *d
		return nil
	})
	if err != nil {
		return passThrough("Failed to delete delivery", err)
	}

	metrics.DeliveryTransitions.WithLabelValues("deleted").Inc()
	s.log.Info("delivery deleted",
		zap.String("delivery_id", deleted.DeliveryID),
		zap.String("rider_id", deleted.AssignedRider()),
	)
	s.events.Publish(EventDeliveryDeleted, deleted)
	return nil
}

// HandleOrderDelivered completes the order's delivery and frees its rider.
// Orders without a delivery are ignored; repeated calls are no-ops.
func (s *DeliveryService) HandleOrderDelivered(ctx context.Context, orderID string) error {
	var completed *models.Delivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		completed, err = s.completeOrder(tx, orderID)
		return err
	})
	if err != nil {
		return passThrough("Failed to complete delivery", err)
	}
	s.announceCompleted(completed)
	return nil
}

// completeOrder does the work of HandleOrderDelivered on the caller's
// transaction. It returns the delivery only if this call completed it.
func (s *DeliveryService) completeOrder(tx *gorm.DB, orderID string) (*models.Delivery, error) {
	d, err := findDeliveryByOrder(tx, orderID, true)
	if errors.Is(err, ErrDeliveryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	riderID := d.AssignedRider()
	if riderID != "" {
		if _, err := lockRider(tx, riderID); err != nil && !errors.Is(err, ErrRiderNotFound) {
			return nil, err
		}
	}

	var completed *models.Delivery
	if d.IsActive() {
		now := s.now()
		err := tx.Model(&models.Delivery{}).
			Where("delivery_id = ?", d.DeliveryID).
			Updates(map[string]interface{}{
				"status":       models.DeliveryStatusCompleted,
				"completed_at": now,
			}).Error
		if err != nil {
			return nil, err
		}
		d.Status = models.DeliveryStatusCompleted
		d.CompletedAt = &now
		completed = d
	}

	if _, err := syncAvailability(tx, riderID); err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *DeliveryService) announceCompleted(d *models.Delivery) {
	if d == nil {
		return
	}
	metrics.DeliveryTransitions.WithLabelValues("completed").Inc()
	s.log.Info("delivery completed",
		zap.String("delivery_id", d.DeliveryID),
		zap.String("order_id", d.OrderID),
		zap.String("rider_id", d.AssignedRider()),
	)
	s.events.Publish(EventDeliveryCompleted, *d)
}

// RetireRider deletes a rider that no delivery references. Its tracking
// session is closed and its last known location dropped.
func (s *DeliveryService) RetireRider(ctx context.Context, riderID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockRider(tx, riderID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Delivery{}).Where("rider_id = ?", riderID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRiderHasDeliveries
		}
		err := tx.Model(&models.LocationSession{}).
			Where("rider_id = ? AND active = ?", riderID, true).
			Updates(map[string]interface{}{"active": false, "ended_at": s.now()}).Error
		if err != nil {
			return err
		}
		if err := tx.Where("rider_id = ?", riderID).Delete(&models.RiderLocation{}).Error; err != nil {
			return err
		}
		return tx.Where("rider_id = ?", riderID).Delete(&models.Rider{}).Error
	})
	if err != nil {
		return passThrough("Failed to delete rider", err)
	}
	s.log.Info("rider deleted", zap.String("rider_id", riderID))
	return nil
}

func lockDelivery(tx *gorm.DB, deliveryID string) (*models.Delivery, error) {
	var d models.Delivery
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("delivery_id = ?", deliveryID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func findDeliveryByOrder(tx *gorm.DB, orderID string, forUpdate bool) (*models.Delivery, error) {
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var d models.Delivery
	err := q.Where("order_id = ?", orderID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// lockOrder returns the distinct non-empty rider ids sorted, so concurrent
// reassignments always lock rider rows in the same order.
func lockOrder(ids ...string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
