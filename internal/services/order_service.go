package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"delivery-backend/internal/models"
	"delivery-backend/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderStatusUpdate is the realtime payload for an order status change.
type OrderStatusUpdate struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// OrderService owns the order status field and bridges terminal statuses
// into the delivery engine.
type OrderService struct {
	db         *gorm.DB
	deliveries *DeliveryService
	realtime   Publisher
	events     Publisher
	log        *zap.Logger
	now        func() time.Time
}

func NewOrderService(db *gorm.DB, deliveries *DeliveryService, realtime, events Publisher, log *zap.Logger) *OrderService {
	return &OrderService{
		db:         db,
		deliveries: deliveries,
		realtime:   orNop(realtime),
		events:     orNop(events),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderService) Create(ctx context.Context, in models.OrderCreate) (*models.Order, error) {
	phone := strings.TrimSpace(in.Phone)
	if !utils.IsPhone10(phone) {
		return nil, ValidationError("Phone number must be exactly 10 digits")
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := NextID(ctx, tx, SequenceOrder, models.OrderIDPrefix)
		if err != nil {
			return err
		}
		order = models.Order{
			OrderID: id,
			Phone:   phone,
			Status:  models.OrderStatusPending,
			Date:    s.now(),
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, passThrough("Failed to create order", err)
	}
	s.log.Info("order created", zap.String("order_id", order.OrderID))
	return &order, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, storageError("Failed to fetch order", err)
	}
	return &order, nil
}

// UpdateStatus sets an order's status. Moving into a terminal status
// completes the order's delivery in the same transaction. Observers are told
// after commit; a lost notification never fails the update.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return nil, ValidationError("status is required")
	}

	var order models.Order
	var completed *models.Delivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if order.Status != status {
			if err := tx.Model(&order).Update("status", status).Error; err != nil {
				return err
			}
			order.Status = status
		}
		if models.IsTerminalOrderStatus(status) {
			completed, err = s.deliveries.completeOrder(tx, orderID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, passThrough("Failed to update order status", err)
	}

	s.deliveries.announceCompleted(completed)
	update := OrderStatusUpdate{OrderID: order.OrderID, Status: order.Status}
	s.realtime.Publish(EventOrderStatus, update)
	s.events.Publish(EventOrderStatus, update)
	s.log.Info("order status updated",
		zap.String("order_id", order.OrderID),
		zap.String("status", order.Status),
	)
	return &order, nil
}
