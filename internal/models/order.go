package models

import (
	"time"
)

const OrderIDPrefix = "BYNOD"

const (
	OrderStatusPending   = "pending"
	OrderStatusDelivered = "delivered"
	OrderStatusCompleted = "completed"
)

// Order is the slice of an order this service needs: its id and status.
type Order struct {
	OrderID   string    `json:"orderId" gorm:"primaryKey;column:order_id;type:varchar(16)"`
	Phone     string    `json:"phone" gorm:"column:phone;type:varchar(20)"`
	Status    string    `json:"status" gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	Date      time.Time `json:"date" gorm:"column:date;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// IsTerminalOrderStatus reports whether the status releases the delivery.
func IsTerminalOrderStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCompleted
}

type OrderCreate struct {
	Phone string `json:"phone" binding:"required,phone10"`
}
