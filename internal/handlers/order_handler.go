package handlers

import (
	"net/http"

	"delivery-backend/internal/models"
	"delivery-backend/internal/services"

	"github.com/gin-gonic/gin"
)

func CreateOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.OrderCreate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		order, err := orders.Create(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func GetOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := orders.Get(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// UpdateOrderStatus moves an order to a new status. Terminal statuses
// complete the order's delivery.
func UpdateOrderStatus(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := orders.UpdateStatus(c.Request.Context(), c.Param("orderId"), c.Param("status"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Order status updated",
			"order":   order,
		})
	}
}
