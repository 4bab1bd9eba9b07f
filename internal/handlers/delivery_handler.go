package handlers

import (
	"net/http"

	"delivery-backend/internal/models"
	"delivery-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// ListActiveRiders returns riders free to take a delivery.
func ListActiveRiders(riders *services.RiderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := riders.ListAvailable(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func ListDeliveries(deliveries *services.DeliveryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := deliveries.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"count":      len(list),
			"deliveries": list,
		})
	}
}

// CreateDelivery answers 201 for a new delivery and 200 when the order already had one.
func CreateDelivery(deliveries *services.DeliveryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.DeliveryCreate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		delivery, created, err := deliveries.Create(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		if !created {
			c.JSON(http.StatusOK, gin.H{
				"message":  "Delivery already exists",
				"delivery": delivery,
			})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":  "Delivery created successfully",
			"delivery": delivery,
		})
	}
}

func UpdateDelivery(deliveries *services.DeliveryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.DeliveryUpdate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		delivery, err := deliveries.Assign(c.Request.Context(), c.Param("deliveryId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "Rider assigned successfully",
			"delivery": delivery,
		})
	}
}

func DeleteDelivery(deliveries *services.DeliveryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deliveries.Delete(c.Request.Context(), c.Param("deliveryId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Delivery deleted successfully"})
	}
}
