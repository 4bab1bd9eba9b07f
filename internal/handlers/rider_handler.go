package handlers

import (
	"net/http"

	"delivery-backend/internal/models"
	"delivery-backend/internal/services"

	"github.com/gin-gonic/gin"
)

func CreateRider(riders *services.RiderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.RiderCreate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		rider, err := riders.Add(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": "Rider added successfully",
			"rider":   rider,
		})
	}
}

func ListRiders(riders *services.RiderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := riders.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func GetRider(riders *services.RiderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rider, err := riders.Get(c.Request.Context(), c.Param("riderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rider)
	}
}

func UpdateRider(riders *services.RiderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.RiderUpdate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		rider, err := riders.Update(c.Request.Context(), c.Param("riderId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Rider updated successfully",
			"rider":   rider,
		})
	}
}

// DeleteRider refuses riders that deliveries still point at.
func DeleteRider(deliveries *services.DeliveryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deliveries.RetireRider(c.Request.Context(), c.Param("riderId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Rider deleted successfully"})
	}
}

// ReconcileRiders re-derives every availability flag from the delivery table.
func ReconcileRiders(riders *services.RiderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fixed, err := riders.ReconcileAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"fixed": fixed})
	}
}
