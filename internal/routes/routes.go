package routes

import (
	"delivery-backend/internal/handlers"
	"delivery-backend/internal/middleware"
	"delivery-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Riders     *services.RiderService
	Deliveries *services.DeliveryService
	Tracking   *services.TrackingService
	Locations  *services.LocationService
	Orders     *services.OrderService
}

// SetupRoutes mounts the API on api. Identity must already run on api so
// admin checks can read the caller's claims.
func SetupRoutes(api *gin.RouterGroup, svc Services) {
	admin := middleware.RequireAdmin()

	delivery := api.Group("/delivery")
	{
		delivery.GET("/active-riders", handlers.ListActiveRiders(svc.Riders))
		delivery.GET("/", handlers.ListDeliveries(svc.Deliveries))
		delivery.POST("/", handlers.CreateDelivery(svc.Deliveries))
		delivery.PUT("/:deliveryId", admin, handlers.UpdateDelivery(svc.Deliveries))
		delivery.DELETE("/:deliveryId", admin, handlers.DeleteDelivery(svc.Deliveries))
	}

	tracking := api.Group("/tracking")
	{
		// token gated, no identity needed
		tracking.GET("/track/:token", handlers.TrackerPage(svc.Tracking))
		tracking.POST("/ping/:token", handlers.RecordPing(svc.Locations))

		tracking.POST("/start/:riderId", admin, handlers.StartTracking(svc.Tracking))
		tracking.POST("/stop/:riderId", admin, handlers.StopTracking(svc.Tracking))
		tracking.GET("/locations", admin, handlers.LatestLocations(svc.Locations))
		tracking.GET("/sessions/:riderId", admin, handlers.TrackingSessions(svc.Tracking))
	}

	riders := api.Group("/riders", admin)
	{
		riders.POST("", handlers.CreateRider(svc.Riders))
		riders.GET("", handlers.ListRiders(svc.Riders))
		riders.POST("/reconcile", handlers.ReconcileRiders(svc.Riders))
		riders.GET("/:riderId", handlers.GetRider(svc.Riders))
		riders.PUT("/:riderId", handlers.UpdateRider(svc.Riders))
		riders.DELETE("/:riderId", handlers.DeleteRider(svc.Deliveries))
	}

	orders := api.Group("/orders")
	{
		orders.POST("", handlers.CreateOrder(svc.Orders))
		orders.GET("/:orderId", handlers.GetOrder(svc.Orders))
		orders.PUT("/:orderId/:status", admin, handlers.UpdateOrderStatus(svc.Orders))
	}
}
