package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"delivery-backend/internal/middleware"
	"delivery-backend/internal/models"
	"delivery-backend/internal/routes"
	"delivery-backend/internal/services"
	"delivery-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	admin  string
	user   string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, utils.RegisterValidators())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	log := zap.NewNop()
	deliveries := services.NewDeliveryService(db, nil, log)
	tracking := services.NewTrackingService(db, "http://test.local", nil, nil, log)
	svc := routes.Services{
		Riders:     services.NewRiderService(db, log),
		Deliveries: deliveries,
		Tracking:   tracking,
		Locations:  services.NewLocationService(db, tracking, nil, nil, log),
		Orders:     services.NewOrderService(db, deliveries, nil, nil, log),
	}

	router := gin.New()
	routes.SetupRoutes(router.Group("/api", middleware.Identity(testSecret)), svc)

	admin, err := utils.GenerateJWT(testSecret, "admin", "admin@gmail.com", utils.RoleAdmin, time.Hour)
	require.NoError(t, err)
	user, err := utils.GenerateJWT(testSecret, "BYNU00001", "user@gmail.com", "customer", time.Hour)
	require.NoError(t, err)

	return &testServer{router: router, db: db, admin: admin, user: user}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *testServer) addRider(t *testing.T, number string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/riders", s.admin, gin.H{
		"riderId":     number,
		"name":        "Test Rider",
		"email":       "rider" + number + "@gmail.com",
		"contactNo":   "0771234567",
		"vehicleType": "bike",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateDelivery_CreatedThenExisting(t *testing.T) {
	s := setupServer(t)
	s.addRider(t, "1")

	body := gin.H{"riderId": "BYNRD00001", "orderId": "BYNOD00010", "phone": "0771234567"}
	w := s.do(t, http.MethodPost, "/api/delivery/", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode(t, w)["delivery"].(map[string]interface{})
	assert.Equal(t, "BYNDEL00001", first["deliveryId"])

	w = s.do(t, http.MethodPost, "/api/delivery/", "", body)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Delivery already exists", resp["message"])
	assert.Equal(t, "BYNDEL00001", resp["delivery"].(map[string]interface{})["deliveryId"])

	w = s.do(t, http.MethodGet, "/api/delivery/active-riders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/delivery/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestCreateDelivery_BadInput(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/api/delivery/", "", gin.H{"riderId": "BYNRD00001"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/api/delivery/", "", gin.H{"riderId": "BYNRD00042", "orderId": "BYNOD00010"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["code"])
}

func TestUpdateDelivery_RequiresAdmin(t *testing.T) {
	s := setupServer(t)
	s.addRider(t, "1")
	s.addRider(t, "2")

	w := s.do(t, http.MethodPost, "/api/delivery/", "", gin.H{"riderId": "BYNRD00001", "orderId": "BYNOD00010"})
	require.Equal(t, http.StatusCreated, w.Code)

	update := gin.H{"riderId": "BYNRD00002"}
	w = s.do(t, http.MethodPut, "/api/delivery/BYNDEL00001", "", update)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPut, "/api/delivery/BYNDEL00001", s.user, update)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/delivery/BYNDEL00001", "garbage", update)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/delivery/BYNDEL00001", s.admin, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "BYNRD00002", decode(t, w)["delivery"].(map[string]interface{})["riderId"])

	w = s.do(t, http.MethodGet, "/api/delivery/active-riders", "", nil)
	var riders []models.Rider
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &riders))
	require.Len(t, riders, 1)
	assert.Equal(t, "BYNRD00001", riders[0].RiderID)
}

func TestUpdateDelivery_OrderConflict(t *testing.T) {
	s := setupServer(t)

	for _, order := range []string{"BYNOD00010", "BYNOD00011"} {
		w := s.do(t, http.MethodPost, "/api/delivery/", "", gin.H{"orderId": order})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(t, http.MethodPut, "/api/delivery/BYNDEL00001", s.admin, gin.H{"orderId": "BYNOD00011"})
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "conflict", resp["code"])
	assert.Equal(t, services.ErrOrderAlreadyAssigned.Message, resp["error"])
}

func TestDeleteDelivery(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodDelete, "/api/delivery/BYNDEL00001", s.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/delivery/", "", gin.H{"orderId": "BYNOD00010"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodDelete, "/api/delivery/BYNDEL00001", s.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTrackingFlow(t *testing.T) {
	s := setupServer(t)
	s.addRider(t, "1")

	w := s.do(t, http.MethodPost, "/api/tracking/start/BYNRD00001", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/tracking/start/BYNRD00001", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decode(t, w)
	token := started["token"].(string)
	assert.Equal(t, "http://test.local/api/tracking/track/"+token, started["trackingUrl"])

	w = s.do(t, http.MethodGet, "/api/tracking/track/"+token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "/api/tracking/ping/"+token)

	w = s.do(t, http.MethodPost, "/api/tracking/ping/"+token, "", gin.H{"lat": 6.9, "lng": 79.8, "speed": 4.2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/tracking/locations", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var locations []models.RiderLocation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &locations))
	require.Len(t, locations, 1)
	assert.Equal(t, 6.9, locations[0].Lat)

	w = s.do(t, http.MethodPost, "/api/tracking/stop/BYNRD00001", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tracking stopped", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/tracking/stop/BYNRD00001", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No active session", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/tracking/ping/"+token, "", gin.H{"lat": 1, "lng": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid or expired session", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/tracking/track/"+token, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "Invalid or expired"))

	w = s.do(t, http.MethodGet, "/api/tracking/sessions/BYNRD00001", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []models.LocationSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)
}

func TestRecordPing_InvalidBodyWithLiveToken(t *testing.T) {
	s := setupServer(t)
	s.addRider(t, "1")

	w := s.do(t, http.MethodPost, "/api/tracking/start/BYNRD00001", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	w = s.do(t, http.MethodPost, "/api/tracking/ping/"+token, "", gin.H{"lat": 100, "lng": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/tracking/ping/"+token, "", gin.H{"lng": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a dead token wins over a bad body
	w = s.do(t, http.MethodPost, "/api/tracking/ping/deadbeef", "", gin.H{"lng": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRiderRoutes(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/riders", s.user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/riders", s.admin, gin.H{
		"riderId": "01", "name": "Rider", "email": "r@gmail.com", "contactNo": "0771234567", "vehicleType": "bike",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "RiderId must be digits only", decode(t, w)["error"])

	s.addRider(t, "7")
	w = s.do(t, http.MethodGet, "/api/riders/BYNRD00007", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["available"])

	w = s.do(t, http.MethodPut, "/api/riders/BYNRD00007", s.admin, gin.H{"name": "Renamed Rider"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed Rider", decode(t, w)["rider"].(map[string]interface{})["name"])

	w = s.do(t, http.MethodPost, "/api/riders/reconcile", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["fixed"])

	w = s.do(t, http.MethodDelete, "/api/riders/BYNRD00007", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/riders/BYNRD00007", s.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Dashboards built against the older API post capitalised keys.
func TestRiderRoutes_CapitalisedKeys(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/api/riders", s.admin, gin.H{
		"riderId": "123456", "Name": "Old Form", "Email": "oldform@gmail.com", "ContactNo": "0771234567", "VehicleType": "van",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rider := decode(t, w)["rider"].(map[string]interface{})
	assert.Equal(t, "BYNRD123456", rider["riderId"])
	assert.Equal(t, "Old Form", rider["name"])

	w = s.do(t, http.MethodPut, "/api/riders/BYNRD123456", s.admin, gin.H{"Name": "New Form"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "New Form", decode(t, w)["rider"].(map[string]interface{})["name"])

	w = s.do(t, http.MethodPost, "/api/riders", s.admin, gin.H{
		"riderId": "8", "Name": "R2D2", "Email": "r2@gmail.com", "ContactNo": "0771234567", "VehicleType": "van",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderStatusCompletesDelivery(t *testing.T) {
	s := setupServer(t)
	s.addRider(t, "1")

	w := s.do(t, http.MethodPost, "/api/orders", "", gin.H{"phone": "0771234567"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := decode(t, w)["orderId"].(string)
	assert.Equal(t, "BYNOD00001", orderID)

	w = s.do(t, http.MethodPost, "/api/delivery/", "", gin.H{"riderId": "BYNRD00001", "orderId": orderID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPut, "/api/orders/"+orderID+"/delivered", s.user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/orders/"+orderID+"/delivered", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/delivery/", "", nil)
	deliveries := decode(t, w)["deliveries"].([]interface{})
	require.Len(t, deliveries, 1)
	assert.Equal(t, "completed", deliveries[0].(map[string]interface{})["status"])

	w = s.do(t, http.MethodGet, "/api/delivery/active-riders", "", nil)
	var riders []models.Rider
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &riders))
	assert.Len(t, riders, 1)

	w = s.do(t, http.MethodPut, "/api/orders/BYNOD09999/delivered", s.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
