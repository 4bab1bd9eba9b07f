package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"delivery-backend/internal/config"
	"delivery-backend/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const linkNoticeTTL = 12 * time.Hour

// WhatsAppService sends tracking links to riders through Green API.
// With Redis configured, a given token is announced at most once.
type WhatsAppService struct {
	idInstance       string
	apiTokenInstance string
	baseURL          string
	countryCode      string
	httpClient       *http.Client
	redisClient      *redis.Client
	log              *zap.Logger
}

func NewWhatsAppService(cfg config.WhatsAppConfig, redisClient *redis.Client, log *zap.Logger) *WhatsAppService {
	return &WhatsAppService{
		idInstance:       cfg.InstanceID,
		apiTokenInstance: cfg.Token,
		baseURL:          strings.TrimSuffix(cfg.BaseURL, "/"),
		countryCode:      cfg.CountryCode,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		redisClient:      redisClient,
		log:              log,
	}
}

// ChatID turns a local 10 digit number into a Green API chat id.
func (w *WhatsAppService) ChatID(phone string) (string, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number must contain digits only: %s", phone)
		}
	}
	if len(digits) == 10 && strings.HasPrefix(digits, "0") {
		digits = w.countryCode + digits[1:]
	} else if len(digits) == 10 {
		digits = w.countryCode + digits
	}
	if len(digits) < 11 || len(digits) > 13 {
		return "", fmt.Errorf("invalid phone number length: %s", phone)
	}
	return digits + "@c.us", nil
}

// NotifyTrackingLink implements RiderNotifier.
func (w *WhatsAppService) NotifyTrackingLink(ctx context.Context, rider *models.Rider, link *models.TrackingLink) error {
	first, err := w.claimNotice(ctx, link.Token)
	if err != nil {
		// Redis trouble should not cost the rider their link.
		w.log.Warn("tracking link dedupe unavailable", zap.Error(err))
	} else if !first {
		return nil
	}

	message := fmt.Sprintf("Hi %s, please open this link to share your live location while delivering:\n%s",
		rider.Name, link.TrackingURL)
	if err := w.SendMessage(ctx, rider.ContactNo, message); err != nil {
		w.releaseNotice(link.Token)
		return err
	}
	w.log.Info("tracking link sent", zap.String("rider_id", rider.RiderID))
	return nil
}

func noticeKey(token string) string {
	return fmt.Sprintf("tracking_link_notice:%s", token)
}

func (w *WhatsAppService) claimNotice(ctx context.Context, token string) (bool, error) {
	if w.redisClient == nil {
		return true, nil
	}
	return w.redisClient.SetNX(ctx, noticeKey(token), 1, linkNoticeTTL).Result()
}

func (w *WhatsAppService) releaseNotice(token string) {
	if w.redisClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.redisClient.Del(ctx, noticeKey(token))
}

// SendMessage posts a text message to the given phone number.
func (w *WhatsAppService) SendMessage(ctx context.Context, phone, message string) error {
	if w.idInstance == "" || w.apiTokenInstance == "" || w.baseURL == "" {
		return fmt.Errorf("green api is not configured")
	}
	chatID, err := w.ChatID(phone)
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(map[string]interface{}{
		"chatId":  chatID,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", w.baseURL, w.idInstance, w.apiTokenInstance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return fmt.Errorf("decode response: %w, body: %s", err, string(bodyBytes))
	}
	if resp.StatusCode != http.StatusOK {
		if errMsg, ok := response["error"]; ok {
			return fmt.Errorf("green api error: %v", errMsg)
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if _, ok := response["idMessage"]; !ok {
		return fmt.Errorf("idMessage missing in response")
	}
	return nil
}
