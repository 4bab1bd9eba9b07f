package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"delivery-backend/internal/models"
	"delivery-backend/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RiderService is the rider registry. It never touches Rider.Available
// except through syncAvailability, which derives it from deliveries.
type RiderService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRiderService(db *gorm.DB, log *zap.Logger) *RiderService {
	return &RiderService{db: db, log: log}
}

// RiderIDFromNumber formats the caller supplied number as a rider id.
func RiderIDFromNumber(number string) (string, error) {
	number = strings.TrimSpace(number)
	if !utils.IsRiderNumber(number) {
		return "", ValidationError("RiderId must be digits only")
	}
	n, _ := strconv.ParseInt(number, 10, 64)
	return FormatID(models.RiderIDPrefix, n), nil
}

func validateRiderFields(name, email, phone string) error {
	if name != "" && !utils.IsPersonName(name) {
		return ValidationError("Name must contain only letters and spaces (no numbers or symbols)")
	}
	if email != "" && !utils.IsGmail(email) {
		return ValidationError("Email must be a valid Gmail address (e.g., test@gmail.com)")
	}
	if phone != "" && !utils.IsPhone10(phone) {
		return ValidationError("Phone number must be exactly 10 digits")
	}
	return nil
}

// Add registers a rider. New riders are available: they carry no delivery yet.
func (s *RiderService) Add(ctx context.Context, in models.RiderCreate) (*models.Rider, error) {
	riderID, err := RiderIDFromNumber(in.RiderNumber)
	if err != nil {
		return nil, err
	}
	rider := &models.Rider{
		RiderID:     riderID,
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		ContactNo:   strings.TrimSpace(in.ContactNo),
		VehicleType: strings.TrimSpace(in.VehicleType),
		Available:   true,
	}
	if rider.Name == "" || rider.Email == "" || rider.ContactNo == "" {
		return nil, ValidationError("Name, email and contactNo are required")
	}
	if err := validateRiderFields(rider.Name, rider.Email, rider.ContactNo); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Rider{}).Where("rider_id = ?", riderID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRiderExists
		}
		if err := tx.Model(&models.Rider{}).Where("email = ?", rider.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRiderEmailTaken
		}
		return tx.Create(rider).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrRiderExists
	}
	if err != nil {
		return nil, passThrough("Failed to add rider", err)
	}

	s.log.Info("rider added", zap.String("rider_id", rider.RiderID))
	return rider, nil
}

func (s *RiderService) List(ctx context.Context) ([]models.Rider, error) {
	riders := []models.Rider{}
	if err := s.db.WithContext(ctx).Order("rider_id ASC").Find(&riders).Error; err != nil {
		return nil, storageError("Failed to fetch riders", err)
	}
	return riders, nil
}

// ListAvailable returns riders that can take a delivery right now.
func (s *RiderService) ListAvailable(ctx context.Context) ([]models.Rider, error) {
	riders := []models.Rider{}
	if err := s.db.WithContext(ctx).Where("available = ?", true).Order("rider_id ASC").Find(&riders).Error; err != nil {
		return nil, storageError("Failed to fetch active riders", err)
	}
	return riders, nil
}

func (s *RiderService) Get(ctx context.Context, riderID string) (*models.Rider, error) {
	var rider models.Rider
	err := s.db.WithContext(ctx).Where("rider_id = ?", riderID).First(&rider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRiderNotFound
	}
	if err != nil {
		return nil, storageError("Failed to fetch rider", err)
	}
	return &rider, nil
}

// Update changes contact details. Availability and id are not editable here.
func (s *RiderService) Update(ctx context.Context, riderID string, in models.RiderUpdate) (*models.Rider, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.ContactNo = strings.TrimSpace(in.ContactNo)
	in.VehicleType = strings.TrimSpace(in.VehicleType)
	if err := validateRiderFields(in.Name, in.Email, in.ContactNo); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != "" {
		updates["name"] = in.Name
	}
	if in.Email != "" {
		updates["email"] = in.Email
	}
	if in.ContactNo != "" {
		updates["contact_no"] = in.ContactNo
	}
	if in.VehicleType != "" {
		updates["vehicle_type"] = in.VehicleType
	}

	var rider models.Rider
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rider_id = ?", riderID).First(&rider).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRiderNotFound
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&rider).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("rider_id = ?", riderID).First(&rider).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrRiderEmailTaken
	}
	if err != nil {
		return nil, passThrough("Failed to update rider", err)
	}
	return &rider, nil
}

// Reconcile re-derives one rider's availability from the delivery table.
// It returns the resulting flag.
func (s *RiderService) Reconcile(ctx context.Context, riderID string) (bool, error) {
	var available bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockRider(tx, riderID); err != nil {
			return err
		}
		changed, err := syncAvailability(tx, riderID)
		if err != nil {
			return err
		}
		if changed {
			s.log.Warn("rider availability corrected", zap.String("rider_id", riderID))
		}
		available, err = riderAvailable(tx, riderID)
		return err
	})
	if err != nil {
		return false, passThrough("Failed to reconcile rider", err)
	}
	return available, nil
}

// ReconcileAll runs Reconcile for every rider and returns how many flags were wrong.
func (s *RiderService) ReconcileAll(ctx context.Context) (int, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Rider{}).Pluck("rider_id", &ids).Error; err != nil {
		return 0, storageError("Failed to list riders", err)
	}

	fixed := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := lockRider(tx, id); err != nil {
				return err
			}
			changed, err := syncAvailability(tx, id)
			if changed {
				fixed++
			}
			return err
		})
		if errors.Is(err, ErrRiderNotFound) {
			continue
		}
		if err != nil {
			return fixed, passThrough("Failed to reconcile riders", err)
		}
	}
	if fixed > 0 {
		s.log.Warn("rider availability reconciled", zap.Int("fixed", fixed))
	}
	return fixed, nil
}

// lockRider reads the rider row FOR UPDATE.
func lockRider(tx *gorm.DB, riderID string) (*models.Rider, error) {
	var rider models.Rider
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("rider_id = ?", riderID).
		First(&rider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRiderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rider, nil
}

// hasActiveDelivery is the source of truth behind Rider.Available.
func hasActiveDelivery(tx *gorm.DB, riderID, excludeDeliveryID string) (bool, error) {
	q := tx.Model(&models.Delivery{}).
		Where("rider_id = ? AND status <> ?", riderID, models.DeliveryStatusCompleted)
	if excludeDeliveryID != "" {
		q = q.Where("delivery_id <> ?", excludeDeliveryID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func riderAvailable(tx *gorm.DB, riderID string) (bool, error) {
	var rider models.Rider
	if err := tx.Select("available").Where("rider_id = ?", riderID).First(&rider).Error; err != nil {
		return false, err
	}
	return rider.Available, nil
}

// syncAvailability sets Rider.Available to "no active delivery" and reports whether it changed.
// Unknown riders are ignored: the delivery may reference a rider removed out of band.
func syncAvailability(tx *gorm.DB, riderID string) (bool, error) {
	if riderID == "" {
		return false, nil
	}
	busy, err := hasActiveDelivery(tx, riderID, "")
	if err != nil {
		return false, err
	}
	res := tx.Model(&models.Rider{}).
		Where("rider_id = ? AND available <> ?", riderID, !busy).
		Update("available", !busy)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
