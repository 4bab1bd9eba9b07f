package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

const (
	SequenceDelivery = "delivery"
	SequenceOrder    = "order"
)

const nextSequenceSQL = `INSERT INTO sequences (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
RETURNING value`

// NextSequence atomically advances the named counter and returns the new value.
// Run it on the caller's transaction so a rolled back insert does not burn a number.
func NextSequence(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	var value int64
	if err := tx.WithContext(ctx).Raw(nextSequenceSQL, name).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", name, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("advance sequence %s: no value returned", name)
	}
	return value, nil
}

// FormatID renders prefix + zero padded 5-digit number (wider once past 99999).
func FormatID(prefix string, n int64) string {
	return fmt.Sprintf("%s%05d", prefix, n)
}

// NextID is NextSequence + FormatID.
func NextID(ctx context.Context, tx *gorm.DB, name, prefix string) (string, error) {
	n, err := NextSequence(ctx, tx, name)
	if err != nil {
		return "", err
	}
	return FormatID(prefix, n), nil
}
