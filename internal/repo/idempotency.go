// Package repo implements the data persistence layer for the bot, backed by
// GORM. This file provides webhook idempotency: Telegram redelivers an update
// when the previous delivery timed out, and each update_id must run its side
// effects only once.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/duty-roster-bot/internal/domain"
)

// ErrDuplicate indicates that the update was already claimed within its TTL.
var ErrDuplicate = errors.New("duplicate")

// ClaimUpdate records updateID as processed. It returns ErrDuplicate when a
// non-expired record already exists. An expired record is replaced.
func ClaimUpdate(ctx context.Context, db *gorm.DB, updateID, chatID int64, ttl time.Duration, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.ProcessedUpdate
		err := tx.Where("update_id = ?", updateID).First(&rec).Error
		switch {
		case err == nil && rec.ExpiresAt.After(now):
			return ErrDuplicate
		case err == nil:
			if err := tx.Delete(&rec).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		rec = domain.ProcessedUpdate{
			UpdateID:  updateID,
			ChatID:    chatID,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// PurgeExpiredUpdates deletes records whose TTL has passed and returns how
// many were removed.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
