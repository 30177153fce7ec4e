// Package repo implements the data persistence layer for the bot, backed by
// GORM. This file provides thin functions over the kv_entries table, which
// emulates a hash-style key-value store: each row is addressed by a
// (namespace, key) pair.
//
// All functions are context-aware and accept a *gorm.DB handle, so they work
// unchanged inside a transaction. Missing rows surface as ErrNotFound.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/duty-roster-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the store and service layers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetKV returns the value stored at (ns, key), or ErrNotFound.
func GetKV(ctx context.Context, db *gorm.DB, ns, key string) (string, error) {
	var e domain.KVEntry
	err := db.WithContext(ctx).
		Where("namespace = ? AND key = ?", ns, key).
		First(&e).Error
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

// GetKVForUpdate is GetKV with a row lock on drivers that support it. SQLite
// ignores the locking clause; its write lock is taken on the first write in
// the transaction.
func GetKVForUpdate(ctx context.Context, tx *gorm.DB, ns, key string) (string, error) {
	var e domain.KVEntry
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("namespace = ? AND key = ?", ns, key).First(&e).Error
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

// PutKV upserts value at (ns, key).
func PutKV(ctx context.Context, db *gorm.DB, ns, key, value string) error {
	e := domain.KVEntry{Namespace: ns, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
}

// DeleteKV removes (ns, key). Deleting a missing key is not an error.
func DeleteKV(ctx context.Context, db *gorm.DB, ns, key string) error {
	return db.WithContext(ctx).
		Where("namespace = ? AND key = ?", ns, key).
		Delete(&domain.KVEntry{}).Error
}

// ListKV returns every entry of ns ordered by key.
func ListKV(ctx context.Context, db *gorm.DB, ns string) ([]domain.KVEntry, error) {
	var out []domain.KVEntry
	err := db.WithContext(ctx).
		Where("namespace = ?", ns).
		Order("key asc").
		Find(&out).Error
	return out, err
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
