// Package domain defines the persistence models and core value types of the
// duty roster bot. The GORM models in this file back the shared key-value
// store, the ingested training knowledge, and webhook retry dedupe.
package domain

import "time"

// KVEntry is a single scalar value in the shared store, addressed by a
// (namespace, key) pair. Scalars such as the serialized duty schedule live in
// the ScalarNamespace; per-user state lives in its own namespace keyed by the
// user or chat id.
//
// Fields:
//   - Namespace: logical hash name (e.g. "user_status").
//   - Key: member within the namespace (user id, chat id, name, or scalar name).
//   - Value: opaque string payload, JSON for structured records.
//   - UpdatedAt: last write time, managed by GORM.
type KVEntry struct {
	Namespace string    `json:"namespace"  gorm:"type:varchar(64);primaryKey"`
	Key       string    `json:"key"        gorm:"type:varchar(128);primaryKey"`
	Value     string    `json:"value"      gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for KVEntry.
func (KVEntry) TableName() string { return "kv_entries" }

// TrainingChunk is one paragraph-sized piece of knowledge fed to the bot via
// /trainmyra. Chunks are embedded on ingest and ranked by cosine similarity
// when answering /askmyra.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Source: where the text came from (file name or "message").
//   - UploadedBy: roster name of the uploader.
//   - Content: chunk text.
//   - Embedding: vector from the embedding model, stored as JSON.
type TrainingChunk struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Source     string    `json:"source"      gorm:"type:varchar(255);not null;index"`
	UploadedBy string    `json:"uploaded_by" gorm:"type:varchar(128);not null"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	Embedding  []float32 `json:"-"           gorm:"type:text;serializer:json"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for TrainingChunk.
func (TrainingChunk) TableName() string { return "training_chunks" }

// ProcessedUpdate records a Telegram update_id that has already been handled,
// so webhook redeliveries within the TTL are acknowledged without re-running
// side effects.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"primaryKey;autoIncrement:false"`
	ChatID    int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
