// models/achievement_event.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types emitted by the domain-side triggers.
const (
	EventCatchCreated      = "catch.created"
	EventProfileUpdated    = "profile.updated"
	EventConventionCheckin = "convention.checkin"
)

// AchievementEvent is an append-only fact row. ProcessedAt is the sole
// concurrency-control field: null means eligible for claiming, non-null
// means owned by exactly one worker attempt.
type AchievementEvent struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	EventType   string         `gorm:"not null;index" json:"event_type"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	ProcessedAt *time.Time     `gorm:"index" json:"processed_at"`
}

func (e *AchievementEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func (AchievementEvent) TableName() string {
	return "achievement_events"
}

// CatchCreatedPayload is the payload of a catch.created event.
type CatchCreatedPayload struct {
	CatchID        string  `json:"catch_id"`
	CatcherID      string  `json:"catcher_id"`
	FursuitID      string  `json:"fursuit_id"`
	FursuitOwnerID *string `json:"fursuit_owner_id,omitempty"`
	ConventionID   *string `json:"convention_id,omitempty"`
	CaughtAt       string  `json:"caught_at"`
}

// ProfileUpdatedPayload is the payload of a profile.updated event.
type ProfileUpdatedPayload struct {
	UserID string `json:"user_id"`
}

// ConventionCheckinPayload is the payload of a convention.checkin event.
type ConventionCheckinPayload struct {
	UserID       string  `json:"user_id"`
	ConventionID *string `json:"convention_id,omitempty"`
}

// CatchCreated decodes the payload as a catch.created payload.
func (e *AchievementEvent) CatchCreated() (CatchCreatedPayload, error) {
	var p CatchCreatedPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// ProfileUpdated decodes the payload as a profile.updated payload.
func (e *AchievementEvent) ProfileUpdated() (ProfileUpdatedPayload, error) {
	var p ProfileUpdatedPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// ConventionCheckin decodes the payload as a convention.checkin payload.
func (e *AchievementEvent) ConventionCheckin() (ConventionCheckinPayload, error) {
	var p ConventionCheckinPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}
