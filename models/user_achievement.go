// models/user_achievement.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserAchievement records that a user has unlocked an achievement. The
// unique index on (user_id, achievement_id) is the engine's idempotence
// anchor: the first grant wins and Context is never overwritten.
type UserAchievement struct {
	ID            string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	UnlockedAt    time.Time      `json:"unlocked_at"`
	Context       datatypes.JSON `json:"context"`

	Achievement Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (ua *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if ua.ID == "" {
		ua.ID = uuid.NewString()
	}
	if ua.UnlockedAt.IsZero() {
		ua.UnlockedAt = time.Now().UTC()
	}
	return nil
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// AchievementNotification is the best-effort fan-out row written by the
// award hook. Its own unique index de-duplicates independently of the
// grant table, so a replayed event cannot notify twice.
type AchievementNotification struct {
	ID             string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_notification_dedup" json:"user_id"`
	AchievementKey string         `gorm:"not null;uniqueIndex:idx_notification_dedup" json:"achievement_key"`
	Context        datatypes.JSON `json:"context"`
	EventID        *string        `gorm:"type:uuid;uniqueIndex:idx_notification_dedup" json:"event_id"`
	EventType      *string        `json:"event_type"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (n *AchievementNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

func (AchievementNotification) TableName() string {
	return "achievement_notifications"
}
