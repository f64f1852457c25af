// models/achievement.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Achievement categories.
const (
	CategoryCatching   = "catching"
	CategoryVariety    = "variety"
	CategoryDedication = "dedication"
	CategoryFursuiter  = "fursuiter"
	CategoryFun        = "fun"
	CategoryMeta       = "meta"
)

// Recipient roles: which party of a catch an achievement is meant for.
// RoleAny covers achievements tied to neither side of a catch.
const (
	RoleCatcher      = "catcher"
	RoleFursuitOwner = "fursuit_owner"
	RoleAny          = "any"
)

// Achievement is an immutable catalog entry. Rows are created by
// administrative seeding; the processing engine only ever reads them.
type Achievement struct {
	ID            string `gorm:"type:uuid;primaryKey" json:"id"`
	Key           string `gorm:"not null;uniqueIndex" json:"key"`
	Name          string `gorm:"not null" json:"name"`
	Description   string `gorm:"not null;type:text" json:"description"`
	Category      string `gorm:"not null;index" json:"category"`
	RecipientRole string `gorm:"not null;default:'any'" json:"recipient_role"`
	TriggerEvent  string `gorm:"not null;index" json:"trigger_event"`
	IsActive      bool   `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (Achievement) TableName() string {
	return "achievements"
}
