// models/catch.go - Domain tables the engine reads but never writes
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Catch is a logged scan of a fursuit's tag. Written by the mobile app,
// read-only to the achievement engine.
type Catch struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	CatcherID    string    `gorm:"type:uuid;not null;index" json:"catcher_id"`
	FursuitID    string    `gorm:"type:uuid;not null;index" json:"fursuit_id"`
	ConventionID *string   `gorm:"type:uuid;index" json:"convention_id"`
	CaughtAt     time.Time `gorm:"not null;index" json:"caught_at"`

	Fursuit    *Fursuit    `gorm:"foreignKey:FursuitID" json:"fursuit,omitempty"`
	Convention *Convention `gorm:"foreignKey:ConventionID" json:"convention,omitempty"`
}

func (c *Catch) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (Catch) TableName() string {
	return "catches"
}

// Fursuit is a costume registered by its owner. Species may predate the
// shared species table, in which case only the free-form name is set.
type Fursuit struct {
	ID        string  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   *string `gorm:"type:uuid;index" json:"owner_id"`
	Name      string  `gorm:"not null" json:"name"`
	Species   *string `json:"species"`
	SpeciesID *string `gorm:"type:uuid" json:"species_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f *Fursuit) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

func (Fursuit) TableName() string {
	return "fursuits"
}

// FursuitSpecies is the shared species catalog.
type FursuitSpecies struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string `gorm:"not null;uniqueIndex" json:"name"`
	IsHybrid bool   `gorm:"default:false" json:"is_hybrid"`
}

func (s *FursuitSpecies) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (FursuitSpecies) TableName() string {
	return "fursuit_species"
}

// FursuitSpeciesMap links a fursuit to each of its species. The table is
// absent in deployments that never migrated multi-species support.
type FursuitSpeciesMap struct {
	FursuitID string `gorm:"type:uuid;primaryKey" json:"fursuit_id"`
	SpeciesID string `gorm:"type:uuid;primaryKey" json:"species_id"`
}

func (FursuitSpeciesMap) TableName() string {
	return "fursuit_species_map"
}

// Convention holds the schedule data the day-one and night-owl rules need.
// StartDate and EndDate are calendar dates in the convention's timezone.
type Convention struct {
	ID        string  `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      *string `gorm:"uniqueIndex" json:"slug"`
	Name      string  `gorm:"not null" json:"name"`
	StartDate *string `gorm:"type:date" json:"start_date"`
	EndDate   *string `gorm:"type:date" json:"end_date"`
	Timezone  *string `json:"timezone"`
}

func (c *Convention) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (Convention) TableName() string {
	return "conventions"
}

// Profile is the user-facing profile row keyed by the auth user id.
type Profile struct {
	ID        string  `gorm:"type:uuid;primaryKey" json:"id"`
	Username  *string `gorm:"uniqueIndex" json:"username"`
	Bio       *string `gorm:"type:text" json:"bio"`
	AvatarURL *string `json:"avatar_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
