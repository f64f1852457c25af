// database/migrate.go - Database Migration Runner
package database

import (
	"log"

	"tailtag/models"
)

// RunMigrations runs all database migrations
func RunMigrations() {
	db := GetDB()
	log.Println("🔄 Running database migrations...")

	// Core application models
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Convention{},
		&models.FursuitSpecies{},
		&models.Fursuit{},
		&models.FursuitSpeciesMap{},
		&models.Catch{},
		&models.Achievement{},
		&models.AchievementEvent{},
		&models.UserAchievement{},
		&models.AchievementNotification{},
	); err != nil {
		log.Fatalf("❌ Failed to run core migrations: %v", err)
	}

	log.Println("✅ Core migrations completed")

	createCoreIndexes()

	// Seed the achievement catalog (idempotent by key)
	if err := SeedAchievements(db); err != nil {
		log.Fatalf("❌ Failed to seed achievements: %v", err)
	}

	log.Println("✅ All migrations completed successfully")
}

// createCoreIndexes creates indexes for core tables
func createCoreIndexes() {
	db := GetDB()
	log.Println("Creating core indexes...")

	// Event queue: the claim query scans unprocessed rows oldest-first
	db.Exec("CREATE INDEX IF NOT EXISTS idx_events_unprocessed ON achievement_events(created_at) WHERE processed_at IS NULL")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_events_type ON achievement_events(event_type)")

	// Catch aggregates
	db.Exec("CREATE INDEX IF NOT EXISTS idx_catches_catcher ON catches(catcher_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_catches_fursuit ON catches(fursuit_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_catches_convention ON catches(convention_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_catches_catcher_caught ON catches(catcher_id, caught_at)")

	// Grant and notification idempotence
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_user_achievement ON user_achievements(user_id, achievement_id)")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_dedup ON achievement_notifications(user_id, achievement_key, event_id)")

	// Catalog lookups
	db.Exec("CREATE INDEX IF NOT EXISTS idx_achievements_active ON achievements(is_active)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id)")

	log.Println("✅ Core indexes created successfully")
}
