// database/seed.go - Achievement catalog seeding
package database

import (
	"log"

	"tailtag/models"

	"gorm.io/gorm"
)

// CatalogSeed returns the built-in achievement catalog. Keys are the stable
// identifiers the rule evaluator looks up; names and descriptions are
// cosmetic and safe to edit through the admin surface.
func CatalogSeed() []models.Achievement {
	return []models.Achievement{
		{Key: "FIRST_CATCH", Name: "First Catch", Description: "Log your very first catch.", Category: models.CategoryCatching, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "GETTING_THE_HANG_OF_IT", Name: "Getting the Hang of It", Description: "Log 10 catches.", Category: models.CategoryCatching, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "SUPER_CATCHER", Name: "Super Catcher", Description: "Log 25 catches.", Category: models.CategoryCatching, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "SUIT_SAMPLER", Name: "Suit Sampler", Description: "Catch fursuits of 5 different species.", Category: models.CategoryVariety, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "MIX_AND_MATCH", Name: "Mix and Match", Description: "Catch a hybrid or multi-species fursuit.", Category: models.CategoryVariety, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "DAY_ONE_DEVOTEE", Name: "Day One Devotee", Description: "Log a catch on the first day of a convention.", Category: models.CategoryDedication, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "NIGHT_OWL", Name: "Night Owl", Description: "Log a catch after 10pm convention time.", Category: models.CategoryFun, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "WORLD_TOUR", Name: "World Tour", Description: "Log catches at 3 different conventions.", Category: models.CategoryDedication, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "RARE_FIND", Name: "Rare Find", Description: "Be one of fewer than 10 people to catch a fursuit at a convention.", Category: models.CategoryFun, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "DOUBLE_TROUBLE", Name: "Double Trouble", Description: "Log two catches within one minute.", Category: models.CategoryFun, RecipientRole: models.RoleCatcher, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "DEBUT_PERFORMANCE", Name: "Debut Performance", Description: "Your fursuit was caught for the first time.", Category: models.CategoryFursuiter, RecipientRole: models.RoleFursuitOwner, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "FAN_FAVORITE", Name: "Fan Favorite", Description: "Your fursuit was caught 25 times at one convention.", Category: models.CategoryFursuiter, RecipientRole: models.RoleFursuitOwner, TriggerEvent: models.EventCatchCreated, IsActive: true},
		{Key: "PROFILE_COMPLETE", Name: "All Dressed Up", Description: "Fill in your username, bio and avatar.", Category: models.CategoryMeta, RecipientRole: models.RoleAny, TriggerEvent: models.EventProfileUpdated, IsActive: true},
		{Key: "EXPLORER", Name: "Explorer", Description: "Check in at a convention.", Category: models.CategoryMeta, RecipientRole: models.RoleAny, TriggerEvent: models.EventConventionCheckin, IsActive: true},
	}
}

// SeedAchievements inserts any catalog rows that are not present yet,
// keyed by Key. Existing rows are left untouched so admin edits survive
// restarts.
func SeedAchievements(db *gorm.DB) error {
	seeded := 0
	for _, a := range CatalogSeed() {
		achievement := a
		res := db.Where(models.Achievement{Key: achievement.Key}).FirstOrCreate(&achievement)
		if res.Error != nil {
			return res.Error
		}
		seeded += int(res.RowsAffected)
	}
	if seeded > 0 {
		log.Printf("✅ Seeded %d achievement(s)", seeded)
	}
	return nil
}
