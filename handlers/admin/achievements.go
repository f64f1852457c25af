// handlers/admin/achievements.go - Catalog administration
package admin

import (
	"errors"

	"tailtag/database"
	"tailtag/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetAchievements returns the whole catalog, inactive rows included.
// GET /api/admin/achievements
func GetAchievements(c *fiber.Ctx) error {
	db := database.GetDB()

	var catalog []models.Achievement
	if err := db.Order("category, key").Find(&catalog).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to fetch achievements"})
	}

	return c.JSON(fiber.Map{"success": true, "achievements": catalog})
}

// CreateAchievement adds a catalog entry.
// POST /api/admin/achievements
func CreateAchievement(c *fiber.Ctx) error {
	db := database.GetDB()

	var achievement models.Achievement
	if err := c.BodyParser(&achievement); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}
	if achievement.Key == "" || achievement.Name == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "key and name are required"})
	}

	if err := db.Create(&achievement).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to create achievement"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "achievement": achievement})
}

// UpdateAchievement edits catalog metadata. The key is stable and cannot
// change; rules look achievements up by key.
// PUT /api/admin/achievements/:id
func UpdateAchievement(c *fiber.Ctx) error {
	db := database.GetDB()
	id := c.Params("id")

	var achievement models.Achievement
	if err := db.First(&achievement, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"success": false, "error": "Achievement not found"})
		}
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to load achievement"})
	}

	key := achievement.Key
	if err := c.BodyParser(&achievement); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}
	achievement.ID = id
	achievement.Key = key

	if err := db.Save(&achievement).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to update achievement"})
	}

	return c.JSON(fiber.Map{"success": true, "achievement": achievement})
}

type activateRequest struct {
	IsActive bool `json:"is_active"`
}

// SetAchievementActive toggles whether the engine evaluates an
// achievement. Takes effect on the next processing pass; the engine
// reloads the catalog per pass.
// PATCH /api/admin/achievements/:id/active
func SetAchievementActive(c *fiber.Ctx) error {
	db := database.GetDB()
	id := c.Params("id")

	var req activateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	res := db.Model(&models.Achievement{}).Where("id = ?", id).Update("is_active", req.IsActive)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to update achievement"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "Achievement not found"})
	}

	return c.JSON(fiber.Map{"success": true, "is_active": req.IsActive})
}
