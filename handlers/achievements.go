// handlers/achievements.go
package handlers

import (
	"errors"
	"log"

	"tailtag/achievements"
	"tailtag/database"
	"tailtag/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	processor  *achievements.Processor
	eventQueue *achievements.Queue
)

// InitAchievementHandlers wires the engine into the HTTP surface.
func InitAchievementHandlers(p *achievements.Processor, q *achievements.Queue) {
	processor = p
	eventQueue = q
}

// ProcessPending runs a bounded backlog sweep.
// POST /api/achievements/process {"limit_per_batch": 25, "max_batches": 10}
func ProcessPending(c *fiber.Ctx) error {
	var opts achievements.BatchOptions
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
		}
	}

	summary, err := processor.ProcessPendingEvents(c.Context(), opts)
	if err != nil {
		log.Printf("Sweep failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to process pending events"})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"processed": summary.Processed,
		"results":   summary.Results,
	})
}

type ingestEventRequest struct {
	EventID string `json:"event_id"`
}

// IngestEvent accepts a pushed event row (or just its id) and enqueues it
// on the in-process FIFO queue. The queue worker handles retries; a 202
// only means "accepted", not "processed".
// POST /api/achievements/events
func IngestEvent(c *fiber.Ctx) error {
	var event models.AchievementEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	if event.ID == "" || event.EventType == "" {
		// fall back to an id-only body and load the row ourselves
		var req ingestEventRequest
		if err := c.BodyParser(&req); err != nil || req.EventID == "" {
			return c.Status(400).JSON(fiber.Map{"success": false, "error": "Missing event_id"})
		}

		db := database.GetDB()
		if err := db.First(&event, "id = ?", req.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(404).JSON(fiber.Map{"success": false, "error": "Event not found"})
			}
			return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to load event"})
		}
	}

	queued := eventQueue.Enqueue(event)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"queued":  queued,
	})
}

// GetAchievements returns the active catalog.
// GET /api/achievements
func GetAchievements(c *fiber.Ctx) error {
	db := database.GetDB()

	var catalog []models.Achievement
	if err := db.Where("is_active = ?", true).Order("category, key").Find(&catalog).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to fetch achievements"})
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"achievements": catalog,
	})
}

// GetUserAchievements returns the full catalog annotated with the user's
// unlock state.
// GET /api/users/:id/achievements
func GetUserAchievements(c *fiber.Ctx) error {
	userID := c.Params("id")
	db := database.GetDB()

	var unlocked []models.UserAchievement
	if err := db.Preload("Achievement").Where("user_id = ?", userID).Order("unlocked_at DESC").Find(&unlocked).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to fetch unlocked achievements"})
	}

	var catalog []models.Achievement
	if err := db.Where("is_active = ?", true).Find(&catalog).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Failed to fetch achievements"})
	}

	unlockedMap := make(map[string]models.UserAchievement)
	for _, ua := range unlocked {
		unlockedMap[ua.AchievementID] = ua
	}

	results := make([]fiber.Map, 0, len(catalog))
	for _, achievement := range catalog {
		entry := fiber.Map{
			"key":         achievement.Key,
			"name":        achievement.Name,
			"description": achievement.Description,
			"category":    achievement.Category,
			"unlocked":    false,
		}
		if ua, ok := unlockedMap[achievement.ID]; ok {
			entry["unlocked"] = true
			entry["unlocked_at"] = ua.UnlockedAt
			entry["context"] = ua.Context
		}
		results = append(results, entry)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"achievements": results,
		"total":        len(catalog),
		"unlocked":     len(unlocked),
	})
}
