// handlers/leaderboard.go
package handlers

import (
	"strconv"

	"tailtag/database"

	"github.com/gofiber/fiber/v2"
)

type leaderboardRow struct {
	CatcherID  string `json:"catcher_id"`
	Username   string `json:"username"`
	CatchCount int64  `json:"catch_count"`
}

// GetLeaderboard returns the top catchers, optionally scoped to one
// convention.
// GET /api/leaderboard?convention_id=...&limit=50
func GetLeaderboard(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	db := database.GetDB()
	query := db.Table("catches").
		Select("catches.catcher_id, COALESCE(profiles.username, '') AS username, COUNT(catches.id) AS catch_count").
		Joins("LEFT JOIN profiles ON profiles.id = catches.catcher_id").
		Group("catches.catcher_id, profiles.username").
		Order("catch_count DESC").
		Limit(limit)

	if conventionID := c.Query("convention_id"); conventionID != "" {
		query = query.Where("catches.convention_id = ?", conventionID)
	}

	var rows []leaderboardRow
	if err := query.Scan(&rows).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to fetch leaderboard",
		})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"leaderboard": rows,
	})
}
