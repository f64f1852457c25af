// services/notifier.go - Award notification fan-out
package services

import (
	"encoding/json"
	"log"

	"tailtag/achievements"
	"tailtag/database"
	"tailtag/models"

	"gorm.io/datatypes"
)

// Notifier records a user-facing notification row for every award the
// engine grants. Delivery to the device is someone else's job; this
// service only writes the row the delivery channel reads.
type Notifier struct{}

var notifier *Notifier

// InitNotifier initializes the singleton notifier service.
func InitNotifier() {
	notifier = &Notifier{}
}

// GetNotifier returns the initialized notifier service.
func GetNotifier() *Notifier {
	return notifier
}

// OnAwardGranted is the achievements.AwardHook implementation. A
// unique-violation means a notification for this grant already exists;
// that and every other failure is reported to the caller, who logs and
// swallows it. Notification problems never fail achievement processing.
func (n *Notifier) OnAwardGranted(userID string, achievement models.Achievement, grantContext achievements.Context, event *models.AchievementEvent) error {
	if userID == "" {
		return nil
	}

	raw, err := json.Marshal(grantContext)
	if err != nil {
		return err
	}

	notification := models.AchievementNotification{
		UserID:         userID,
		AchievementKey: achievement.Key,
		Context:        datatypes.JSON(raw),
	}
	if event != nil {
		notification.EventID = &event.ID
		notification.EventType = &event.EventType
	}

	db := database.GetDB()
	if err := db.Create(&notification).Error; err != nil {
		if achievements.IsUniqueViolation(err) {
			log.Printf("Notification already exists for %s (%s)", achievement.Key, userID)
			return nil
		}
		return err
	}
	return nil
}
