// Package notifications provides database operations for member notifications.
package notifications

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(notification *entities.Notification) error {
	return r.db.Omit(clause.Associations).Create(notification).Error
}

// ListForUser returns the user's notifications, newest first.
func (r *Repository) ListForUser(userID uint, unreadOnly bool) ([]entities.Notification, error) {
	query := r.db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var result []entities.Notification
	err := query.Order("sent_date DESC").Order("id DESC").Find(&result).Error
	return result, err
}

func (r *Repository) CountUnread(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flags one of the user's notifications as read. It reports false
// when the notification does not exist or belongs to another user.
func (r *Repository) MarkRead(id, userID uint) (bool, error) {
	var notification entities.Notification
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&notification)
	if result.Error != nil || result.RowsAffected == 0 {
		return false, result.Error
	}
	if notification.IsRead {
		return true, nil
	}
	err := r.db.Model(&entities.Notification{}).Where("id = ?", id).Update("is_read", true).Error
	return err == nil, err
}
