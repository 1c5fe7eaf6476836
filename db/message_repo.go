package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
	"gorm.io/gorm"
)

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

func (r *messageRepo) live(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&models.Message{}).Where("is_deleted = ?", false)
}

func (r *messageRepo) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := r.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return errors.Wrap(err, "save message")
	}
	return nil
}

func (r *messageRepo) FindMessageByID(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	if err := r.live(ctx).Where("id = ?", id).First(msg).Error; err != nil {
		return nil, notFound(err, "find message")
	}
	return msg, nil
}

func (r *messageRepo) FindMessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.live(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "find messages by conversation")
	}
	return msgs, nil
}

func (r *messageRepo) FindMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.live(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("timestamp ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "find messages between users")
	}
	return msgs, nil
}

func (r *messageRepo) FindUnreadMessages(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.live(ctx).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Order("timestamp ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "find unread messages")
	}
	return msgs, nil
}

func (r *messageRepo) MarkAsRead(ctx context.Context, id string) error {
	return r.set(ctx, id, "is_read", true, "mark message read")
}

func (r *messageRepo) SetPinned(ctx context.Context, id string, pinned bool) error {
	return r.set(ctx, id, "is_pinned", pinned, "pin message")
}

func (r *messageRepo) SoftDeleteMessage(ctx context.Context, id string) error {
	return r.set(ctx, id, "is_deleted", true, "delete message")
}

func (r *messageRepo) set(ctx context.Context, id, column string, value interface{}, action string) error {
	result := r.live(ctx).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return errors.Wrap(result.Error, action)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
