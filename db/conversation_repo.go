package db

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
	"gorm.io/gorm"
)

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

// hasElement filters rows whose json array column contains value.
func hasElement(tx *gorm.DB, column, value string) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		encoded, _ := json.Marshal([]string{value})
		return tx.Where(column+" @> ?::jsonb", string(encoded))
	}
	return tx.Where("EXISTS (SELECT 1 FROM json_each("+column+") WHERE json_each.value = ?)", value)
}

func (r *conversationRepo) live(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&models.Conversation{}).Where("is_deleted = ?", false)
}

func (r *conversationRepo) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if err := r.DB.WithContext(ctx).Create(conv).Error; err != nil {
		return errors.Wrap(err, "create conversation")
	}
	return nil
}

func (r *conversationRepo) FindConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	if err := r.live(ctx).Where("id = ?", id).First(conv).Error; err != nil {
		return nil, notFound(err, "find conversation")
	}
	return conv, nil
}

func (r *conversationRepo) FindDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	tx := r.live(ctx).Where("type = ?", models.ConversationTypeDirect)
	tx = hasElement(tx, "members", userA)
	tx = hasElement(tx, "members", userB)

	conv := &models.Conversation{}
	if err := tx.Order("created_at ASC").First(conv).Error; err != nil {
		return nil, notFound(err, "find direct conversation")
	}
	return conv, nil
}

func (r *conversationRepo) FindConversationsByMember(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := hasElement(r.live(ctx), "members", userID).
		Order("last_message_time DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "find conversations by member")
	}
	return convs, nil
}

func (r *conversationRepo) FindConversationByJoinCode(ctx context.Context, code string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := r.live(ctx).
		Where("join_code = ? AND type = ?", code, models.ConversationTypeGroup).
		First(conv).Error
	if err != nil {
		return nil, notFound(err, "find conversation by join code")
	}
	return conv, nil
}

func (r *conversationRepo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Conversation{}).Where("join_code = ?", code).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check join code")
	}
	return count > 0, nil
}

// UpdateConversation overwrites the whole row; concurrent writers race and the last one wins.
func (r *conversationRepo) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	result := r.DB.WithContext(ctx).Model(conv).Select("*").Updates(conv)
	if result.Error != nil {
		return errors.Wrap(result.Error, "update conversation")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *conversationRepo) UpdateLastMessage(ctx context.Context, id, content string, at int64) error {
	result := r.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message":      content,
			"last_message_time": at,
			"updated_at":        at,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "update last message")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *conversationRepo) SoftDeleteConversation(ctx context.Context, id string, at int64) error {
	result := r.live(ctx).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": at})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete conversation")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
