package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
)

// ErrNotFound is returned by every backend when no live document matches.
var ErrNotFound = errors.New("record not found")

type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	FindConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)
	FindConversationsByMember(ctx context.Context, userID string) ([]models.Conversation, error)
	FindConversationByJoinCode(ctx context.Context, code string) (*models.Conversation, error)
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	UpdateConversation(ctx context.Context, conv *models.Conversation) error
	UpdateLastMessage(ctx context.Context, id, content string, at int64) error
	SoftDeleteConversation(ctx context.Context, id string, at int64) error
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	FindMessageByID(ctx context.Context, id string) (*models.Message, error)
	FindMessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	FindMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
	FindUnreadMessages(ctx context.Context, userID string) ([]models.Message, error)
	MarkAsRead(ctx context.Context, id string) error
	SetPinned(ctx context.Context, id string, pinned bool) error
	SoftDeleteMessage(ctx context.Context, id string) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	FindPostByID(ctx context.Context, id string) (*models.Post, error)
	FindPosts(ctx context.Context, page, pageSize int) ([]models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
}

// Stores groups the repositories of one backend.
type Stores struct {
	Conversations ConversationRepository
	Messages      MessageRepository
	Posts         PostRepository
	close         func(ctx context.Context) error
}

func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}
