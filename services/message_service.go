package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/config"
	"github.com/techagentng/quizchat/db"
	apiError "github.com/techagentng/quizchat/errors"
	"github.com/techagentng/quizchat/metrics"
	"github.com/techagentng/quizchat/models"
	"github.com/techagentng/quizchat/realtime"
	"github.com/techagentng/quizchat/services/policy"
)

type MessageService interface {
	SendMessage(ctx context.Context, req *models.SendMessageRequest) (*models.Message, *apiError.Error)
	GetChatMessages(ctx context.Context, userA, userB string) ([]models.Message, *apiError.Error)
	GetMessagesByConversation(ctx context.Context, conversationID, actorID string) ([]models.Message, *apiError.Error)
	GetUnreadMessages(ctx context.Context, userID string) ([]models.Message, *apiError.Error)
	MarkAsRead(ctx context.Context, id, actorID string) *apiError.Error
	PinMessage(ctx context.Context, id, actorID string, pinned bool) *apiError.Error
	DeleteMessage(ctx context.Context, id, actorID string) *apiError.Error
}

// codeNotSender marks a delete attempted by someone other than the sender.
const codeNotSender = "NOT_SENDER"

type messageService struct {
	Config              *config.Config
	messageRepo         db.MessageRepository
	conversationRepo    db.ConversationRepository
	conversationService ConversationService
	broadcaster         realtime.Broadcaster
	logger              zerolog.Logger
	now                 func() time.Time
}

func NewMessageService(messageRepo db.MessageRepository, conversationRepo db.ConversationRepository, conversationService ConversationService, broadcaster realtime.Broadcaster, logger zerolog.Logger, conf *config.Config) MessageService {
	return &messageService{
		Config:              conf,
		messageRepo:         messageRepo,
		conversationRepo:    conversationRepo,
		conversationService: conversationService,
		broadcaster:         broadcaster,
		logger:              logger.With().Str("service", "message").Logger(),
		now:                 time.Now,
	}
}

func (s *messageService) storageFailure(err error, action string) *apiError.Error {
	s.logger.Error().Err(err).Msgf("unable to %s", action)
	return apiError.Storage(action)
}

// SendMessage persists the message, refreshes the conversation's last
// message cache and broadcasts ReceiveMessage to the members. The cache
// write is separate from the insert and its failure only gets logged.
func (s *messageService) SendMessage(ctx context.Context, req *models.SendMessageRequest) (*models.Message, *apiError.Error) {
	senderID := strings.TrimSpace(req.SenderId)
	if senderID == "" {
		return nil, apiError.Validation("senderId is required")
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		return nil, apiError.Validation("message content or attachments are required")
	}

	var conv *models.Conversation
	var apiErr *apiError.Error
	switch {
	case strings.TrimSpace(req.ConversationId) != "":
		conv, apiErr = s.conversationService.GetConversation(ctx, req.ConversationId)
	case strings.TrimSpace(req.ReceiverId) != "":
		conv, apiErr = s.conversationService.CreateDirect(ctx, senderID, req.ReceiverId)
	default:
		return nil, apiError.Validation("conversationId or receiverId is required")
	}
	if apiErr != nil {
		return nil, apiErr
	}
	if !policy.IsMember(conv, senderID) {
		return nil, apiError.Forbidden(string(policy.NotAMember), "sender is not a member of this conversation")
	}

	receiverID, apiErr := resolveReceiver(conv, senderID, strings.TrimSpace(req.ReceiverId))
	if apiErr != nil {
		return nil, apiErr
	}
	attachments := req.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        req.Content,
		Attachments:    attachments,
		Timestamp:      s.now().Unix(),
	}
	if err := s.messageRepo.SaveMessage(ctx, msg); err != nil {
		return nil, s.storageFailure(err, "save message")
	}
	metrics.MessagesSent.WithLabelValues(string(conv.Type)).Inc()

	if err := s.conversationRepo.UpdateLastMessage(ctx, conv.ID, lastMessagePreview(msg), msg.Timestamp); err != nil {
		metrics.LastMessageCacheFailures.Inc()
		s.logger.Warn().Err(err).
			Str("conversation_id", conv.ID).
			Str("message_id", msg.ID).
			Msg("last message cache not refreshed")
	}

	s.broadcaster.Send(realtime.EventReceiveMessage, conv.Members, senderID, msg)
	return msg, nil
}

// resolveReceiver pins a direct message to the other member. In a group the
// receiver is optional but has to be a member.
func resolveReceiver(conv *models.Conversation, senderID, claimed string) (string, *apiError.Error) {
	if conv.IsGroup() {
		if claimed != "" && !policy.IsMember(conv, claimed) {
			return "", apiError.Rejected(string(policy.NotAMember), "receiver is not a member of this conversation")
		}
		return claimed, nil
	}
	peer := ""
	for _, m := range conv.Members {
		if m != senderID {
			peer = m
		}
	}
	if claimed != "" && claimed != peer {
		return "", apiError.Rejected(string(policy.NotAMember), "receiver is not a member of this conversation")
	}
	return peer, nil
}

func lastMessagePreview(msg *models.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.Attachments) > 0 {
		return "[" + string(msg.Attachments[0].Type) + "]"
	}
	return ""
}

func (s *messageService) GetChatMessages(ctx context.Context, userA, userB string) ([]models.Message, *apiError.Error) {
	if strings.TrimSpace(userA) == "" || strings.TrimSpace(userB) == "" {
		return nil, apiError.Validation("userId1 and userId2 are required")
	}
	msgs, err := s.messageRepo.FindMessagesBetween(ctx, userA, userB)
	if err != nil {
		return nil, s.storageFailure(err, "load messages")
	}
	return nonNil(msgs), nil
}

func (s *messageService) GetMessagesByConversation(ctx context.Context, conversationID, actorID string) ([]models.Message, *apiError.Error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apiError.Validation("conversationId is required")
	}
	if actorID != "" {
		if apiErr := s.requireMember(ctx, conversationID, actorID); apiErr != nil {
			return nil, apiErr
		}
	}
	msgs, err := s.messageRepo.FindMessagesByConversation(ctx, conversationID)
	if err != nil {
		return nil, s.storageFailure(err, "load messages")
	}
	return nonNil(msgs), nil
}

func (s *messageService) GetUnreadMessages(ctx context.Context, userID string) ([]models.Message, *apiError.Error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apiError.Validation("userId is required")
	}
	msgs, err := s.messageRepo.FindUnreadMessages(ctx, userID)
	if err != nil {
		return nil, s.storageFailure(err, "load unread messages")
	}
	return nonNil(msgs), nil
}

func (s *messageService) MarkAsRead(ctx context.Context, id, actorID string) *apiError.Error {
	if apiErr := s.authorize(ctx, id, actorID, false); apiErr != nil {
		return apiErr
	}
	return s.update(s.messageRepo.MarkAsRead(ctx, id), "mark message read")
}

func (s *messageService) PinMessage(ctx context.Context, id, actorID string, pinned bool) *apiError.Error {
	if apiErr := s.authorize(ctx, id, actorID, false); apiErr != nil {
		return apiErr
	}
	return s.update(s.messageRepo.SetPinned(ctx, id, pinned), "pin message")
}

func (s *messageService) DeleteMessage(ctx context.Context, id, actorID string) *apiError.Error {
	if apiErr := s.authorize(ctx, id, actorID, true); apiErr != nil {
		return apiErr
	}
	return s.update(s.messageRepo.SoftDeleteMessage(ctx, id), "delete message")
}

// authorize checks actorID against the message: members of its conversation
// may read and pin it, only the sender may delete it. An empty actorID
// skips the check.
func (s *messageService) authorize(ctx context.Context, id, actorID string, senderOnly bool) *apiError.Error {
	if actorID == "" {
		return nil
	}
	msg, err := s.messageRepo.FindMessageByID(ctx, id)
	if err != nil {
		return s.update(err, "load message")
	}
	if senderOnly {
		if msg.SenderID != actorID {
			return apiError.Forbidden(codeNotSender, "only the sender can delete this message")
		}
		return nil
	}
	return s.requireMember(ctx, msg.ConversationID, actorID)
}

func (s *messageService) requireMember(ctx context.Context, conversationID, actorID string) *apiError.Error {
	conv, apiErr := s.conversationService.GetConversation(ctx, conversationID)
	if apiErr != nil {
		return apiErr
	}
	if !policy.IsMember(conv, actorID) {
		return apiError.Forbidden(string(policy.NotAMember), "user is not a member of this conversation")
	}
	return nil
}

func (s *messageService) update(err error, action string) *apiError.Error {
	if errors.Is(err, db.ErrNotFound) {
		return apiError.NotFound("message not found")
	}
	if err != nil {
		return s.storageFailure(err, action)
	}
	return nil
}

func nonNil(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	return msgs
}
