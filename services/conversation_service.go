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

// ConversationService owns every membership mutation. Each one loads the
// conversation, asks the policy, mutates in memory and writes the whole
// document back. There is no version check, the last writer wins.
type ConversationService interface {
	CreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, *apiError.Error)
	CreateGroup(ctx context.Context, req *models.CreateGroupRequest) (*models.Conversation, *apiError.Error)
	CreateGroupWithMembers(ctx context.Context, req *models.CreateGroupConversationRequest) (*models.Conversation, *apiError.Error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, *apiError.Error)
	GetUserConversations(ctx context.Context, userID string) ([]models.Conversation, *apiError.Error)
	AddMembers(ctx context.Context, id, requesterID string, candidateIDs []string) ([]string, *apiError.Error)
	RemoveMember(ctx context.Context, id, requesterID, targetID string) *apiError.Error
	ManageAdmin(ctx context.Context, id, requesterID, targetID string, grant bool) (*models.Conversation, *apiError.Error)
	UpdateProfile(ctx context.Context, id string, req *models.UpdateGroupInfoRequest) (*models.Conversation, *apiError.Error)
	JoinByCode(ctx context.Context, userID, code string) (*models.Conversation, *apiError.Error)
	BanMember(ctx context.Context, id, requesterID, targetID string) *apiError.Error
	UnbanMember(ctx context.Context, id, requesterID, targetID string) *apiError.Error
	LeaveConversation(ctx context.Context, id, userID string) *apiError.Error
	DeleteConversation(ctx context.Context, id, requesterID string) *apiError.Error
}

type conversationService struct {
	Config           *config.Config
	conversationRepo db.ConversationRepository
	broadcaster      realtime.Broadcaster
	logger           zerolog.Logger
	now              func() time.Time
}

func NewConversationService(conversationRepo db.ConversationRepository, broadcaster realtime.Broadcaster, logger zerolog.Logger, conf *config.Config) ConversationService {
	return &conversationService{
		Config:           conf,
		conversationRepo: conversationRepo,
		broadcaster:      broadcaster,
		logger:           logger.With().Str("service", "conversation").Logger(),
		now:              time.Now,
	}
}

// MembershipEvent is the payload of EventMembershipChanged.
type MembershipEvent struct {
	ConversationID string   `json:"conversationId"`
	Change         string   `json:"change"`
	UserIDs        []string `json:"userIds"`
}

func denied(d policy.Denial) *apiError.Error {
	switch d {
	case policy.CapacityExceeded:
		return apiError.Capacity(d.Message())
	case policy.NotAMember, policy.NotGroup, policy.AlreadyMember:
		return apiError.Rejected(string(d), d.Message())
	default:
		return apiError.Forbidden(string(d), d.Message())
	}
}

func (s *conversationService) storageFailure(err error, action, conversationID string) *apiError.Error {
	s.logger.Error().Err(err).Str("conversation_id", conversationID).Msgf("unable to %s", action)
	return apiError.Storage(action)
}

func (s *conversationService) load(ctx context.Context, id string) (*models.Conversation, *apiError.Error) {
	if strings.TrimSpace(id) == "" {
		return nil, apiError.Validation("conversation id is required")
	}
	conv, err := s.conversationRepo.FindConversationByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apiError.NotFound("conversation not found")
	}
	if err != nil {
		return nil, s.storageFailure(err, "load conversation", id)
	}
	return conv, nil
}

func (s *conversationService) save(ctx context.Context, conv *models.Conversation) *apiError.Error {
	conv.UpdatedAt = s.now().Unix()
	err := s.conversationRepo.UpdateConversation(ctx, conv)
	if errors.Is(err, db.ErrNotFound) {
		return apiError.NotFound("conversation not found")
	}
	if err != nil {
		return s.storageFailure(err, "update conversation", conv.ID)
	}
	return nil
}

func (s *conversationService) notify(conv *models.Conversation, change string, userIDs []string, extraRecipients ...string) {
	metrics.MembershipChanges.WithLabelValues(change, "ok").Inc()
	s.broadcaster.Send(realtime.EventMembershipChanged, union(conv.Members, extraRecipients), MembershipEvent{
		ConversationID: conv.ID,
		Change:         change,
		UserIDs:        userIDs,
	})
}

func (s *conversationService) refuse(op string, d policy.Denial) *apiError.Error {
	metrics.MembershipChanges.WithLabelValues(op, "denied").Inc()
	return denied(d)
}

func (s *conversationService) newJoinCode(ctx context.Context) (string, *apiError.Error) {
	retries := 1
	if s.Config != nil && s.Config.JoinCodeRetries > 0 {
		retries = s.Config.JoinCodeRetries
	}
	for i := 0; i < retries; i++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:models.JoinCodeLength])
		exists, err := s.conversationRepo.JoinCodeExists(ctx, code)
		if err != nil {
			return "", s.storageFailure(err, "generate join code", "")
		}
		if !exists {
			return code, nil
		}
		s.logger.Warn().Str("join_code", code).Int("attempt", i+1).Msg("join code collision")
	}
	return "", apiError.Storage("generate a unique join code")
}

func (s *conversationService) CreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, *apiError.Error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, apiError.Validation("both user ids are required")
	}
	if userA == userB {
		return nil, apiError.Validation("cannot start a conversation with yourself")
	}

	existing, err := s.conversationRepo.FindDirectConversation(ctx, userA, userB)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, s.storageFailure(err, "find direct conversation", "")
	}

	// two concurrent calls for the same pair can both get here
	now := s.now().Unix()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		Name:          models.DirectConversationName(userA, userB),
		Type:          models.ConversationTypeDirect,
		Members:       []string{userA, userB},
		Admins:        []string{},
		BannedMembers: []string{},
		MaxMembers:    models.DirectMaxMembers,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.conversationRepo.CreateConversation(ctx, conv); err != nil {
		return nil, s.storageFailure(err, "create conversation", conv.ID)
	}
	return conv, nil
}

func (s *conversationService) CreateGroup(ctx context.Context, req *models.CreateGroupRequest) (*models.Conversation, *apiError.Error) {
	name := strings.TrimSpace(req.Name)
	creatorID := strings.TrimSpace(req.CreatorID)
	if name == "" {
		return nil, apiError.Validation("group name is required")
	}
	if creatorID == "" {
		return nil, apiError.Validation("creatorId is required")
	}
	maxMembers := models.DefaultGroupMaxMembers
	if req.MaxMembers != nil {
		if *req.MaxMembers < 2 {
			return nil, apiError.Validation("maxMembers must be at least 2")
		}
		maxMembers = *req.MaxMembers
	}

	code, apiErr := s.newJoinCode(ctx)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.now().Unix()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		Name:          name,
		Type:          models.ConversationTypeGroup,
		CreatorID:     creatorID,
		Members:       []string{creatorID},
		Admins:        []string{creatorID},
		BannedMembers: []string{},
		MaxMembers:    maxMembers,
		JoinCode:      code,
		Description:   strings.TrimSpace(req.Description),
		GroupAvatar:   strings.TrimSpace(req.GroupAvatar),
		IsPublic:      req.IsPublic,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.conversationRepo.CreateConversation(ctx, conv); err != nil {
		return nil, s.storageFailure(err, "create group", conv.ID)
	}
	metrics.MembershipChanges.WithLabelValues("create_group", "ok").Inc()
	return conv, nil
}

// CreateGroupWithMembers builds a group from an explicit member list. The
// creator defaults to the first member and is always the first admin.
func (s *conversationService) CreateGroupWithMembers(ctx context.Context, req *models.CreateGroupConversationRequest) (*models.Conversation, *apiError.Error) {
	members := distinct(req.Members)
	if len(members) < 2 {
		return nil, apiError.Validation("at least two distinct members are required")
	}

	switch models.ConversationType(strings.ToLower(strings.TrimSpace(req.Type))) {
	case models.ConversationTypeDirect:
		if len(members) != models.DirectMaxMembers {
			return nil, apiError.Validation("direct conversations have exactly two members")
		}
		return s.CreateDirect(ctx, members[0], members[1])
	case models.ConversationTypeGroup, "":
	default:
		return nil, apiError.Validation("type must be direct or group")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apiError.Validation("group name is required")
	}
	creatorID := strings.TrimSpace(req.CreatorID)
	if creatorID == "" {
		creatorID = members[0]
	}
	if !containsID(members, creatorID) {
		members = append([]string{creatorID}, members...)
	}
	if len(members) > models.DefaultGroupMaxMembers {
		return nil, apiError.Capacity(policy.CapacityExceeded.Message())
	}

	code, apiErr := s.newJoinCode(ctx)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.now().Unix()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		Name:          name,
		Type:          models.ConversationTypeGroup,
		CreatorID:     creatorID,
		Members:       members,
		Admins:        []string{creatorID},
		BannedMembers: []string{},
		MaxMembers:    models.DefaultGroupMaxMembers,
		JoinCode:      code,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.conversationRepo.CreateConversation(ctx, conv); err != nil {
		return nil, s.storageFailure(err, "create group", conv.ID)
	}
	s.notify(conv, "create_group", members)
	return conv, nil
}

func (s *conversationService) GetConversation(ctx context.Context, id string) (*models.Conversation, *apiError.Error) {
	return s.load(ctx, id)
}

func (s *conversationService) GetUserConversations(ctx context.Context, userID string) ([]models.Conversation, *apiError.Error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apiError.Validation("userId is required")
	}
	convs, err := s.conversationRepo.FindConversationsByMember(ctx, userID)
	if err != nil {
		return nil, s.storageFailure(err, "list conversations", "")
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

func (s *conversationService) AddMembers(ctx context.Context, id, requesterID string, candidateIDs []string) ([]string, *apiError.Error) {
	if len(candidateIDs) == 0 {
		return nil, apiError.Validation("memberIds is required")
	}
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}

	added, d := policy.CanAddMembers(conv, requesterID, candidateIDs)
	if d.Denied() {
		return nil, s.refuse("add_members", d)
	}
	if len(added) == 0 {
		return []string{}, nil
	}

	conv.Members = append(conv.Members, added...)
	if apiErr := s.save(ctx, conv); apiErr != nil {
		return nil, apiErr
	}
	s.notify(conv, "add_members", added)
	return added, nil
}

// RemoveMember succeeds for ids that are not members; only updatedAt moves.
func (s *conversationService) RemoveMember(ctx context.Context, id, requesterID, targetID string) *apiError.Error {
	if strings.TrimSpace(targetID) == "" {
		return apiError.Validation("member id is required")
	}
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if d := policy.CanRemoveMember(conv, requesterID, targetID); d.Denied() {
		return s.refuse("remove_member", d)
	}

	wasMember := policy.IsMember(conv, targetID)
	conv.Members = withoutID(conv.Members, targetID)
	if apiErr := s.save(ctx, conv); apiErr != nil {
		return apiErr
	}
	if wasMember {
		s.notify(conv, "remove_member", []string{targetID}, targetID)
	}
	return nil
}

func (s *conversationService) ManageAdmin(ctx context.Context, id, requesterID, targetID string, grant bool) (*models.Conversation, *apiError.Error) {
	if strings.TrimSpace(targetID) == "" {
		return nil, apiError.Validation("userId is required")
	}
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}

	if grant {
		if d := policy.CanGrantAdmin(conv, requesterID, targetID); d.Denied() {
			return nil, s.refuse("grant_admin", d)
		}
		if policy.IsAdmin(conv, targetID) {
			return conv, nil
		}
		conv.Admins = append(conv.Admins, targetID)
	} else {
		if d := policy.CanRevokeAdmin(conv, requesterID, targetID); d.Denied() {
			return nil, s.refuse("revoke_admin", d)
		}
		if !policy.IsAdmin(conv, targetID) {
			return conv, nil
		}
		conv.Admins = withoutID(conv.Admins, targetID)
	}

	if apiErr := s.save(ctx, conv); apiErr != nil {
		return nil, apiErr
	}
	change := "revoke_admin"
	if grant {
		change = "grant_admin"
	}
	s.notify(conv, change, []string{targetID})
	return conv, nil
}

func (s *conversationService) UpdateProfile(ctx context.Context, id string, req *models.UpdateGroupInfoRequest) (*models.Conversation, *apiError.Error) {
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}
	if d := policy.CanEditProfile(conv, req.RequestedById); d.Denied() {
		return nil, s.refuse("update_profile", d)
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		conv.Name = name
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		conv.Description = desc
	}
	if avatar := strings.TrimSpace(req.GroupAvatar); avatar != "" {
		conv.GroupAvatar = avatar
	}
	if req.IsPublic != nil {
		conv.IsPublic = *req.IsPublic
	}
	if req.MaxMembers != nil {
		if *req.MaxMembers < len(conv.Members) || *req.MaxMembers < 2 {
			return nil, apiError.Validation("maxMembers cannot be lower than the current member count")
		}
		conv.MaxMembers = *req.MaxMembers
	}

	if apiErr := s.save(ctx, conv); apiErr != nil {
		return nil, apiErr
	}
	s.notify(conv, "update_profile", []string{})
	return conv, nil
}

func (s *conversationService) JoinByCode(ctx context.Context, userID, code string) (*models.Conversation, *apiError.Error) {
	userID = strings.TrimSpace(userID)
	code = strings.ToUpper(strings.TrimSpace(code))
	if userID == "" || code == "" {
		return nil, apiError.Validation("userId and joinCode are required")
	}

	conv, err := s.conversationRepo.FindConversationByJoinCode(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apiError.NotFound("invalid join code")
	}
	if err != nil {
		return nil, s.storageFailure(err, "find conversation by join code", "")
	}
	if d := policy.CanJoin(conv, userID); d.Denied() {
		return nil, s.refuse("join", d)
	}

	conv.Members = append(conv.Members, userID)
	if apiErr := s.save(ctx, conv); apiErr != nil {
		return nil, apiErr
	}
	s.notify(conv, "join", []string{userID})
	return conv, nil
}

// BanMember removes the target and keeps them out until unbanned.
func (s *conversationService) BanMember(ctx context.Context, id, requesterID, targetID string) *apiError.Error {
	if strings.TrimSpace(targetID) == "" {
		return apiError.Validation("userId is required")
	}
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if d := policy.CanBanMember(conv, requesterID, targetID); d.Denied() {
		return s.refuse("ban", d)
	}

	conv.Members = withoutID(conv.Members, targetID)
	if !policy.IsBanned(conv, targetID) {
		conv.BannedMembers = append(conv.BannedMembers, targetID)
	}
	if apiErr := s.save(ctx, conv); apiErr != nil {
		return apiErr
	}
	s.notify(conv, "ban", []string{targetID}, targetID)
	return nil
}

func (s *conversationService) UnbanMember(ctx context.Context, id, requesterID, targetID string) *apiError.Error {
	if strings.TrimSpace(targetID) == "" {
		return apiError.Validation("userId is required")
	}
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if d := policy.CanUnbanMember(conv, requesterID); d.Denied() {
		return s.refuse("unban", d)
	}
	if !policy.IsBanned(conv, targetID) {
		return nil
	}

	conv.BannedMembers = withoutID(conv.BannedMembers, targetID)
	if apiErr := s.save(ctx, conv); apiErr != nil {
		return apiErr
	}
	s.notify(conv, "unban", []string{targetID})
	return nil
}

func (s *conversationService) LeaveConversation(ctx context.Context, id, userID string) *apiError.Error {
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if d := policy.CanLeave(conv, userID); d.Denied() {
		return s.refuse("leave", d)
	}

	conv.Members = withoutID(conv.Members, userID)
	conv.Admins = withoutID(conv.Admins, userID)
	if apiErr := s.save(ctx, conv); apiErr != nil {
		return apiErr
	}
	s.notify(conv, "leave", []string{userID}, userID)
	return nil
}

func (s *conversationService) DeleteConversation(ctx context.Context, id, requesterID string) *apiError.Error {
	conv, apiErr := s.load(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if d := policy.CanDelete(conv, requesterID); d.Denied() {
		return s.refuse("delete", d)
	}

	err := s.conversationRepo.SoftDeleteConversation(ctx, id, s.now().Unix())
	if errors.Is(err, db.ErrNotFound) {
		return apiError.NotFound("conversation not found")
	}
	if err != nil {
		return s.storageFailure(err, "delete conversation", id)
	}
	s.notify(conv, "delete", []string{})
	return nil
}
