package models

import "fmt"

type ConversationType string

const (
	ConversationTypeDirect ConversationType = "direct"
	ConversationTypeGroup  ConversationType = "group"
)

const (
	DefaultGroupMaxMembers = 100
	DirectMaxMembers       = 2
	JoinCodeLength         = 8
)

// Conversation is stored as a single document. Member, admin and ban lists
// are kept as ordered lists but are treated as sets by the service layer.
type Conversation struct {
	ID              string           `json:"conversationId" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Name            string           `json:"name" bson:"name"`
	Type            ConversationType `json:"type" gorm:"type:varchar(16);index" bson:"type"`
	CreatorID       string           `json:"creatorId,omitempty" bson:"creatorId,omitempty"`
	Members         []string         `json:"members" gorm:"type:jsonb;serializer:json" bson:"members"`
	Admins          []string         `json:"admins" gorm:"type:jsonb;serializer:json" bson:"admins"`
	BannedMembers   []string         `json:"bannedMembers" gorm:"type:jsonb;serializer:json" bson:"bannedMembers"`
	MaxMembers      int              `json:"maxMembers" bson:"maxMembers"`
	JoinCode        string           `json:"joinCode,omitempty" gorm:"type:varchar(16);index" bson:"joinCode,omitempty"`
	Description     string           `json:"description,omitempty" bson:"description,omitempty"`
	GroupAvatar     string           `json:"groupAvatar,omitempty" bson:"groupAvatar,omitempty"`
	IsPublic        bool             `json:"isPublic" bson:"isPublic"`
	LastMessage     string           `json:"lastMessage" bson:"lastMessage"`
	LastMessageTime int64            `json:"lastMessageTime" gorm:"index" bson:"lastMessageTime"`
	CreatedAt       int64            `json:"createdAt" gorm:"autoCreateTime:false" bson:"createdAt"`
	UpdatedAt       int64            `json:"updatedAt" gorm:"autoUpdateTime:false" bson:"updatedAt"`
	IsDeleted       bool             `json:"isDeleted" gorm:"index" bson:"isDeleted"`
}

func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationTypeGroup
}

// DirectConversationName is the display name given to a two party thread.
func DirectConversationName(userA, userB string) string {
	return fmt.Sprintf("Chat between %s and %s", userA, userB)
}

type CreateConversationRequest struct {
	UserId1 string `json:"userId1" binding:"required"`
	UserId2 string `json:"userId2" binding:"required"`
}

type CreateGroupConversationRequest struct {
	Name      string   `json:"name" conform:"trim" binding:"required"`
	Members   []string `json:"members" binding:"required,min=2,dive,required"`
	Type      string   `json:"type" conform:"trim,lower"`
	CreatorID string   `json:"creatorId" conform:"trim"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" conform:"trim" binding:"required"`
	CreatorID   string `json:"creatorId" conform:"trim" binding:"required"`
	Description string `json:"description" conform:"trim"`
	GroupAvatar string `json:"groupAvatar" conform:"trim"`
	IsPublic    bool   `json:"isPublic"`
	MaxMembers  *int   `json:"maxMembers" binding:"omitempty,min=2"`
}

type AddMembersRequest struct {
	MemberIds     []string `json:"memberIds" binding:"required,min=1,dive,required"`
	RequestedById string   `json:"requestedById" conform:"trim"`
}

type ManageAdminRequest struct {
	RequestedById string `json:"requestedById" conform:"trim"`
	UserId        string `json:"userId" conform:"trim" binding:"required"`
	IsAddAdmin    bool   `json:"isAddAdmin"`
}

// UpdateGroupInfoRequest is a partial update: blank strings and nil
// pointers leave the stored value untouched.
type UpdateGroupInfoRequest struct {
	RequestedById string `json:"requestedById" conform:"trim"`
	Name          string `json:"name" conform:"trim"`
	Description   string `json:"description" conform:"trim"`
	GroupAvatar   string `json:"groupAvatar" conform:"trim"`
	IsPublic      *bool  `json:"isPublic"`
	MaxMembers    *int   `json:"maxMembers" binding:"omitempty,min=2"`
}

type MemberActionRequest struct {
	RequestedById string `json:"requestedById" conform:"trim"`
	UserId        string `json:"userId" conform:"trim" binding:"required"`
}

type LeaveConversationRequest struct {
	UserId string `json:"userId" conform:"trim"`
}

type JoinConversationRequest struct {
	UserId   string `json:"userId" conform:"trim"`
	JoinCode string `json:"joinCode" conform:"trim,upper" binding:"required"`
}

type CreateGroupResponse struct {
	ConversationID string `json:"conversationId"`
	JoinCode       string `json:"joinCode"`
}

type GroupConversationResponse struct {
	ConversationID string           `json:"conversationId"`
	Name           string           `json:"name"`
	Members        []string         `json:"members"`
	Type           ConversationType `json:"type"`
	CreatedAt      int64            `json:"createdAt"`
}

type AddMembersResponse struct {
	AddedMembers []string `json:"addedMembers"`
}
