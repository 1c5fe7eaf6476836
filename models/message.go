package models

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
)

type Attachment struct {
	Type     AttachmentType `json:"type" bson:"type" binding:"required,oneof=image file video audio"`
	URL      string         `json:"url" bson:"url" binding:"required,url"`
	FileName string         `json:"fileName" bson:"fileName"`
	FileSize int64          `json:"fileSize" bson:"fileSize" binding:"gte=0"`
}

type Message struct {
	ID             string       `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	ConversationID string       `json:"conversationId" gorm:"type:varchar(36);index" bson:"conversationId"`
	SenderID       string       `json:"senderId" gorm:"index" bson:"senderId"`
	ReceiverID     string       `json:"receiverId,omitempty" gorm:"index" bson:"receiverId,omitempty"`
	Content        string       `json:"content" bson:"content"`
	Attachments    []Attachment `json:"attachments" gorm:"type:jsonb;serializer:json" bson:"attachments"`
	IsRead         bool         `json:"isRead" bson:"isRead"`
	IsPinned       bool         `json:"isPinned" bson:"isPinned"`
	IsDeleted      bool         `json:"isDeleted" gorm:"index" bson:"isDeleted"`
	Timestamp      int64        `json:"timestamp" gorm:"index" bson:"timestamp"`
}

type SendMessageRequest struct {
	SenderId       string       `json:"senderId" conform:"trim"`
	ReceiverId     string       `json:"receiverId" conform:"trim"`
	Content        string       `json:"content"`
	ConversationId string       `json:"conversationId" conform:"trim"`
	Attachments    []Attachment `json:"attachments" binding:"omitempty,dive"`
}

type PinMessageRequest struct {
	IsPinned bool `json:"isPinned"`
}
