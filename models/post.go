package models

type Post struct {
	ID           string   `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	UserID       string   `json:"userId" gorm:"index" bson:"userId"`
	Content      string   `json:"content" bson:"content"`
	ImageUrls    []string `json:"imageUrls" gorm:"type:jsonb;serializer:json" bson:"imageUrls"`
	FileUrls     []string `json:"fileUrls" gorm:"type:jsonb;serializer:json" bson:"fileUrls"`
	Likes        int      `json:"likes" bson:"likes"`
	LikedByUsers []string `json:"likedByUsers" gorm:"type:jsonb;serializer:json" bson:"likedByUsers"`
	CreatedAt    int64    `json:"createdAt" gorm:"autoCreateTime:false;index" bson:"createdAt"`
}

type CreatePostRequest struct {
	UserId    string   `json:"userId" conform:"trim" binding:"required"`
	Content   string   `json:"content" binding:"required"`
	ImageUrls []string `json:"imageUrls" binding:"omitempty,dive,url"`
	FileUrls  []string `json:"fileUrls" binding:"omitempty,dive,url"`
}

// UpdatePostRequest leaves nil fields untouched.
type UpdatePostRequest struct {
	Content   *string  `json:"content"`
	ImageUrls []string `json:"imageUrls" binding:"omitempty,dive,url"`
	FileUrls  []string `json:"fileUrls" binding:"omitempty,dive,url"`
}

type LikePostResponse struct {
	IsLike bool `json:"isLike"`
	Likes  int  `json:"likes"`
}

type UploadedFile struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	ContentType  string `json:"contentType"`
}
