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
	"github.com/techagentng/quizchat/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type PostService interface {
	CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.Post, *apiError.Error)
	GetPost(ctx context.Context, id string) (*models.Post, *apiError.Error)
	GetPosts(ctx context.Context, page, pageSize int) ([]models.Post, *apiError.Error)
	UpdatePost(ctx context.Context, id string, req *models.UpdatePostRequest) (*models.Post, *apiError.Error)
	LikePost(ctx context.Context, postID, userID string) (*models.LikePostResponse, *apiError.Error)
	UnlikePost(ctx context.Context, postID, userID string) (*models.LikePostResponse, *apiError.Error)
}

type postService struct {
	Config   *config.Config
	postRepo db.PostRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewPostService(postRepo db.PostRepository, logger zerolog.Logger, conf *config.Config) PostService {
	return &postService{
		Config:   conf,
		postRepo: postRepo,
		logger:   logger.With().Str("service", "post").Logger(),
		now:      time.Now,
	}
}

func (s *postService) storageFailure(err error, action, postID string) *apiError.Error {
	s.logger.Error().Err(err).Str("post_id", postID).Msgf("unable to %s", action)
	return apiError.Storage(action)
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func (s *postService) CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.Post, *apiError.Error) {
	if strings.TrimSpace(req.UserId) == "" {
		return nil, apiError.Validation("userId is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apiError.Validation("content is required")
	}
	post := &models.Post{
		ID:           uuid.NewString(),
		UserID:       strings.TrimSpace(req.UserId),
		Content:      req.Content,
		ImageUrls:    orEmpty(req.ImageUrls),
		FileUrls:     orEmpty(req.FileUrls),
		LikedByUsers: []string{},
		CreatedAt:    s.now().Unix(),
	}
	if err := s.postRepo.CreatePost(ctx, post); err != nil {
		return nil, s.storageFailure(err, "create post", post.ID)
	}
	return post, nil
}

func (s *postService) GetPost(ctx context.Context, id string) (*models.Post, *apiError.Error) {
	if strings.TrimSpace(id) == "" {
		return nil, apiError.Validation("postId is required")
	}
	post, err := s.postRepo.FindPostByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apiError.NotFound("post not found")
	}
	if err != nil {
		return nil, s.storageFailure(err, "load post", id)
	}
	return post, nil
}

func (s *postService) GetPosts(ctx context.Context, page, pageSize int) ([]models.Post, *apiError.Error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	posts, err := s.postRepo.FindPosts(ctx, page, pageSize)
	if err != nil {
		return nil, s.storageFailure(err, "list posts", "")
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func (s *postService) UpdatePost(ctx context.Context, id string, req *models.UpdatePostRequest) (*models.Post, *apiError.Error) {
	post, apiErr := s.GetPost(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			return nil, apiError.Validation("content cannot be empty")
		}
		post.Content = *req.Content
	}
	if req.ImageUrls != nil {
		post.ImageUrls = req.ImageUrls
	}
	if req.FileUrls != nil {
		post.FileUrls = req.FileUrls
	}
	if err := s.postRepo.UpdatePost(ctx, post); err != nil {
		return nil, s.storageFailure(err, "update post", id)
	}
	return post, nil
}

func (s *postService) LikePost(ctx context.Context, postID, userID string) (*models.LikePostResponse, *apiError.Error) {
	return s.toggleLike(ctx, postID, userID, true)
}

func (s *postService) UnlikePost(ctx context.Context, postID, userID string) (*models.LikePostResponse, *apiError.Error) {
	return s.toggleLike(ctx, postID, userID, false)
}

// toggleLike is a read-modify-write on likedByUsers; concurrent likes on
// the same post can lose one another.
func (s *postService) toggleLike(ctx context.Context, postID, userID string, like bool) (*models.LikePostResponse, *apiError.Error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apiError.Validation("userId is required")
	}
	post, apiErr := s.GetPost(ctx, postID)
	if apiErr != nil {
		return nil, apiErr
	}

	liked := containsID(post.LikedByUsers, userID)
	switch {
	case like && liked:
		return nil, apiError.Validation("you have already liked this post")
	case !like && !liked:
		return nil, apiError.Validation("you have not liked this post")
	case like:
		post.LikedByUsers = append(post.LikedByUsers, userID)
	default:
		post.LikedByUsers = withoutID(post.LikedByUsers, userID)
	}
	post.Likes = len(post.LikedByUsers)

	if err := s.postRepo.UpdatePost(ctx, post); err != nil {
		return nil, s.storageFailure(err, "update likes", postID)
	}
	return &models.LikePostResponse{IsLike: like, Likes: post.Likes}, nil
}
