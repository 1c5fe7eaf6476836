package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
	"gorm.io/gorm"
)

type postRepo struct {
	DB *gorm.DB
}

func NewPostRepo(db *GormDB) PostRepository {
	return &postRepo{db.DB}
}

func (r *postRepo) CreatePost(ctx context.Context, post *models.Post) error {
	if err := r.DB.WithContext(ctx).Create(post).Error; err != nil {
		return errors.Wrap(err, "create post")
	}
	return nil
}

func (r *postRepo) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	post := &models.Post{}
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(post).Error; err != nil {
		return nil, notFound(err, "find post")
	}
	return post, nil
}

// FindPosts pages through the feed newest first. page is 1-based.
func (r *postRepo) FindPosts(ctx context.Context, page, pageSize int) ([]models.Post, error) {
	var posts []models.Post
	err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "find posts")
	}
	return posts, nil
}

func (r *postRepo) UpdatePost(ctx context.Context, post *models.Post) error {
	result := r.DB.WithContext(ctx).Model(post).Select("*").Updates(post)
	if result.Error != nil {
		return errors.Wrap(result.Error, "update post")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
