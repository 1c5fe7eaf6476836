package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPostRepo struct {
	coll *mongo.Collection
}

func NewMongoPostRepo(m *MongoDB) PostRepository {
	return &mongoPostRepo{coll: m.DB.Collection(postsCollection)}
}

func (r *mongoPostRepo) CreatePost(ctx context.Context, post *models.Post) error {
	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return errors.Wrap(err, "create post")
	}
	return nil
}

func (r *mongoPostRepo) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	post := &models.Post{}
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(post); err != nil {
		return nil, mongoNotFound(err, "find post")
	}
	return post, nil
}

func (r *mongoPostRepo) FindPosts(ctx context.Context, page, pageSize int) ([]models.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find posts")
	}
	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, errors.Wrap(err, "decode posts")
	}
	return posts, nil
}

func (r *mongoPostRepo) UpdatePost(ctx context.Context, post *models.Post) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": post.ID}, post)
	if err != nil {
		return errors.Wrap(err, "update post")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
