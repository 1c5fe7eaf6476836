package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoConversationRepo struct {
	coll *mongo.Collection
}

func NewMongoConversationRepo(m *MongoDB) ConversationRepository {
	return &mongoConversationRepo{coll: m.DB.Collection(conversationsCollection)}
}

func (r *mongoConversationRepo) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if _, err := r.coll.InsertOne(ctx, conv); err != nil {
		return errors.Wrap(err, "create conversation")
	}
	return nil
}

func (r *mongoConversationRepo) findOne(ctx context.Context, filter bson.M, action string, opts ...*options.FindOneOptions) (*models.Conversation, error) {
	filter["isDeleted"] = false
	conv := &models.Conversation{}
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(conv); err != nil {
		return nil, mongoNotFound(err, action)
	}
	return conv, nil
}

func (r *mongoConversationRepo) FindConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find conversation")
}

func (r *mongoConversationRepo) FindDirectConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	return r.findOne(ctx, bson.M{
		"type":    models.ConversationTypeDirect,
		"members": bson.M{"$all": []string{userA, userB}},
	}, "find direct conversation", options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *mongoConversationRepo) FindConversationsByMember(ctx context.Context, userID string) ([]models.Conversation, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"members": userID, "isDeleted": false},
		options.Find().SetSort(bson.D{{Key: "lastMessageTime", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "find conversations by member")
	}
	convs := []models.Conversation{}
	if err := cur.All(ctx, &convs); err != nil {
		return nil, errors.Wrap(err, "decode conversations")
	}
	return convs, nil
}

func (r *mongoConversationRepo) FindConversationByJoinCode(ctx context.Context, code string) (*models.Conversation, error) {
	return r.findOne(ctx, bson.M{"joinCode": code, "type": models.ConversationTypeGroup}, "find conversation by join code")
}

func (r *mongoConversationRepo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"joinCode": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "check join code")
	}
	return n > 0, nil
}

func (r *mongoConversationRepo) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": conv.ID}, conv)
	if err != nil {
		return errors.Wrap(err, "update conversation")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoConversationRepo) UpdateLastMessage(ctx context.Context, id, content string, at int64) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"lastMessage":     content,
		"lastMessageTime": at,
		"updatedAt":       at,
	}})
	return matchedOne(res, err, "update last message")
}

func (r *mongoConversationRepo) SoftDeleteConversation(ctx context.Context, id string, at int64) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "isDeleted": false},
		bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": at}},
	)
	return matchedOne(res, err, "delete conversation")
}
