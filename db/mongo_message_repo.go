package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMongoMessageRepo(m *MongoDB) MessageRepository {
	return &mongoMessageRepo{coll: m.DB.Collection(messagesCollection)}
}

func (r *mongoMessageRepo) SaveMessage(ctx context.Context, msg *models.Message) error {
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return errors.Wrap(err, "save message")
	}
	return nil
}

func (r *mongoMessageRepo) FindMessageByID(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "isDeleted": false}).Decode(msg); err != nil {
		return nil, mongoNotFound(err, "find message")
	}
	return msg, nil
}

func (r *mongoMessageRepo) find(ctx context.Context, filter bson.M, action string) ([]models.Message, error) {
	filter["isDeleted"] = false
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, action)
	}
	msgs := []models.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, action)
	}
	return msgs, nil
}

func (r *mongoMessageRepo) FindMessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	return r.find(ctx, bson.M{"conversationId": conversationID}, "find messages by conversation")
}

func (r *mongoMessageRepo) FindMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"senderId": userA, "receiverId": userB},
		bson.M{"senderId": userB, "receiverId": userA},
	}}, "find messages between users")
}

func (r *mongoMessageRepo) FindUnreadMessages(ctx context.Context, userID string) ([]models.Message, error) {
	return r.find(ctx, bson.M{"receiverId": userID, "isRead": false}, "find unread messages")
}

func (r *mongoMessageRepo) set(ctx context.Context, id, field string, value interface{}, action string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "isDeleted": false},
		bson.M{"$set": bson.M{field: value}},
	)
	return matchedOne(res, err, action)
}

func (r *mongoMessageRepo) MarkAsRead(ctx context.Context, id string) error {
	return r.set(ctx, id, "isRead", true, "mark message read")
}

func (r *mongoMessageRepo) SetPinned(ctx context.Context, id string, pinned bool) error {
	return r.set(ctx, id, "isPinned", pinned, "pin message")
}

func (r *mongoMessageRepo) SoftDeleteMessage(ctx context.Context, id string) error {
	return r.set(ctx, id, "isDeleted", true, "delete message")
}
