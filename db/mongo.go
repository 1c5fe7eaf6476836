package db

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	postsCollection         = "posts"
)

type MongoDB struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func ConnectMongo(ctx context.Context, uri, database string) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "ping mongo")
	}
	m := &MongoDB{Client: client, DB: client.Database(database)}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	collections := map[string][]mongo.IndexModel{
		conversationsCollection: {
			{Keys: bson.D{{Key: "members", Value: 1}, {Key: "lastMessageTime", Value: -1}}},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "members", Value: 1}}},
			{
				Keys:    bson.D{{Key: "joinCode", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}}},
			{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "isRead", Value: 1}}},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}
	for name, indexes := range collections {
		if _, err := m.DB.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return errors.Wrapf(err, "create %s indexes", name)
		}
	}
	return nil
}

func (m *MongoDB) Stores() *Stores {
	return &Stores{
		Conversations: NewMongoConversationRepo(m),
		Messages:      NewMongoMessageRepo(m),
		Posts:         NewMongoPostRepo(m),
		close:         m.Client.Disconnect,
	}
}

func mongoNotFound(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return errors.Wrap(err, action)
}

// matchedOne turns an update result into ErrNotFound when nothing matched.
func matchedOne(res *mongo.UpdateResult, err error, action string) error {
	if err != nil {
		return errors.Wrap(err, action)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
