package realtime

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/models"
	"google.golang.org/api/option"
)

const (
	EventReceiveMessage    = "ReceiveMessage"
	EventMembershipChanged = "MembershipChanged"
)

const maxPreviewLength = 120

// Messenger is the subset of the FCM client the push sink uses.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushSink turns new chat messages into FCM notifications, one topic per
// recipient. Other events are ignored.
type PushSink struct {
	client Messenger
}

func NewFirebaseMessenger(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "initialize firebase")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get messaging client")
	}
	return client, nil
}

func NewPushSink(client Messenger) *PushSink {
	return &PushSink{client: client}
}

func (p *PushSink) Name() string { return "fcm" }

// UserTopic is the FCM topic a user's devices subscribe to.
func UserTopic(userID string) string {
	return "user_" + userID
}

func (p *PushSink) Deliver(ctx context.Context, ev Event) error {
	if ev.Name != EventReceiveMessage || len(ev.Args) < 2 {
		return nil
	}
	msg, ok := ev.Args[1].(*models.Message)
	if !ok {
		return nil
	}

	var failed int
	var lastErr error
	for _, uid := range ev.Recipients {
		if uid == msg.SenderID {
			continue
		}
		_, err := p.client.Send(ctx, &messaging.Message{
			Topic: UserTopic(uid),
			Notification: &messaging.Notification{
				Title: "New message",
				Body:  preview(msg),
			},
			Data: map[string]string{
				"conversationId": msg.ConversationID,
				"senderId":       msg.SenderID,
				"messageId":      msg.ID,
			},
		})
		if err != nil {
			failed++
			lastErr = err
		}
	}
	if lastErr != nil {
		return errors.Wrapf(lastErr, "push failed for %d recipients", failed)
	}
	return nil
}

func preview(msg *models.Message) string {
	if msg.Content == "" {
		return fmt.Sprintf("sent %d attachment(s)", len(msg.Attachments))
	}
	runes := []rune(msg.Content)
	if len(runes) > maxPreviewLength {
		return string(runes[:maxPreviewLength]) + "..."
	}
	return msg.Content
}
