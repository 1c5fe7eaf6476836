package services

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/config"
	"github.com/techagentng/quizchat/db"
	"github.com/techagentng/quizchat/models"
)

type sentEvent struct {
	name       string
	recipients []string
	args       []interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeBroadcaster) Send(event string, recipients []string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{name: event, recipients: recipients, args: args})
}

func (f *fakeBroadcaster) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (f *fakeBroadcaster) last() sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

type testEnv struct {
	stores        *db.Stores
	broadcaster   *fakeBroadcaster
	conversations ConversationService
	messages      MessageService
	posts         PostService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	g, err := db.OpenSQLite("file::memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stores := g.Stores()
	t.Cleanup(func() { _ = stores.Close(context.Background()) })

	conf := &config.Config{JoinCodeRetries: 5}
	b := &fakeBroadcaster{}
	logger := zerolog.Nop()
	convs := NewConversationService(stores.Conversations, b, logger, conf)
	return &testEnv{
		stores:        stores,
		broadcaster:   b,
		conversations: convs,
		messages:      NewMessageService(stores.Messages, stores.Conversations, convs, b, logger, conf),
		posts:         NewPostService(stores.Posts, logger, conf),
	}
}

func (e *testEnv) group(t *testing.T, creator string, maxMembers *int, members ...string) *models.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, apiErr := e.conversations.CreateGroup(ctx, &models.CreateGroupRequest{Name: "Team", CreatorID: creator, MaxMembers: maxMembers})
	if apiErr != nil {
		t.Fatalf("create group: %v", apiErr)
	}
	if len(members) > 0 {
		if _, apiErr := e.conversations.AddMembers(ctx, conv.ID, creator, members); apiErr != nil {
			t.Fatalf("add members: %v", apiErr)
		}
	}
	return e.reload(t, conv.ID)
}

func (e *testEnv) reload(t *testing.T, id string) *models.Conversation {
	t.Helper()
	conv, err := e.stores.Conversations.FindConversationByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return conv
}

func intPtr(v int) *int { return &v }

// assertInvariants checks the membership rules that must hold after every mutation.
func assertInvariants(t *testing.T, conv *models.Conversation) {
	t.Helper()
	members := map[string]bool{}
	for _, m := range conv.Members {
		if members[m] {
			t.Errorf("duplicate member %s", m)
		}
		members[m] = true
	}
	for _, a := range conv.Admins {
		if !members[a] {
			t.Errorf("admin %s is not a member", a)
		}
	}
	for _, b := range conv.BannedMembers {
		if members[b] {
			t.Errorf("banned user %s is still a member", b)
		}
	}
	if len(conv.Members) > conv.MaxMembers {
		t.Errorf("%d members exceed max %d", len(conv.Members), conv.MaxMembers)
	}
	if conv.IsGroup() && !containsID(conv.Admins, conv.CreatorID) {
		t.Errorf("creator %s is not an admin", conv.CreatorID)
	}
}
