package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	done   chan struct{}
}

func newRecordingSink(err error) *recordingSink {
	return &recordingSink{err: err, done: make(chan struct{}, 16)}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(ctx context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDispatcherFansOutToEverySink(t *testing.T) {
	ok := newRecordingSink(nil)
	failing := newRecordingSink(errors.New("boom"))
	d := NewDispatcher(zerolog.Nop(), ok, failing)

	d.Send(EventReceiveMessage, []string{"u1", "u2"}, "u1", "hello")
	waitFor(t, ok.done)
	waitFor(t, failing.done)

	ok.mu.Lock()
	defer ok.mu.Unlock()
	if len(ok.events) != 1 {
		t.Fatalf("expected one event, got %d", len(ok.events))
	}
	ev := ok.events[0]
	if ev.Name != EventReceiveMessage || len(ev.Args) != 2 || len(ev.Recipients) != 2 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestDispatcherDropsSendsAfterShutdown(t *testing.T) {
	sink := newRecordingSink(nil)
	d := NewDispatcher(zerolog.Nop(), sink)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	d.Send("late", nil)

	select {
	case <-sink.done:
		t.Fatal("event delivered after shutdown")
	case <-time.After(50 * time.Millisecond):
	}
}

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(r.URL.Query().Get("userId"), conn).ReadPump()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestHubDeliversOnlyToRecipients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice := dialHub(t, hub, "alice")
	bob := dialHub(t, hub, "bob")

	err := hub.Deliver(context.Background(), Event{
		Name:       EventReceiveMessage,
		Args:       []interface{}{"carol", "hi"},
		Recipients: []string{"alice"},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := alice.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got frame
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if got.Event != EventReceiveMessage || len(got.Args) != 2 || got.Args[0] != "carol" {
		t.Errorf("unexpected frame %s", data)
	}

	_ = bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Error("bob should not receive a frame addressed to alice")
	}
}

func TestHubBroadcastsToAllWithoutRecipients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conns := []*websocket.Conn{dialHub(t, hub, "a"), dialHub(t, hub, "b")}

	if err := hub.Deliver(context.Background(), Event{Name: "ping", Args: []interface{}{}}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	for _, c := range conns {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := c.ReadMessage(); err != nil {
			t.Errorf("expected broadcast frame: %v", err)
		}
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := dialHub(t, hub, "gone")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected("gone") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []*messaging.Message
}

func (f *fakeMessenger) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return "id", nil
}

func TestPushSinkSkipsSenderAndOtherEvents(t *testing.T) {
	fm := &fakeMessenger{}
	sink := NewPushSink(fm)
	msg := &models.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Content: "hello"}

	err := sink.Deliver(context.Background(), Event{
		Name:       EventReceiveMessage,
		Args:       []interface{}{"u1", msg},
		Recipients: []string{"u1", "u2", "u3"},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(fm.sent) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(fm.sent))
	}
	if fm.sent[0].Topic != UserTopic("u2") || fm.sent[0].Notification.Body != "hello" {
		t.Errorf("unexpected push %+v", fm.sent[0])
	}

	if err := sink.Deliver(context.Background(), Event{Name: EventMembershipChanged, Recipients: []string{"u2"}}); err != nil {
		t.Fatalf("deliver membership event: %v", err)
	}
	if len(fm.sent) != 2 {
		t.Errorf("membership events must not be pushed")
	}
}
