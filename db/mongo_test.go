package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const mongoURIEnv = "QUIZCHAT_TEST_MONGO_URI"

// newMongoTestStores connects to the server named by QUIZCHAT_TEST_MONGO_URI
// and gives the test its own database, dropped on cleanup.
func newMongoTestStores(t *testing.T) *Stores {
	t.Helper()
	uri := os.Getenv(mongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set", mongoURIEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "quizchat_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	m, err := ConnectMongo(ctx, uri, name)
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	s := m.Stores()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.DB.Drop(ctx); err != nil {
			t.Logf("drop %s: %v", name, err)
		}
		_ = s.Close(ctx)
	})
	return s
}
