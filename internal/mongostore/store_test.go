package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/internal/storage/storetest"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

// Runs only against a live server: MONGODB_TEST_URL=mongodb://localhost:27017 go test ./internal/mongostore
func TestStore_Suite(t *testing.T) {
	url := os.Getenv("MONGODB_TEST_URL")
	if url == "" {
		t.Skip("MONGODB_TEST_URL not set")
	}

	conn, err := Connect(context.Background(), url, "celerix_messages_test", "unused", 5*time.Second, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(conn.client, "celerix_messages_test", "messages_"+uuid.NewString(), logger.Nop())
		t.Cleanup(func() { _ = s.coll.Drop(context.Background()) })
		return s
	})
}

func TestToBSON_SortsKeys(t *testing.T) {
	d := toBSON(store.Filter{"type": "INFO", "date": "2023-01-01"})
	require.Len(t, d, 2)
	require.Equal(t, "date", d[0].Key)
	require.Equal(t, "type", d[1].Key)
}
