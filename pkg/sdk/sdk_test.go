package sdk_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-messages/internal/api"
	"github.com/celerix-dev/celerix-messages/internal/engine"
	"github.com/celerix-dev/celerix-messages/internal/messages"
	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/internal/server"
	"github.com/celerix-dev/celerix-messages/pkg/sdk"
)

func newRouter() http.Handler {
	gin.SetMode(gin.TestMode)
	ms := engine.NewMemStore("SynapseOS", "POC-OMI", nil, nil, logger.Nop())
	h := api.NewHandler(messages.NewService(ms, logger.Nop()), logger.Nop())
	return server.NewRouter(server.RouterConfig{Handler: h, Log: logger.Nop(), CORSOrigins: []string{"*"}})
}

func startServer(t *testing.T) *sdk.Client {
	t.Helper()
	ts := httptest.NewServer(newRouter())
	t.Cleanup(ts.Close)

	c, err := sdk.New(ts.URL)
	require.NoError(t, err)
	return c
}

func TestClient_Lifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := startServer(t)

	req.NoError(c.Ping(ctx))

	created, err := c.CreateMessage(ctx, sdk.MessageInput{Date: "2023-03-01", Message: "hello", Type: "INFO"})
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal("hello", created.Message)

	got, err := c.GetMessage(ctx, created.ID)
	req.NoError(err)
	req.Equal(created, got)

	kind := "ERROR"
	updated, err := c.UpdateMessage(ctx, created.ID, sdk.MessagePatch{Type: &kind})
	req.NoError(err)
	req.Equal("ERROR", updated.Type)
	req.Equal("2023-03-01", updated.Date)

	msg, err := c.DeleteMessage(ctx, created.ID)
	req.NoError(err)
	req.Equal("Message with ID "+created.ID+" deleted successfully", msg)

	_, err = c.GetMessage(ctx, created.ID)
	req.True(sdk.IsNotFound(err))
}

func TestClient_ListAndAdmin(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := startServer(t)

	seed, err := c.SeedTestData(ctx)
	req.NoError(err)
	req.Equal(20, seed.Inserted)

	page, err := c.ListMessages(ctx, sdk.ListOptions{})
	req.NoError(err)
	req.False(page.Degraded)
	req.Len(page.Items, 10)

	page, err = c.ListMessages(ctx, sdk.ListOptions{Type: "DEBUG", Limit: 2, Skip: 1})
	req.NoError(err)
	req.Len(page.Items, 2)
	for _, m := range page.Items {
		req.Equal("DEBUG", m.Type)
	}

	types, err := c.ListTypes(ctx)
	req.NoError(err)
	req.ElementsMatch(seed.Types, types)

	dates, err := c.ListDates(ctx)
	req.NoError(err)
	req.ElementsMatch(seed.Dates, dates)

	info, err := c.DatabaseInfo(ctx)
	req.NoError(err)
	req.Equal("SynapseOS", info.DatabaseName)
	req.EqualValues(20, info.DocumentCount)

	rep, err := c.Repair(ctx)
	req.NoError(err)
	req.Equal(20, rep.Total)
	req.Zero(rep.Repaired)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	c := startServer(t)

	_, err := c.GetMessage(context.Background(), "not-an-id")
	var apiErr *sdk.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "invalid_id", apiErr.Code)
	require.Contains(t, apiErr.Message, "invalid message ID format")
	require.False(t, sdk.IsNotFound(err))
}

func TestClient_RetriesGet(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			// Drop the connection to force a transport error.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["INFO"]`))
	}))
	defer ts.Close()

	c, err := sdk.New(ts.URL)
	require.NoError(t, err)
	c.Backoff = time.Millisecond

	types, err := c.ListTypes(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"INFO"}, types)
	require.EqualValues(t, 3, hits.Load())
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := sdk.New("http://" + addr)
	require.NoError(t, err)
	c.Backoff = time.Millisecond

	_, err = c.CreateMessage(context.Background(), sdk.MessageInput{Date: "d", Message: "m", Type: "t"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 1 attempt(s)")
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := sdk.New("tcp://localhost:7001")
	require.Error(t, err)
}

func TestClient_InsecureTLSLeavesSharedClientAlone(t *testing.T) {
	ts := httptest.NewTLSServer(newRouter())
	t.Cleanup(ts.Close)
	ctx := context.Background()

	shared := &http.Client{Timeout: 5 * time.Second}
	orders := map[string][]sdk.Option{
		"insecure last":  {sdk.WithHTTPClient(shared), sdk.WithInsecureTLS()},
		"insecure first": {sdk.WithInsecureTLS(), sdk.WithHTTPClient(shared)},
		"default client": {sdk.WithHTTPClient(http.DefaultClient), sdk.WithInsecureTLS()},
	}
	for name, opts := range orders {
		t.Run(name, func(t *testing.T) {
			c, err := sdk.New(ts.URL, opts...)
			require.NoError(t, err)
			require.NoError(t, c.Ping(ctx))
		})
	}
	require.Nil(t, shared.Transport)
	require.Nil(t, http.DefaultClient.Transport)

	strict, err := sdk.New(ts.URL, sdk.WithHTTPClient(shared))
	require.NoError(t, err)
	require.Error(t, strict.Ping(ctx))
}
