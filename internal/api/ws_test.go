package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/objstore"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/server"
	"github.com/npezzotti/gosocial/internal/stats"
	"github.com/npezzotti/gosocial/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWsTestServer serves the app over a real listener with a chat server
// backed by an in-process room manager.
func newWsTestServer(t *testing.T) (*testApp, *rooms.Local, string) {
	logger := testutil.TestLogger(t)

	su := stats.NewPermissiveMock()

	local := rooms.NewLocal(logger)
	svc := chat.NewService(chat.Options{
		DB:      &database.MockGoSocialRepository{},
		Docs:    &docstore.MockMessageStore{},
		Objects: &objstore.MockObjectStore{},
		Rooms:   local,
		Stats:   su,
		Logger:  logger,
	})
	cs := server.NewChatServer(logger, svc, su, server.Options{Workers: 2, QueueSize: 8})
	t.Cleanup(func() { cs.Shutdown(context.Background()) })

	app := newTestApp(t, cs)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	return app, local, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func Test_serveWs(t *testing.T) {
	t.Run("rejects handshake without token", func(t *testing.T) {
		_, _, url := newWsTestServer(t)

		_, resp, err := websocket.DefaultDialer.Dial(url, nil)

		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		app, _, url := newWsTestServer(t)
		token, err := app.tokens.Issue(7, -time.Minute)
		require.NoError(t, err)

		_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)

		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects deleted user", func(t *testing.T) {
		app, _, url := newWsTestServer(t)
		app.db.On("GetAccountById", 7).Return(database.User{}, database.ErrNotFound).Once()
		token, err := app.tokens.Issue(7, time.Hour)
		require.NoError(t, err)

		_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)

		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects disallowed origin", func(t *testing.T) {
		app, _, url := newWsTestServer(t)
		app.db.On("GetAccountById", 7).Return(testUser, nil).Once()
		token, err := app.tokens.Issue(7, time.Hour)
		require.NoError(t, err)

		header := http.Header{}
		header.Set("Origin", "http://evil.example.com")
		_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, header)

		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("upgrades with query token and joins user room", func(t *testing.T) {
		app, local, url := newWsTestServer(t)
		app.db.On("GetAccountById", 7).Return(testUser, nil).Once()
		token, err := app.tokens.Issue(7, time.Hour)
		require.NoError(t, err)

		conn, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		assert.Eventually(t, func() bool {
			return len(local.MembersOf(rooms.UserRoom(7))) == 1
		}, time.Second, 5*time.Millisecond, "expected connection to join its user room")
	})
}
