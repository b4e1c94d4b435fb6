package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	var e *Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, kind, e.Kind)
	}
}

func TestChannelOperationsRequireSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	anon := Session{}
	ref := ChannelRequest{ChannelId: "c1"}

	ops := map[string]func() error{
		"list dms":       func() error { _, err := svc.ListDMs(ctx, anon); return err },
		"list posts":     func() error { _, err := svc.ListPosts(ctx, anon); return err },
		"get dm channel": func() error { _, err := svc.GetDMChannel(ctx, anon, DMChannelRequest{UserId: 2}); return err },
		"join":           func() error { _, err := svc.Join(ctx, anon, ref); return err },
		"leave":          func() error { _, err := svc.Leave(ctx, anon, ref); return err },
		"mark as read":   func() error { _, err := svc.MarkAsRead(ctx, anon, ref); return err },
		"create message": func() error {
			_, err := svc.CreateMessage(ctx, anon, CreateMessageRequest{ChannelId: "c1", Content: "hi"})
			return err
		},
		"get messages":   func() error { _, err := svc.GetMessages(ctx, anon, GetMessagesRequest{ChannelId: "c1"}); return err },
		"update message": func() error { _, err := svc.UpdateMessage(ctx, anon, UpdateMessageRequest{}); return err },
		"delete message": func() error { _, err := svc.DeleteMessage(ctx, anon, DeleteMessageRequest{}); return err },
		"init upload":    func() error { _, err := svc.InitUpload(ctx, anon, InitUploadRequest{}); return err },
		"complete":       func() error { _, err := svc.CompleteUpload(ctx, anon, CompleteUploadRequest{}); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assertKind(t, op(), KindUnauthorized)
		})
	}
}

func TestListChannels(t *testing.T) {
	svc, deps := newTestService(t)
	conn := newTestConn("conn-1", 1)
	postId := 9

	deps.db.On("ListChannels", 1, "dm", 50).Return([]database.ChannelSummary{
		{
			Channel:     database.Channel{Id: "c1", Type: "dm", UpdatedAt: testNow},
			UnreadCount: 3,
			OtherUser:   &database.User{Id: 2, Username: "bob", EmailAddress: "bob@example.com"},
		},
	}, nil).Once()
	deps.db.On("ListChannels", 1, "post", 50).Return([]database.ChannelSummary{
		{Channel: database.Channel{Id: "p1", Type: "post"}, PostId: &postId},
	}, nil).Once()

	dms, err := svc.ListDMs(context.Background(), sessionFor(conn))
	require.NoError(t, err)
	require.Len(t, dms, 1)
	assert.Equal(t, "c1", dms[0].Id)
	assert.Equal(t, 3, dms[0].UnreadCount)
	assert.Equal(t, "bob", dms[0].OtherUser.Username)
	assert.Empty(t, dms[0].OtherUser.EmailAddress, "other user's email is not exposed")

	posts, err := svc.ListPosts(context.Background(), sessionFor(conn))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, &postId, posts[0].PostId)
	assert.Nil(t, posts[0].OtherUser)
}

func TestListChannelsStoreError(t *testing.T) {
	svc, deps := newTestService(t)
	deps.db.On("ListChannels", 1, "dm", 50).Return([]database.ChannelSummary(nil), errors.New("db down"))

	_, err := svc.ListDMs(context.Background(), sessionFor(newTestConn("conn-1", 1)))
	assertKind(t, err, KindOperationFailed)
	assert.Equal(t, "operation failed", AsError(err).Message)
}

func TestGetDMChannel(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn("conn-1", 1)

	t.Run("self", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.GetDMChannel(ctx, sessionFor(conn), DMChannelRequest{UserId: 1})
		assertKind(t, err, KindValidation)
	})

	t.Run("missing user id", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.GetDMChannel(ctx, sessionFor(conn), DMChannelRequest{})
		assertKind(t, err, KindValidation)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, deps := newTestService(t)
		deps.db.On("GetAccountById", 5).Return(database.User{}, database.ErrNotFound)

		_, err := svc.GetDMChannel(ctx, sessionFor(conn), DMChannelRequest{UserId: 5})
		assertKind(t, err, KindNotFound)
	})

	t.Run("returns shared channel", func(t *testing.T) {
		svc, deps := newTestService(t)
		deps.db.On("GetAccountById", 2).Return(database.User{Id: 2, Username: "bob"}, nil)
		deps.db.On("GetOrCreateDMChannel", 1, 2).Return(database.Channel{Id: "c1", Type: "dm"}, true, nil)
		deps.db.On("GetChannelMember", "c1", 1).Return(database.ChannelMember{ChannelId: "c1", UserId: 1, UnreadCount: 2}, nil)

		ch, err := svc.GetDMChannel(ctx, sessionFor(conn), DMChannelRequest{UserId: 2})
		require.NoError(t, err)
		assert.Equal(t, "c1", ch.Id)
		assert.Equal(t, 2, ch.UnreadCount)
		assert.Equal(t, 2, ch.OtherUser.Id)
	})
}

func TestJoinDM(t *testing.T) {
	ctx := context.Background()

	t.Run("channel not found", func(t *testing.T) {
		svc, deps := newTestService(t)
		deps.db.On("GetChannel", "missing").Return(database.Channel{}, database.ErrNotFound)

		_, err := svc.Join(ctx, sessionFor(newTestConn("conn-1", 1)), ChannelRequest{ChannelId: "missing"})
		assertKind(t, err, KindNotFound)
	})

	t.Run("not a member", func(t *testing.T) {
		svc, deps := newTestService(t)
		conn := newTestConn("conn-1", 3)
		deps.db.On("GetChannel", "c1").Return(database.Channel{Id: "c1", Type: "dm"}, nil)
		deps.db.On("GetChannelMember", "c1", 3).Return(database.ChannelMember{}, database.ErrNotFound)

		_, err := svc.Join(ctx, sessionFor(conn), ChannelRequest{ChannelId: "c1"})
		assertKind(t, err, KindNotFound)
		assert.Equal(t, "not a member of this channel", err.Error())
		assert.Empty(t, deps.rooms.RoomsOf(conn))
	})

	t.Run("joining twice broadcasts once", func(t *testing.T) {
		svc, deps := newTestService(t)
		conn := newTestConn("conn-1", 1)
		observer := newTestConn("conn-2", 2)
		deps.rooms.Join(observer, rooms.DMChannelRoom("c1"))

		deps.db.On("GetChannel", "c1").Return(database.Channel{Id: "c1", Type: "dm"}, nil)
		deps.db.On("GetChannelMember", "c1", 1).Return(database.ChannelMember{ChannelId: "c1", UserId: 1}, nil)

		for i := 0; i < 2; i++ {
			ch, err := svc.Join(ctx, sessionFor(conn), ChannelRequest{ChannelId: "c1"})
			require.NoError(t, err)
			assert.Equal(t, "c1", ch.Id)
		}

		assert.Equal(t, []string{EventChannelJoined}, observer.eventNames())
		assert.Equal(t, MembershipEvent{ChannelId: "c1", UserId: 1}, observer.lastEvent().Data)
		assert.Equal(t, []string{"dm_channel:c1"}, deps.rooms.RoomsOf(conn))
	})
}

func TestJoinAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	svc, deps := newTestService(t)
	alice := newTestConn("conn-a", 1)
	bob := newTestConn("conn-b", 2)
	deps.rooms.Join(alice, rooms.DMChannelRoom("c1"))
	deps.rooms.Join(bob, rooms.UserRoom(2))

	// bob disconnects while his join is still queued
	bob.closed.Store(true)
	deps.rooms.LeaveAll(bob)

	deps.db.On("GetChannel", "c1").Return(database.Channel{Id: "c1", Type: "dm"}, nil)
	deps.db.On("GetChannelMember", "c1", 2).Return(database.ChannelMember{ChannelId: "c1", UserId: 2}, nil)

	_, err := svc.Join(ctx, sessionFor(bob), ChannelRequest{ChannelId: "c1"})
	require.NoError(t, err)
	assert.Empty(t, deps.rooms.RoomsOf(bob))
	assert.Equal(t, []int{1}, deps.rooms.MembersOf(rooms.DMChannelRoom("c1")))
	assert.Empty(t, alice.eventNames(), "no joined event for a closed connection")

	deps.db.On("GetChannelMember", "c1", 1).Return(database.ChannelMember{ChannelId: "c1", UserId: 1}, nil)
	deps.docs.On("Insert", mock.Anything).Return(docstore.Message{Id: "m1", ChannelId: "c1", ChannelType: "dm", AuthorId: 1, Content: "hi", CreatedAt: testNow}, nil)
	deps.db.On("LinkMessageAttachments", "m1", 1, []string{}).Return(nil)
	deps.db.On("TouchChannel", "c1", testNow).Return(nil)
	deps.db.On("IncrementUnread", "c1", []int{1}).Return(int64(1), nil).Once()

	_, err = svc.CreateMessage(ctx, sessionFor(alice), CreateMessageRequest{ChannelId: "c1", Content: "hi"})
	require.NoError(t, err)
}

func TestJoinPost(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		markerErr error
		created   bool
	}{
		{"first join creates marker", nil, true},
		{"marker already present", nil, false},
		{"racing marker insert", &pq.Error{Code: "23505"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t)
			conn := newTestConn("conn-1", 4)

			deps.db.On("GetChannel", "p1").Return(database.Channel{Id: "p1", Type: "post"}, nil)
			deps.db.On("AddChannelMember", "p1", 4).Return(tt.created, nil)
			deps.db.On("CreateRecentPostMarker", "p1", 4).Return(tt.created, tt.markerErr)
			deps.db.On("GetChannelMember", "p1", 4).Return(database.ChannelMember{ChannelId: "p1", UserId: 4}, nil)

			ch, err := svc.Join(ctx, sessionFor(conn), ChannelRequest{ChannelId: "p1"})
			require.NoError(t, err)
			assert.Equal(t, "p1", ch.Id)
			assert.Equal(t, []string{"channel:p1"}, deps.rooms.RoomsOf(conn))
			assert.Equal(t, []string{EventChannelJoined}, conn.eventNames())
		})
	}

	t.Run("membership failure", func(t *testing.T) {
		svc, deps := newTestService(t)
		conn := newTestConn("conn-1", 4)

		deps.db.On("GetChannel", "p1").Return(database.Channel{Id: "p1", Type: "post"}, nil)
		deps.db.On("AddChannelMember", "p1", 4).Return(false, errors.New("timeout"))

		_, err := svc.Join(ctx, sessionFor(conn), ChannelRequest{ChannelId: "p1"})
		assertKind(t, err, KindOperationFailed)
		assert.Empty(t, deps.rooms.RoomsOf(conn))
	})
}

func TestLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("not joined", func(t *testing.T) {
		svc, deps := newTestService(t)
		conn := newTestConn("conn-1", 1)
		observer := newTestConn("conn-2", 2)
		deps.rooms.Join(observer, rooms.ChannelRoom("p1"))

		res, err := svc.Leave(ctx, sessionFor(conn), ChannelRequest{ChannelId: "p1"})
		require.NoError(t, err)
		assert.Equal(t, "p1", res.ChannelId)
		assert.Empty(t, observer.eventNames())
	})

	t.Run("joined", func(t *testing.T) {
		svc, deps := newTestService(t)
		conn := newTestConn("conn-1", 1)
		observer := newTestConn("conn-2", 2)
		deps.rooms.Join(conn, rooms.ChannelRoom("p1"))
		deps.rooms.Join(observer, rooms.ChannelRoom("p1"))

		_, err := svc.Leave(ctx, sessionFor(conn), ChannelRequest{ChannelId: "p1"})
		require.NoError(t, err)
		assert.Equal(t, []string{EventChannelLeft}, observer.eventNames())
		assert.Empty(t, conn.eventNames(), "the leaving connection is no longer in the room")
		assert.Empty(t, deps.rooms.RoomsOf(conn))

		_, err = svc.Leave(ctx, sessionFor(conn), ChannelRequest{ChannelId: "p1"})
		require.NoError(t, err)
		assert.Len(t, observer.eventNames(), 1, "second leave is silent")
	})

	t.Run("missing channel id", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Leave(ctx, sessionFor(newTestConn("conn-1", 1)), ChannelRequest{})
		assertKind(t, err, KindValidation)
	})
}

func TestMarkAsRead(t *testing.T) {
	ctx := context.Background()

	t.Run("resets unread count", func(t *testing.T) {
		svc, deps := newTestService(t)
		conn := newTestConn("conn-1", 1)
		otherTab := newTestConn("conn-2", 1)
		peer := newTestConn("conn-3", 2)
		deps.rooms.Join(conn, rooms.UserRoom(1))
		deps.rooms.Join(otherTab, rooms.UserRoom(1))
		deps.rooms.Join(peer, rooms.UserRoom(2))
		deps.rooms.Join(peer, rooms.DMChannelRoom("c1"))

		readAt := testNow
		deps.db.On("MarkChannelRead", "c1", 1, testNow).
			Return(database.ChannelMember{ChannelId: "c1", UserId: 1, UnreadCount: 0, LastReadAt: &readAt}, nil)

		state, err := svc.MarkAsRead(ctx, sessionFor(conn), ChannelRequest{ChannelId: "c1"})
		require.NoError(t, err)
		assert.Equal(t, ReadState{ChannelId: "c1", LastReadAt: testNow}, state)

		assert.Equal(t, []string{EventChannelMarkedAsRead}, conn.eventNames())
		assert.Equal(t, []string{EventChannelMarkedAsRead}, otherTab.eventNames())
		assert.Empty(t, peer.eventNames(), "read state is private to the member")
	})

	t.Run("not a member", func(t *testing.T) {
		svc, deps := newTestService(t)
		deps.db.On("MarkChannelRead", "c1", 3, testNow).Return(database.ChannelMember{}, database.ErrNotFound)

		_, err := svc.MarkAsRead(ctx, sessionFor(newTestConn("conn-1", 3)), ChannelRequest{ChannelId: "c1"})
		assertKind(t, err, KindNotFound)
	})
}
