package chat

import (
	"context"
	"errors"
	"time"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/types"
)

const channelListLimit = 50

type ChannelRequest struct {
	ChannelId string `json:"channel_id"`
}

func (r ChannelRequest) validate() error {
	if r.ChannelId == "" {
		return ErrValidation("channel_id is required")
	}
	return nil
}

type DMChannelRequest struct {
	UserId int `json:"user_id"`
}

type MembershipEvent struct {
	ChannelId string `json:"channel_id"`
	UserId    int    `json:"user_id"`
}

type ReadState struct {
	ChannelId  string    `json:"channel_id"`
	LastReadAt time.Time `json:"last_read_at"`
}

func (s *Service) ListDMs(ctx context.Context, sess Session) ([]types.Channel, error) {
	return s.listChannels(ctx, sess, database.ChannelTypeDM)
}

func (s *Service) ListPosts(ctx context.Context, sess Session) ([]types.Channel, error) {
	return s.listChannels(ctx, sess, database.ChannelTypePost)
}

func (s *Service) listChannels(ctx context.Context, sess Session, channelType string) ([]types.Channel, error) {
	if !sess.authenticated() {
		return nil, ErrUnauthorized()
	}

	summaries, err := s.db.ListChannels(ctx, sess.UserId, channelType, channelListLimit)
	if err != nil {
		return nil, ErrOperationFailed(err)
	}

	channels := make([]types.Channel, 0, len(summaries))
	for _, cs := range summaries {
		channels = append(channels, toChannelSummary(cs))
	}

	return channels, nil
}

// GetDMChannel returns the dm channel between the caller and another user,
// creating it on first use.
func (s *Service) GetDMChannel(ctx context.Context, sess Session, req DMChannelRequest) (types.Channel, error) {
	if !sess.authenticated() {
		return types.Channel{}, ErrUnauthorized()
	}

	if req.UserId <= 0 {
		return types.Channel{}, ErrValidation("user_id is required")
	}
	if req.UserId == sess.UserId {
		return types.Channel{}, ErrValidation("cannot open a dm with yourself")
	}

	other, err := s.db.GetAccountById(ctx, req.UserId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Channel{}, ErrNotFound("user")
		}
		return types.Channel{}, ErrOperationFailed(err)
	}

	ch, created, err := s.db.GetOrCreateDMChannel(ctx, sess.UserId, other.Id)
	if err != nil {
		return types.Channel{}, ErrOperationFailed(err)
	}
	if created {
		s.log.Printf("created dm channel %s for users %d and %d", ch.Id, sess.UserId, other.Id)
	}

	member, err := s.db.GetChannelMember(ctx, ch.Id, sess.UserId)
	if err != nil {
		return types.Channel{}, ErrOperationFailed(err)
	}

	out := ToChannel(ch, &member)
	out.OtherUser = &types.User{Id: other.Id, Username: other.Username}

	return out, nil
}

// Join subscribes the connection to the channel's room. Post channels grant
// membership on first join; dm channels require it.
func (s *Service) Join(ctx context.Context, sess Session, req ChannelRequest) (types.Channel, error) {
	if !sess.authenticated() {
		return types.Channel{}, ErrUnauthorized()
	}
	if err := req.validate(); err != nil {
		return types.Channel{}, err
	}

	ch, err := s.getChannel(ctx, req.ChannelId)
	if err != nil {
		return types.Channel{}, err
	}

	if ch.Type == database.ChannelTypePost {
		if err := s.grantPostMembership(ctx, ch.Id, sess.UserId); err != nil {
			return types.Channel{}, err
		}
	}

	member, err := s.requireMember(ctx, ch.Id, sess.UserId)
	if err != nil {
		return types.Channel{}, err
	}

	room := rooms.ForChannel(ch.Type, ch.Id)
	if s.rooms.Join(sess.Conn, room) {
		s.rooms.Broadcast(room, EventChannelJoined, MembershipEvent{ChannelId: ch.Id, UserId: sess.UserId})
	}

	return ToChannel(ch, &member), nil
}

func (s *Service) grantPostMembership(ctx context.Context, channelId string, userId int) error {
	if _, err := s.db.AddChannelMember(ctx, channelId, userId); err != nil && !database.IsUniqueViolation(err) {
		return ErrOperationFailed(err)
	}

	created, err := s.db.CreateRecentPostMarker(ctx, channelId, userId)
	if err != nil {
		if database.IsUniqueViolation(err) {
			// a concurrent join recorded the marker first
			return nil
		}
		return ErrOperationFailed(err)
	}
	if created {
		s.log.Printf("user %d joined post channel %s for the first time", userId, channelId)
	}

	return nil
}

// Leave unsubscribes the connection from the channel's room. Membership is
// not affected.
func (s *Service) Leave(ctx context.Context, sess Session, req ChannelRequest) (ChannelRequest, error) {
	if !sess.authenticated() {
		return ChannelRequest{}, ErrUnauthorized()
	}
	if err := req.validate(); err != nil {
		return ChannelRequest{}, err
	}

	for _, room := range []string{rooms.DMChannelRoom(req.ChannelId), rooms.ChannelRoom(req.ChannelId)} {
		if s.rooms.Leave(sess.Conn, room) {
			s.rooms.Broadcast(room, EventChannelLeft, MembershipEvent{ChannelId: req.ChannelId, UserId: sess.UserId})
		}
	}

	return req, nil
}

func (s *Service) MarkAsRead(ctx context.Context, sess Session, req ChannelRequest) (ReadState, error) {
	if !sess.authenticated() {
		return ReadState{}, ErrUnauthorized()
	}
	if err := req.validate(); err != nil {
		return ReadState{}, err
	}

	member, err := s.db.MarkChannelRead(ctx, req.ChannelId, sess.UserId, s.now().UTC())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ReadState{}, errNotMember()
		}
		return ReadState{}, ErrOperationFailed(err)
	}

	state := ReadState{ChannelId: member.ChannelId}
	if member.LastReadAt != nil {
		state.LastReadAt = *member.LastReadAt
	}

	s.rooms.Broadcast(rooms.UserRoom(sess.UserId), EventChannelMarkedAsRead, state)

	return state, nil
}

func (s *Service) getChannel(ctx context.Context, channelId string) (database.Channel, error) {
	ch, err := s.db.GetChannel(ctx, channelId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Channel{}, ErrNotFound("channel")
		}
		return database.Channel{}, ErrOperationFailed(err)
	}
	return ch, nil
}

func (s *Service) requireMember(ctx context.Context, channelId string, userId int) (database.ChannelMember, error) {
	member, err := s.db.GetChannelMember(ctx, channelId, userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.ChannelMember{}, errNotMember()
		}
		return database.ChannelMember{}, ErrOperationFailed(err)
	}
	return member, nil
}
