package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/stats"
	"github.com/npezzotti/gosocial/internal/types"
)

const (
	maxContentLength   = 2000
	maxAttachments     = 10
	defaultFetchLimit  = 50
	maxFetchLimit      = 100
	errAttachmentsText = "attachment not found or not ready"
)

type CreateMessageRequest struct {
	ChannelId   string   `json:"channel_id"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
	ReplyTo     *string  `json:"reply_to,omitempty"`
}

type GetMessagesRequest struct {
	ChannelId string     `json:"channel_id"`
	Before    *time.Time `json:"before,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// UpdateMessageRequest replaces a message's content. Attachments are
// replaced only when the field is present.
type UpdateMessageRequest struct {
	ChannelId   string   `json:"channel_id"`
	MessageId   string   `json:"message_id"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
}

type DeleteMessageRequest struct {
	ChannelId string `json:"channel_id"`
	MessageId string `json:"message_id"`
}

type DeletedMessage struct {
	Id        string `json:"id"`
	ChannelId string `json:"channel_id"`
}

// ValidateContent trims content and deduplicates attachment ids.
func ValidateContent(content string, attachments []string) (string, []string, error) {
	content = strings.TrimSpace(content)

	ids := make([]string, 0, len(attachments))
	for _, id := range attachments {
		if id == "" {
			return "", nil, ErrValidation("attachment id is required")
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	switch {
	case len(ids) > maxAttachments:
		return "", nil, ErrValidation("too many attachments")
	case content == "" && len(ids) == 0:
		return "", nil, ErrValidation("content is required")
	case utf8.RuneCountInString(content) > maxContentLength:
		return "", nil, ErrValidation("content is too long")
	}

	return content, ids, nil
}

// CreateMessage stores a message, links its attachments, updates unread counters of
// dm members not viewing the channel and broadcasts it to the channel room.
func (s *Service) CreateMessage(ctx context.Context, sess Session, req CreateMessageRequest) (types.Message, error) {
	if !sess.authenticated() {
		return types.Message{}, ErrUnauthorized()
	}
	if req.ChannelId == "" {
		return types.Message{}, ErrValidation("channel_id is required")
	}

	content, attachmentIds, err := ValidateContent(req.Content, req.Attachments)
	if err != nil {
		return types.Message{}, err
	}

	ch, err := s.getChannel(ctx, req.ChannelId)
	if err != nil {
		return types.Message{}, err
	}

	if _, err := s.requireMember(ctx, ch.Id, sess.UserId); err != nil {
		return types.Message{}, err
	}

	resolved, err := s.resolveAttachments(ctx, sess.UserId, attachmentIds, "")
	if err != nil {
		return types.Message{}, err
	}

	if req.ReplyTo != nil {
		parent, err := s.docs.Get(ctx, *req.ReplyTo)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return types.Message{}, ErrOperationFailed(err)
		}
		if err != nil || parent.ChannelId != ch.Id {
			return types.Message{}, ErrNotFound("reply message")
		}
	}

	msg, err := s.docs.Insert(ctx, docstore.NewMessage{
		ChannelId:   ch.Id,
		ChannelType: ch.Type,
		AuthorId:    sess.UserId,
		Content:     content,
		Attachments: attachmentIds,
		ReplyTo:     req.ReplyTo,
	})
	if err != nil {
		return types.Message{}, ErrOperationFailed(err)
	}

	if err := s.db.LinkMessageAttachments(ctx, msg.Id, sess.UserId, attachmentIds); err != nil {
		comp := newCompensation(s.log)
		comp.add("delete message "+msg.Id, func(ctx context.Context) error {
			return s.docs.Delete(ctx, msg.Id)
		})
		comp.run(ctx)
		return types.Message{}, linkError(err)
	}

	if err := s.db.TouchChannel(ctx, ch.Id, msg.CreatedAt); err != nil {
		s.log.Printf("touch channel %s: %v", ch.Id, err)
	}

	room := rooms.ForChannel(ch.Type, ch.Id)
	if ch.Type == database.ChannelTypeDM {
		s.incrementUnread(ctx, ch.Id, sess.UserId, room)
	}

	out := toMessage(msg, resolved)
	s.rooms.Broadcast(room, EventMessageCreated, out)
	s.stats.Incr(stats.MessagesCreated)

	return out, nil
}

// incrementUnread bumps the counter of every member except the author and
// users with a connection in the channel room.
func (s *Service) incrementUnread(ctx context.Context, channelId string, authorId int, room string) {
	excluded := []int{authorId}
	for _, id := range s.rooms.MembersOf(room) {
		if id != authorId {
			excluded = append(excluded, id)
		}
	}

	if _, err := s.db.IncrementUnread(ctx, channelId, excluded); err != nil {
		s.log.Printf("increment unread for channel %s: %v", channelId, err)
	}
}

// resolveAttachments loads the attachments by id and checks each one is
// owned by userId, points at a finished object and is not attached to
// anything other than messageId.
func (s *Service) resolveAttachments(ctx context.Context, userId int, ids []string, messageId string) (map[string]types.Attachment, error) {
	resolved := make(map[string]types.Attachment, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}

	found, err := s.db.GetAttachments(ctx, ids)
	if err != nil {
		return nil, ErrOperationFailed(err)
	}

	for _, ao := range found {
		if ao.UserId != userId || !ao.Object.Done() || ao.Object.Url == nil || ao.PostId != nil {
			continue
		}
		if ao.MessageId != nil && *ao.MessageId != messageId {
			continue
		}
		resolved[ao.Id] = ToAttachment(ao)
	}

	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			return nil, ErrValidation(errAttachmentsText)
		}
	}

	return resolved, nil
}

// linkError maps a failed attachment link. ErrNotFound means a listed
// attachment was claimed by another message or post after it was resolved.
func linkError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrValidation(errAttachmentsText)
	}
	return ErrOperationFailed(err)
}

// displayAttachments resolves attachment ids of already stored messages.
func (s *Service) displayAttachments(ctx context.Context, msgs ...docstore.Message) (map[string]types.Attachment, error) {
	var ids []string
	for _, msg := range msgs {
		ids = append(ids, msg.Attachments...)
	}

	resolved := make(map[string]types.Attachment, len(ids))
	if len(ids) == 0 {
		return resolved, nil
	}

	found, err := s.db.GetAttachments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ao := range found {
		resolved[ao.Id] = ToAttachment(ao)
	}

	return resolved, nil
}

// GetMessages returns a page of the channel's messages, oldest first.
func (s *Service) GetMessages(ctx context.Context, sess Session, req GetMessagesRequest) ([]types.Message, error) {
	if !sess.authenticated() {
		return nil, ErrUnauthorized()
	}
	if req.ChannelId == "" {
		return nil, ErrValidation("channel_id is required")
	}

	limit := req.Limit
	switch {
	case limit < 0:
		return nil, ErrValidation("limit must be positive")
	case limit == 0:
		limit = defaultFetchLimit
	case limit > maxFetchLimit:
		limit = maxFetchLimit
	}

	ch, err := s.getChannel(ctx, req.ChannelId)
	if err != nil {
		return nil, err
	}

	if ch.Type == database.ChannelTypeDM {
		if _, err := s.requireMember(ctx, ch.Id, sess.UserId); err != nil {
			return nil, err
		}
	}

	msgs, err := s.docs.List(ctx, ch.Id, req.Before, limit)
	if err != nil {
		return nil, ErrOperationFailed(err)
	}
	slices.Reverse(msgs)

	resolved, err := s.displayAttachments(ctx, msgs...)
	if err != nil {
		return nil, ErrOperationFailed(err)
	}

	out := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toMessage(msg, resolved))
	}

	return out, nil
}

// getOwnMessage loads a message of the channel authored by userId.
func (s *Service) getOwnMessage(ctx context.Context, userId int, channelId, messageId string) (docstore.Message, error) {
	if channelId == "" {
		return docstore.Message{}, ErrValidation("channel_id is required")
	}
	if messageId == "" {
		return docstore.Message{}, ErrValidation("message_id is required")
	}

	msg, err := s.docs.Get(ctx, messageId)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Message{}, ErrNotFound("message")
		}
		return docstore.Message{}, ErrOperationFailed(err)
	}

	if msg.ChannelId != channelId {
		return docstore.Message{}, ErrValidation("message does not belong to this channel")
	}
	if msg.AuthorId != userId {
		return docstore.Message{}, ErrUnauthorized()
	}

	return msg, nil
}

func (s *Service) UpdateMessage(ctx context.Context, sess Session, req UpdateMessageRequest) (types.Message, error) {
	if !sess.authenticated() {
		return types.Message{}, ErrUnauthorized()
	}

	msg, err := s.getOwnMessage(ctx, sess.UserId, req.ChannelId, req.MessageId)
	if err != nil {
		return types.Message{}, err
	}

	attachmentIds := msg.Attachments
	if req.Attachments != nil {
		attachmentIds = req.Attachments
	}

	content, attachmentIds, err := ValidateContent(req.Content, attachmentIds)
	if err != nil {
		return types.Message{}, err
	}

	var resolved map[string]types.Attachment
	comp := newCompensation(s.log)
	if req.Attachments != nil {
		if resolved, err = s.resolveAttachments(ctx, sess.UserId, attachmentIds, msg.Id); err != nil {
			return types.Message{}, err
		}
		if err := s.db.LinkMessageAttachments(ctx, msg.Id, sess.UserId, attachmentIds); err != nil {
			return types.Message{}, linkError(err)
		}

		id, previous := msg.Id, msg.Attachments
		comp.add("restore attachments of message "+id, func(ctx context.Context) error {
			return s.db.LinkMessageAttachments(ctx, id, sess.UserId, previous)
		})
	}

	msg.Content = content
	msg.Attachments = attachmentIds
	msg, err = s.docs.Replace(ctx, msg)
	if err != nil {
		comp.run(ctx)
		if errors.Is(err, docstore.ErrNotFound) {
			return types.Message{}, ErrNotFound("message")
		}
		return types.Message{}, ErrOperationFailed(err)
	}

	if resolved == nil {
		if resolved, err = s.displayAttachments(ctx, msg); err != nil {
			return types.Message{}, ErrOperationFailed(err)
		}
	}

	out := toMessage(msg, resolved)
	s.rooms.Broadcast(rooms.ForChannel(msg.ChannelType, msg.ChannelId), EventMessageUpdated, out)

	return out, nil
}

func (s *Service) DeleteMessage(ctx context.Context, sess Session, req DeleteMessageRequest) (DeletedMessage, error) {
	if !sess.authenticated() {
		return DeletedMessage{}, ErrUnauthorized()
	}

	msg, err := s.getOwnMessage(ctx, sess.UserId, req.ChannelId, req.MessageId)
	if err != nil {
		return DeletedMessage{}, err
	}

	if err := s.docs.Delete(ctx, msg.Id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return DeletedMessage{}, ErrNotFound("message")
		}
		return DeletedMessage{}, ErrOperationFailed(err)
	}

	deleted := DeletedMessage{Id: msg.Id, ChannelId: msg.ChannelId}
	s.rooms.Broadcast(rooms.ForChannel(msg.ChannelType, msg.ChannelId), EventMessageDeleted, deleted)

	return deleted, nil
}
