package chat

import (
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/types"
)

// ToChannel returns the channel as seen by member, which may be nil.
func ToChannel(ch database.Channel, member *database.ChannelMember) types.Channel {
	out := types.Channel{
		Id:        ch.Id,
		Type:      types.ChannelType(ch.Type),
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
	if member != nil {
		out.UnreadCount = member.UnreadCount
		out.LastReadAt = member.LastReadAt
	}
	return out
}

func toChannelSummary(cs database.ChannelSummary) types.Channel {
	out := ToChannel(cs.Channel, nil)
	out.UnreadCount = cs.UnreadCount
	out.LastReadAt = cs.LastReadAt
	out.PostId = cs.PostId
	if cs.OtherUser != nil {
		out.OtherUser = &types.User{Id: cs.OtherUser.Id, Username: cs.OtherUser.Username}
	}
	return out
}

// ToAttachment returns the display form of an attachment.
func ToAttachment(ao database.AttachmentObject) types.Attachment {
	att := types.Attachment{
		Id:          ao.Id,
		Filename:    ao.Filename,
		ContentType: ao.Object.MimeType,
		Size:        ao.Object.Size,
		Hash:        ao.Object.Hash,
	}
	if ao.Object.Url != nil {
		att.Url = *ao.Object.Url
	}
	return att
}

// toMessage resolves the message's attachment ids against resolved, keeping
// the stored order and skipping ids that are no longer available.
func toMessage(msg docstore.Message, resolved map[string]types.Attachment) types.Message {
	out := types.Message{
		Id:          msg.Id,
		ChannelId:   msg.ChannelId,
		ChannelType: types.ChannelType(msg.ChannelType),
		AuthorId:    msg.AuthorId,
		Content:     msg.Content,
		Attachments: make([]types.Attachment, 0, len(msg.Attachments)),
		ReplyTo:     msg.ReplyTo,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}

	for _, id := range msg.Attachments {
		if att, ok := resolved[id]; ok {
			out.Attachments = append(out.Attachments, att)
		}
	}

	return out
}
